package main

import (
	"fmt"

	"feedchain/internal/utils"

	"github.com/urfave/cli/v2"
)

var nanoidCommand = &cli.Command{
	Name:  "nanoid",
	Usage: "Generate record ids or sample pickup codes",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of IDs to generate",
			Value:   1,
		},
		&cli.IntFlag{
			Name:  "size",
			Usage: "ID length, 0 uses the record id length",
		},
		&cli.BoolFlag{
			Name:  "numeric",
			Usage: "Generate digit-only codes like pickup OTPs",
		},
	},
	Action: func(c *cli.Context) error {
		size := c.Int("size")
		for range c.Int("count") {
			if !c.Bool("numeric") {
				fmt.Println(utils.NanoIDSize(size))
				continue
			}

			if size == 0 {
				size = 6
			}
			code, err := utils.NumericCode(size)
			if err != nil {
				return err
			}
			fmt.Println(code)
		}
		return nil
	},
}
