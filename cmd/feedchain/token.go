package main

import (
	"fmt"
	"time"

	"feedchain/internal/identity"
	"feedchain/internal/seed"
	"feedchain/pkg/types"

	"github.com/urfave/cli/v2"
)

var tokenCommand = &cli.Command{
	Name:  "token",
	Usage: "Issue a signed bearer token for local testing",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "user",
			Usage: "User id to put in the subject claim",
		},
		&cli.StringFlag{
			Name:  "role",
			Usage: "donor, ngo or admin",
			Value: string(types.RoleDonor),
		},
		&cli.BoolFlag{
			Name:  "seeded",
			Usage: "Print a token for every seeded demo user instead",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := configFromContext(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.JWTSecret == "" {
			return fmt.Errorf("set JWT_SECRET to issue tokens")
		}

		issuer := identity.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, time.Duration(cfg.TokenTTLMinutes)*time.Minute)

		if c.Bool("seeded") {
			for _, actor := range seed.Actors() {
				token, err := issuer.Issue(actor)
				if err != nil {
					return err
				}
				fmt.Printf("%-6s %s %s\n", actor.Role, actor.UserID, token)
			}
			return nil
		}

		token, err := issuer.Issue(types.Actor{UserID: c.String("user"), Role: types.Role(c.String("role"))})
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}
