package main

import (
	"context"
	"fmt"

	"github.com/k0kubun/pp/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var impactCommand = &cli.Command{
	Name:  "impact",
	Usage: "Print the impact summary and status overview",
	Action: func(c *cli.Context) error {
		cfg, err := configFromContext(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		engine := newEngine(st, logrus.StandardLogger(), cfg, nil)

		summary, err := engine.SummarizeImpact(ctx)
		if err != nil {
			return err
		}

		overview, err := engine.Overview(ctx)
		if err != nil {
			return err
		}

		pp.Println(summary)
		pp.Println(overview)
		return nil
	},
}
