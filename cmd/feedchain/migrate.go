package main

import (
	"context"
	"fmt"

	"feedchain/internal/db"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Create the feedchain schema and tables",
	Action: func(c *cli.Context) error {
		cfg, err := configFromContext(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.StoreDriver != driverPostgres {
			return fmt.Errorf("migrate needs STORE_DRIVER=%s", driverPostgres)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		logrus.Info("Schema migrated successfully")

		return nil
	},
}
