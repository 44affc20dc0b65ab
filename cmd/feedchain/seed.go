package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"feedchain/internal/seed"
	"feedchain/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the store with demo food posts at every lifecycle stage",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"c"},
			Usage:   "Number of food posts to create",
			Value:   25,
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "Random seed, 0 picks one from the clock",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := configFromContext(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.StoreDriver == driverMemory {
			logrus.Warn("seeding the memory store, data is discarded on exit")
		}

		ctx := context.Background()

		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		logrus.Info("Connected to store")

		engine := newEngine(st, logrus.StandardLogger(), cfg, nil)

		source := c.Int64("seed")
		if source == 0 {
			source = time.Now().UnixNano()
		}

		result, err := seed.SeedFoodPosts(ctx, engine, c.Int("count"), rand.New(rand.NewSource(source)))
		if err != nil {
			return fmt.Errorf("failed to seed food posts: %w", err)
		}

		for _, status := range []types.FoodPostStatus{
			types.FoodPostStatusPosted,
			types.FoodPostStatusClaimed,
			types.FoodPostStatusPicked,
			types.FoodPostStatusDistributed,
		} {
			fmt.Printf("Fake food posts seeded: %-12s %d\n", status, result[status])
		}

		return nil
	},
}
