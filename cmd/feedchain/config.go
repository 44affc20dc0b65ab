package main

import (
	"context"
	"fmt"
	"time"

	"feedchain/internal/db"
	"feedchain/internal/lifecycle"
	"feedchain/internal/memstore"
	"feedchain/internal/store"
	"feedchain/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

func loadConfig(prefix string) (*types.Config, error) {
	c := new(types.Config)
	if err := envconfig.Process(prefix, c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	switch c.StoreDriver {
	case driverPostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("set DATABASE_URL")
		}
	case driverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q, want %s or %s", c.StoreDriver, driverPostgres, driverMemory)
	}

	if c.ServerPort == 0 {
		c.ServerPort = 8080
	}

	if c.ReadTimeoutSec == 0 {
		c.ReadTimeoutSec = 10
	}

	if c.WriteTimeoutSec == 0 {
		c.WriteTimeoutSec = 15
	}

	if c.ProofMaxBytes <= 0 {
		c.ProofMaxBytes = 5 << 20
	}

	return c, nil
}

func configFromContext(cCtx *cli.Context) (*types.Config, error) {
	return loadConfig(cCtx.String("env-prefix"))
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	config, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	return config, nil
}

func newLogger(c *types.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("invalid LOG_LEVEL, falling back to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// openStore returns the configured lifecycle store and a func that releases it.
func openStore(ctx context.Context, c *types.Config) (lifecycle.Store, func(), error) {
	if c.StoreDriver == driverMemory {
		return memstore.New(), func() {}, nil
	}

	pool, err := db.Connect(ctx, c)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return store.New(pool), pool.Close, nil
}

func newEngine(st lifecycle.Store, logger logrus.FieldLogger, c *types.Config, reg prometheus.Registerer) *lifecycle.Engine {
	opts := []lifecycle.Option{
		lifecycle.WithCodeLength(c.PickupCodeLength),
		lifecycle.WithMinExpiryLead(time.Duration(c.MinExpiryLeadMinutes) * time.Minute),
		lifecycle.WithNearbyRadius(c.NearbyRadiusKM),
	}
	if reg != nil {
		opts = append(opts, lifecycle.WithRegisterer(reg))
	}

	return lifecycle.New(st, logger, opts...)
}
