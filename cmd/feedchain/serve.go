package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedchain/internal/identity"
	"feedchain/internal/server"
	"feedchain/internal/storage"
	"feedchain/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP API",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := configFromContext(cCtx)
	if err != nil {
		return err
	}

	logger := newLogger(config)

	st, closeStore, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine := newEngine(st, logger, config, registry)

	auth, err := newVerifier(ctx, config)
	if err != nil {
		return err
	}

	// Proof uploads stay disabled until a bucket is configured.
	var proofs server.ProofStorage
	if config.ProofBucket != "" {
		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return err
		}
		proofs = storage.NewS3ProofStorage(s3.NewFromConfig(awsConfig), config.ProofBucket)
	}

	srv, err := server.New(config, logger, engine, auth, proofs, registry)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"store":  config.StoreDriver,
		"proofs": config.ProofBucket != "",
	}).Info("lifecycle engine ready")

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

func newVerifier(ctx context.Context, config *types.Config) (*identity.Verifier, error) {
	opts := []identity.VerifierOption{identity.WithIssuer(config.JWTIssuer)}

	switch {
	case config.JWKSURL != "":
		verifier, err := identity.NewJWKSVerifier(ctx, config.JWKSURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize jwks verifier: %w", err)
		}
		return verifier, nil
	case config.JWTSecret != "":
		return identity.NewHMACVerifier([]byte(config.JWTSecret), opts...), nil
	default:
		return nil, fmt.Errorf("set JWKS_URL or JWT_SECRET")
	}
}
