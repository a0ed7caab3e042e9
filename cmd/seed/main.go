// seed creates an organization, its admin user and a starter catalog from a
// YAML fixture. Run it once against a freshly migrated database.
//
// Usage: go run ./cmd/seed [-file seed/demo.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"billing-engine/internal/app"
	"billing-engine/internal/config"
	"billing-engine/internal/db"
	"billing-engine/internal/logger"
	"billing-engine/internal/seed"
	"billing-engine/internal/store/postgres"
)

func main() {
	file := flag.String("file", "seed/demo.yaml", "Path to the YAML fixture")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	fixture, err := seed.LoadFile(*file)
	if err != nil {
		log.Fatal("failed to load fixture", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	store := postgres.New(pool)
	svc := app.NewAppService(app.Deps{Store: store, Logger: log})

	res, err := seed.Apply(ctx, fixture, store, svc, log)
	if errors.Is(err, seed.ErrAlreadySeeded) {
		log.Info("nothing to do: admin user already exists")
		return
	}
	if err != nil {
		pool.Close()
		log.Fatal("seed failed", zap.Error(err))
	}
	fmt.Printf("Seeded organization %d. Set ORGANIZATION_ID=%d for the CLI.\n", res.OrganizationID, res.OrganizationID)
}
