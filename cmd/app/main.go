package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"billing-engine/internal/adapters/cli"
	"billing-engine/internal/ai"
	"billing-engine/internal/app"
	"billing-engine/internal/config"
	"billing-engine/internal/db"
	"billing-engine/internal/delivery"
	"billing-engine/internal/logger"
	"billing-engine/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Command output goes to stdout; keep logs out of the way.
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	var drafter ai.Drafter
	if cfg.OpenAI.APIKey != "" {
		drafter = ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	svc := app.NewAppService(app.Deps{
		Store:    postgres.New(pool),
		Notifier: delivery.NewNotifier(delivery.NewMailer(cfg.SMTP, log), cfg.App.PublicURL),
		Drafter:  drafter,
		Logger:   log,
	})

	root := cli.NewRootCommand(svc, cfg.App.OrganizationID)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		pool.Close()
		os.Exit(1)
	}
}
