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

	"go.uber.org/zap"

	webAdapter "billing-engine/internal/adapters/web"
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
	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	mailer := delivery.NewMailer(cfg.SMTP, log)

	var drafter ai.Drafter
	if cfg.OpenAI.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; line-item drafting is disabled")
	} else {
		drafter = ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	svc := app.NewAppService(app.Deps{
		Store:    postgres.New(pool),
		Notifier: delivery.NewNotifier(mailer, cfg.App.PublicURL),
		Drafter:  drafter,
		Logger:   log,
	})

	handler := webAdapter.NewHandler(svc, webAdapter.Config{
		AllowedOrigins: cfg.App.AllowedOrigins,
		JWTSecret:      cfg.JWT.Secret,
		TokenTTL:       cfg.JWT.Expiration,
		SecureCookies:  cfg.IsProduction(),
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
}
