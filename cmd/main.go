package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"

	"github.com/trunov/mediaconv/internal/app"
	"github.com/trunov/mediaconv/internal/config"
	"github.com/trunov/mediaconv/internal/logx"
)

var version = "dev"

func initSentry(cfg *config.SentryConfig, version string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     version,
	})
}

func main() {
	file := flag.String("config", "config.json", "path to the json config file")
	roleName := flag.String("role", string(app.RoleAll), "what to run: api, worker or all")
	flag.Parse()

	cfg, err := config.Load(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := logx.Setup(cfg.Log, "mediaconv")

	role, err := app.ParseRole(*roleName)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse role")
	}

	if err := initSentry(&cfg.Sentry, version); err != nil {
		logger.Fatal().Err(err).Msg("sentry.Init")
	}
	// Flush buffered events before the program terminates.
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, role, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init app")
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}

	logger.Info().Str("role", string(role)).Str("version", version).Msg("mediaconv starting")
	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("app stopped with error")
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	logger.Info().Msg("mediaconv stopped")
}
