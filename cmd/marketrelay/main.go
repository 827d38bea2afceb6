package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/usecase/ingest"
	"marketrelay/internal/infrastructure/config"
	"marketrelay/internal/infrastructure/logger"
	"marketrelay/internal/infrastructure/metrics"
	"marketrelay/internal/infrastructure/svc"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	_ = logger.Setup("info", "console")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	if err := logger.Setup(cfg.App.LogLevel, cfg.App.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("logger setup failed")
	}

	if cfg.Bus.InProcessOnly() {
		log.Warn().Msg("bus.transports is memory only; no other process can see these records")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service initialization failed")
	}
	defer sc.Close()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				log.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	service := ingest.NewService(sc.BuildIngestServiceDeps())

	log.Info().
		Str("config", *configPath).
		Strs("pairs", cfg.Feed.Pairs).
		Strs("kinds", cfg.Feed.Kinds).
		Ints("ohlc_intervals", cfg.Feed.OHLCIntervals).
		Strs("transports", cfg.Bus.Transports).
		Msg("marketrelay started")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("ingest service exited")
	}
	log.Info().Msg("marketrelay stopped")
}
