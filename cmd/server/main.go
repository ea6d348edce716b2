package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"pricestream/config"
	"pricestream/internal/cache"
	"pricestream/internal/feed"
	"pricestream/internal/hub"
	"pricestream/internal/server"
	"pricestream/logger"
	"pricestream/pkg/crossbar"
	"pricestream/pkg/storage/postgres"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Feed mapping is required; without it nothing can be served.
	registry, err := feed.LoadFile(cfg.Feeds.Path)
	if err != nil {
		log.Fatal("failed to load feed registry", zap.String("path", cfg.Feeds.Path), zap.Error(err))
	}
	log.Info("feed registry loaded", zap.Int("feeds", registry.Len()))

	fetcher := crossbar.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	quoteCache := cache.New(cfg.Broadcast.CacheTTL)
	subs := hub.NewSubscriptions()

	// Optional quote history sink.
	var recorder hub.Recorder
	var history server.History
	if cfg.Postgres.Enabled {
		pg, err := postgres.InitializeAndMigrateQuoteRecord(cfg.Postgres, cfg.Server.EnvName, true)
		if err != nil {
			log.Fatal("failed to connect to DB", zap.Error(err))
		}
		defer pg.Close()
		recorder = pg
		history = pg
		log.Info("quote history enabled", zap.String("db", cfg.Postgres.DBName))

		if cfg.Postgres.Retention > 0 {
			go hub.RunRetention(ctx, pg, time.Hour, cfg.Postgres.Retention, log)
		}
	}

	broadcaster := hub.NewBroadcaster(subs, registry, fetcher, quoteCache, recorder,
		cfg.Broadcast.Interval, cfg.Broadcast.FetchTimeout, log)
	go broadcaster.Run(ctx)

	srv := server.New(cfg.Server, registry, quoteCache, fetcher, subs, history,
		cfg.Broadcast.SendBuffer, log)
	srv.SetReady(true)

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("shutdown complete")
}
