package main

import (
	"context"
	"os/signal"
	"syscall"

	"marketnexus/config"
	"marketnexus/internal/cache"
	"marketnexus/internal/engine"
	"marketnexus/internal/feed/binance"
	"marketnexus/internal/feed/erapi"
	"marketnexus/internal/feed/stooq"
	"marketnexus/internal/feed/synthetic"
	"marketnexus/internal/feed/yahoo"
	"marketnexus/internal/provider"
	"marketnexus/internal/server"
	"marketnexus/internal/watchlist"
	"marketnexus/logger"

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

	// layered cache: redis backing store with in-process standby
	cacheLayer := cache.New(cache.Config{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.ResolvePassword(cfg.Log.Environment),
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	}, log)
	cacheLayer.Connect(ctx)
	defer cacheLayer.Close()

	// feed clients and fallback provider
	feeds := provider.Feeds{
		Yahoo:     yahoo.New(cfg.Feeds.Yahoo.BaseURL, cfg.Feeds.Yahoo.Timeout, log),
		Stooq:     stooq.New(cfg.Feeds.Stooq.BaseURL, cfg.Feeds.Stooq.Timeout, log),
		Binance:   binance.New(cfg.Feeds.Binance.BaseURL, cfg.Feeds.Binance.Timeout, log),
		ERAPI:     erapi.New(cfg.Feeds.ERAPI.BaseURL, cfg.Feeds.ERAPI.Timeout, log),
		Synthetic: synthetic.New(),
	}
	prov := provider.New(feeds, log)

	eng := engine.New(cacheLayer, prov, log)

	// watchlist storage is optional; the server degrades without it
	var store *watchlist.Store
	if err := watchlist.CreateDatabase(cfg.Postgres, cfg.Log.Environment); err != nil {
		log.Warn("watchlist database unavailable", zap.Error(err))
	} else {
		store, err = watchlist.InitializeAndMigrate(cfg.Postgres.DSN(cfg.Log.Environment))
		if err != nil {
			log.Warn("watchlist storage disabled", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}

	srv := server.New(eng, cacheLayer, store, cfg, log)
	if err := srv.Run(ctx, cfg.Server.ShutdownTimeout); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("shutdown complete")
}
