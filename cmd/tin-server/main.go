package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tin/internal/api"
	"tin/internal/broker"
	"tin/internal/config"
	"tin/internal/engine"
	"tin/internal/quote"
	"tin/internal/util"
)

func main() {
	cfgPath := "config/tin.yaml"
	if p := os.Getenv("TIN_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOptional(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	b, err := broker.FromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("creating broker: %v", err)
	}
	src, err := quote.FromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("creating quote source: %v", err)
	}
	eng := engine.NewEngine(b, src, engine.WithLogger(logger))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := api.NewServer(cfg, eng, logger)
	logger.Info("tin-server starting", "addr", srv.Addr(), "broker", b.Name(), "quote", src.Name())
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
