package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nabis/inventory-core/internal/reconcile"
	"github.com/nabis/inventory-core/internal/wmsclient"
	"github.com/nabis/inventory-core/pkg/config"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("reconciler")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.RabbitMQ.PrefetchCount = cfg.Worker.SyncPrefetch

	log := logger.New("reconciler", cfg.Server.Environment)
	log.Info().Msg("starting reconciliation engine")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	wms := newWmsClient(cfg.Wms, log)

	repo := reconcile.NewRepository(db)
	engine := reconcile.NewEngine(db, repo, wms, log)

	consumer, err := reconcile.NewConsumer(rmq, "reconciler.wms-force-sync", engine, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create reconciliation consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start reconciliation consumer")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down reconciliation engine")
	cancel()
	log.Info().Msg("reconciliation engine stopped")
}

func newWmsClient(cfg config.WmsConfig, log *logger.Logger) wmsclient.Client {
	if cfg.Mode == "http" {
		return wmsclient.NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, log)
	}
	return wmsclient.NewMockClient()
}
