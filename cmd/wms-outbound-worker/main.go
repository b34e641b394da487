package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nabis/inventory-core/internal/wmsclient"
	"github.com/nabis/inventory-core/internal/wmsoutbound"
	"github.com/nabis/inventory-core/pkg/config"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("wms-outbound-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.RabbitMQ.PrefetchCount = cfg.Worker.OutboundPrefetch

	log := logger.New("wms-outbound-worker", cfg.Server.Environment)
	log.Info().Msg("starting WMS outbound worker")

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

	consumer, err := messaging.NewConsumer(rmq, "wms-outbound-worker.inventory-events", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.*"); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to inventory events")
	}

	wms := newWmsClient(cfg.Wms, log)

	repo := wmsoutbound.NewRepository(db)
	worker := wmsoutbound.NewWorker(repo, wms, consumer, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down WMS outbound worker")
	cancel()
	log.Info().Msg("WMS outbound worker stopped")
}

func newWmsClient(cfg config.WmsConfig, log *logger.Logger) wmsclient.Client {
	if cfg.Mode == "http" {
		return wmsclient.NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, log)
	}
	return wmsclient.NewMockClient()
}
