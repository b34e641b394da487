package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nabis/inventory-core/internal/outbox"
	"github.com/nabis/inventory-core/pkg/config"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("outbox-dispatcher")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("outbox-dispatcher", cfg.Server.Environment)
	log.Info().Msg("starting outbox dispatcher")

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

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	repo := outbox.NewRepository(db)
	dispatcher := outbox.NewDispatcher(db, repo, publisher, cfg.Outbox.BatchSize, cfg.Outbox.PollInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down outbox dispatcher")
	dispatcher.Stop()
	cancel()
	log.Info().Msg("outbox dispatcher stopped")
}
