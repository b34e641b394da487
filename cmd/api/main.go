package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nabis/inventory-core/internal/httpapi"
	"github.com/nabis/inventory-core/internal/query"
	"github.com/nabis/inventory-core/internal/reconcile"
	"github.com/nabis/inventory-core/internal/reservation"
	"github.com/nabis/inventory-core/pkg/config"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("api", cfg.Server.Environment)
	log.Info().Msg("starting inventory consistency engine API")

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

	commandPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeWmsForceSync, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create command publisher")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		DB:              db,
		RMQ:             rmq,
		ReservationRepo: reservation.NewRepository(db),
		ReconcileRepo:   reconcile.NewRepository(db),
		QueryRepo:       query.NewRepository(db),
		SyncCommands:    commandPublisher,
		Logger:          log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
