// Package httpapi wires the reservation, query and reconciliation
// components to the HTTP surface spec.md §6 names, following the
// teacher's chi-router/middleware conventions.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nabis/inventory-core/internal/query"
	"github.com/nabis/inventory-core/internal/reconcile"
	"github.com/nabis/inventory-core/internal/reservation"
	"github.com/nabis/inventory-core/pkg/database"
	"github.com/nabis/inventory-core/pkg/httputil"
	"github.com/nabis/inventory-core/pkg/logger"
	"github.com/nabis/inventory-core/pkg/messaging"
)

// Deps bundles the components the router needs; cmd/api constructs one
// of these after wiring the database and broker connections.
type Deps struct {
	DB              *database.DB
	RMQ             *messaging.RabbitMQ
	ReservationRepo *reservation.Repository
	ReconcileRepo   *reconcile.Repository
	QueryRepo       *query.Repository
	SyncCommands    CommandPublisher
	Logger          *logger.Logger
}

// NewRouter builds the chi router serving every route in spec.md §6.
func NewRouter(d Deps) http.Handler {
	reservationEngine := reservation.NewEngine(d.DB, d.ReservationRepo)
	querySvc := query.NewService(d.QueryRepo)

	reservationHandler := NewReservationHandler(reservationEngine, d.Logger)
	queryHandler := NewQueryHandler(querySvc, d.Logger)
	wmsSyncHandler := NewWmsSyncHandler(d.ReconcileRepo, d.SyncCommands, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(d.Logger))
	r.Use(httputil.Recoverer(d.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-core",
			"database": d.DB.Health(r.Context()),
			"rabbitmq": d.RMQ.Health(),
		})
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Post("/reserve", reservationHandler.Reserve)
		r.Post("/release", reservationHandler.Release)
		r.Get("/{sku}", queryHandler.GetInventory)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/inventory/adjust", reservationHandler.Adjust)
		r.Route("/wms/sync", func(r chi.Router) {
			r.Post("/", wmsSyncHandler.Enqueue)
			r.Get("/{id}", wmsSyncHandler.Get)
		})
	})

	return r
}
