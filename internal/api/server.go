// Package api serves live traffic, receiver status and proximity alerts
// over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/guardianone/adsb-traffic/internal/db"
	"github.com/guardianone/adsb-traffic/internal/registry"
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
)

// Receiver is the part of *receiver.Receiver the API uses.
type Receiver interface {
	adsb.Source
	Connect(ctx context.Context, host string) error
	Disconnect()
	Status() receiver.Status
	Info() receiver.Info
	Stats() receiver.Stats
	Host() string
}

var _ Receiver = (*receiver.Receiver)(nil)

// History is the stored sighting history the API reads.
type History interface {
	GetAircraft(ctx context.Context, address string) (*db.AircraftSummary, error)
	GetSightings(ctx context.Context, address string, since time.Time) ([]db.Sighting, error)
}

var _ History = (*db.TrafficRepository)(nil)

// Server holds the HTTP router and its dependencies.
type Server struct {
	router   *chi.Mux
	receiver Receiver
	registry registry.Lookup
	history  History
	cfg      *config.Config
	logger   log.Logger
	now      func() time.Time
}

// NewServer builds the router. lookup may be nil.
func NewServer(logger log.Logger, rcv Receiver, lookup registry.Lookup, cfg *config.Config) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{
		router:   chi.NewRouter(),
		receiver: rcv,
		registry: lookup,
		cfg:      cfg,
		logger:   log.With(logger, "component", "api"),
		now:      time.Now,
	}
	s.setupRoutes()
	return s
}

// SetHistory enables the traffic history endpoint. Call before serving.
func (s *Server) SetHistory(h History) {
	s.history = h
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/traffic", s.handleGetTraffic)
		r.Get("/traffic.csv", s.handleExportTraffic)
		r.Get("/traffic/{address}", s.handleGetTrafficByAddress)
		r.Get("/traffic/{address}/history", s.handleGetTrafficHistory)
		r.Get("/status", s.handleGetStatus)
		r.Post("/alerts", s.handleAlerts)
		r.Post("/receiver/connect", s.handleConnect)
		r.Post("/receiver/disconnect", s.handleDisconnect)
		r.Get("/ws", s.handleWebSocket)
	})
}

// requestLogger logs each request through go-kit.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		level.Debug(s.logger).Log(
			"msg", "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]interface{}{
		"error": msg,
	})
}
