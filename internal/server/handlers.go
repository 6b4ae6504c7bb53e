// Package server exposes the event router over HTTP for local runs and
// non-Lambda deployments.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"typesense-sync/internal/models"
)

const maxPayloadBytes = 6 << 20 // Lambda's synchronous payload limit

// Invoker handles a raw invocation payload
type Invoker interface {
	Handle(ctx context.Context, payload json.RawMessage) (interface{}, error)
}

// Pinger checks a dependency
type Pinger interface {
	Health(ctx context.Context) error
}

// Handlers provides the HTTP handlers
type Handlers struct {
	invoker  Invoker
	backend  Pinger
	registry *prometheus.Registry
	logger   *logrus.Logger
}

// NewHandlers creates new handlers
func NewHandlers(invoker Invoker, backend Pinger, registry *prometheus.Registry, logger *logrus.Logger) *Handlers {
	return &Handlers{
		invoker:  invoker,
		backend:  backend,
		registry: registry,
		logger:   logger,
	}
}

// Router returns a router with all routes registered
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the invoke, health and metrics routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/invoke", h.invoke).Methods("POST")
	router.HandleFunc("/healthz", h.health).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})).Methods("GET")
}

// invoke handles POST /invoke
func (h *Handlers) invoke(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	result, err := h.invoker.Handle(r.Context(), body)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	switch v := result.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case string:
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(v))
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
}

// health handles GET /healthz
func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	typesenseStatus := "healthy"
	if err := h.backend.Health(ctx); err != nil {
		h.logger.Warnf("Typesense health check failed: %v", err)
		status = http.StatusServiceUnavailable
		typesenseStatus = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    typesenseStatus,
		"timestamp": time.Now(),
		"dependencies": map[string]string{
			"typesense": typesenseStatus,
		},
	})
}

func statusFor(err error) int {
	var decodeErr *models.DecodeError
	switch {
	case errors.Is(err, models.ErrUnknownEvent), errors.As(err, &decodeErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
