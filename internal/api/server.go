// Package api exposes the simulation service over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"provision-risk-lab/internal/ingestion"
	"provision-risk-lab/internal/observability"
	"provision-risk-lab/internal/reporting"
	"provision-risk-lab/internal/service"
)

// DefaultMaxUploadBytes bounds multipart bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 32 << 20

// Options configures the HTTP handler.
type Options struct {
	Service        *service.Service
	Reports        *reporting.Generator
	Auth           AuthConfig
	Logger         logrus.FieldLogger
	MaxUploadBytes int64
	Ingestion      ingestion.Options
}

// Server holds the HTTP handlers.
type Server struct {
	svc       *service.Service
	reports   *reporting.Generator
	logger    logrus.FieldLogger
	maxUpload int64
	ingestion ingestion.Options
}

// NewRouter builds the routes. /health and /metrics are public; everything
// under /simulations requires a bearer token unless auth is disabled.
func NewRouter(opts Options) *mux.Router {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Ingestion.Delimiter == 0 {
		opts.Ingestion = ingestion.DefaultOptions()
	}

	s := &Server{
		svc:       opts.Service,
		reports:   opts.Reports,
		logger:    opts.Logger,
		maxUpload: opts.MaxUploadBytes,
		ingestion: opts.Ingestion,
	}

	r := mux.NewRouter()
	r.Use(instrument(opts.Logger))

	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	sims := r.PathPrefix("/simulations").Subrouter()
	sims.Use(authenticate(opts.Auth))
	sims.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	sims.HandleFunc("", s.handleList).Methods(http.MethodGet)
	sims.HandleFunc("/{id}", s.handleGet).Methods(http.MethodGet)
	sims.HandleFunc("/{id}/status", s.handleStatus).Methods(http.MethodGet)
	sims.HandleFunc("/{id}/results", s.handleResults).Methods(http.MethodGet)
	sims.HandleFunc("/{id}/risk", s.handleRisk).Methods(http.MethodPost)
	sims.HandleFunc("/{id}/report", s.handleReport).Methods(http.MethodGet)
	sims.HandleFunc("/{id}/ws", s.handleWebSocket).Methods(http.MethodGet)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
