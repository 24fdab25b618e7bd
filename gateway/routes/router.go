package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hashbridge/gateway/middleware"
	"hashbridge/native/htlc"
)

// Config wires the escrow engine and the ambient middleware into the HTTP
// surface exposed by the gateway daemon.
type Config struct {
	Engine        *htlc.Engine
	Observability *middleware.Observability
	Logger        *slog.Logger
}

// New builds the gateway router: health and metrics endpoints at the root and
// the escrow API mounted under /v1/htlc.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	api := &htlcRoutes{engine: cfg.Engine, logger: cfg.Logger}
	r.Route("/v1/htlc", func(sr chi.Router) {
		if obs != nil {
			sr.Use(obs.Middleware("htlc"))
		}
		api.mount(sr)
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r
}
