// Package server exposes the bot's HTTP side: health, metrics and payment webhooks.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// JobCounter reports the number of scheduled pushes.
type JobCounter interface {
	Len() int
}

// Options wires the router. Nil fields disable the matching route.
type Options struct {
	DB            Pinger
	Jobs          JobCounter
	StripeWebhook http.Handler
}

// NewRouter builds the HTTP routes.
func NewRouter(opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", health(opts))
	r.Handle("/metrics", promhttp.Handler())

	if opts.StripeWebhook != nil {
		r.Method(http.MethodPost, "/webhook/stripe", opts.StripeWebhook)
	}
	return r
}

func health(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if opts.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.DB.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		body := map[string]any{"status": "ok"}
		if opts.Jobs != nil {
			body["jobs"] = opts.Jobs.Len()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
