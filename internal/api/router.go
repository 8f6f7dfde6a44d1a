// ThreatStream - Real-Time Security Event Analytics and Risk Index
// Copyright 2026 ThreatStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatstream/threatstream

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threatstream/threatstream/internal/config"
	"github.com/threatstream/threatstream/internal/middleware"
)

// WSHandler serves the WebSocket upgrade endpoint.
type WSHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Router assembles the HTTP routing tree.
type Router struct {
	cfg     config.APIConfig
	handler *Handler
	ws      WSHandler
}

// NewRouter creates the router. ws may be nil; the /ws endpoint is then
// not mounted.
func NewRouter(cfg config.APIConfig, handler *Handler, ws WSHandler) *Router {
	return &Router{
		cfg:     cfg,
		handler: handler,
		ws:      ws,
	}
}

// Setup builds the chi routing tree with the global middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.rateLimit())

		r.Get("/health", router.handler.Health)

		r.Route("/threats", func(r chi.Router) {
			r.Get("/recent", router.handler.RecentThreats)
			r.Get("/stats/summary", router.handler.ThreatStats)
			r.Get("/{id}", router.handler.ThreatByID)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", router.handler.AllAlerts)
			r.Get("/active", router.handler.ActiveAlerts)
			r.Get("/{id}", router.handler.AlertByID)
			r.Post("/{id}/acknowledge", router.handler.AcknowledgeAlert)
			r.Post("/{id}/resolve", router.handler.ResolveAlert)
		})

		r.Route("/playbooks", func(r chi.Router) {
			r.Get("/", router.handler.Playbooks)
			r.Get("/executions", router.handler.PlaybookExecutions)
			r.Post("/{id}/execute", router.handler.ExecutePlaybook)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/risk", router.handler.AnalyticsRisk)
			r.Get("/timeline", router.handler.AnalyticsTimeline)
			r.Get("/dashboard", router.handler.AnalyticsDashboard)
		})

		r.Post("/simulate/event", router.handler.SimulateEvent)
	})

	// WebSocket upgrade bypasses the rate limiter: a dashboard holds
	// one long-lived connection, not many requests.
	if router.ws != nil {
		r.Get("/ws", router.ws.ServeWS)
	}

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// rateLimit returns the IP-keyed limiter, or a no-op when disabled.
func (router *Router) rateLimit() func(http.Handler) http.Handler {
	if router.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		router.cfg.RateLimitRequests,
		router.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}
