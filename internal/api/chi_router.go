// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/petabencana/sitioss-reports/internal/config"
	"github.com/petabencana/sitioss-reports/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	webhookSecret string
}

// NewRouter creates a Router from the server and webhook config sections.
func NewRouter(handler *Handler, server *config.ServerConfig, webhook *config.WebhookSourceConfig) *Router {
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = server.CORSOrigins
	mwCfg.RateLimitRequests = server.RateLimitRequests
	if server.RateLimitWindow > 0 {
		mwCfg.RateLimitWindow = server.RateLimitWindow
	}

	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwCfg),
		webhookSecret: webhook.JWTSecret,
	}
}

// SetupChi returns the configured http.Handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Get("/api/v1/status", router.handler.Status)

	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.BearerJWT(router.webhookSecret))
		r.Post("/webhook", router.handler.Webhook)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
