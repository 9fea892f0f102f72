// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

/*
Package middleware provides the HTTP middleware shared by every route.

  - RequestID: reuses or generates an X-Request-ID and attaches it, with a
    fresh correlation id, to the request context used by logging.Ctx.
  - PrometheusMetrics: records request count, latency and in-flight gauge,
    labelled by the chi route pattern to keep label cardinality bounded.
  - BearerJWT: verifies HS256 bearer tokens on push endpoints.

Middleware use the chi signature and compose with r.Use:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.With(middleware.BearerJWT(secret)).Post("/webhook", h)
*/
package middleware
