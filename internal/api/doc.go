// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package api exposes the operational HTTP surface of the ingester: liveness
// and readiness probes, pipeline status, Prometheus metrics and the push
// webhook that feeds the webhook data source.
package api
