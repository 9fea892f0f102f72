// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

/*
Command server runs the crowd report ingester.

Reports arrive from any mix of upstream feeds (websocket stream, NATS
subject, Redis channel, Kafka topic, HTTP webhook). Each accepted report is
persisted to PostgreSQL/PostGIS and its author gets a reply. When storage
becomes unreachable every feed switches to buffering mode; once a probe
succeeds again the buffers replay in arrival order. If storage stays down
for the configured number of attempts, the admins are notified once and the
process exits with status 1.

# Supervision

	sitioss-reports
	├── data-layer       storage health watcher, reconnection controller
	├── messaging-layer  embedded NATS server (optional), report orchestrator
	└── api-layer        HTTP server

# Startup

 1. Configuration: koanf (defaults, then config.yaml, then environment)
 2. Logging: zerolog
 3. Storage: database/sql with the pgx driver, plus one connectivity check;
    failure exits 1
 4. Messaging: embedded or external NATS when a NATS transport is used
 5. Replies: sender stack (transport, circuit breaker, rate limit)
 6. Orchestrator, report strategy and one adapter per enabled feed
 7. Reconnection controller subscribed to storage faults
 8. Supervisor tree; SIGINT or SIGTERM stops it and exits 0
*/
package main
