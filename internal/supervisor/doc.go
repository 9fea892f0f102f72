// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

/*
Package supervisor arranges the long-running services of the ingester into
a suture supervision tree.

	sitioss-reports (root)
	├── data-layer       storage health watcher, reconnection controller
	├── messaging-layer  embedded NATS server, report orchestrator (all sources)
	└── api-layer        HTTP server

Each layer restarts its own failed services with backoff. A service that
returns an error wrapping suture.ErrDoNotRestart is removed rather than
restarted; the reconnection controller uses this once it has given up on
storage and the process is about to exit.

Supervisor events are logged through sutureslog on the zerolog slog handler.
*/
package supervisor
