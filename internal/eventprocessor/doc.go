// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package eventprocessor provides the NATS messaging plumbing: an optional
// embedded server, a circuit-breaking watermill publisher used for outbound
// replies, and a watermill subscriber used by the NATS data source.
//
// Messages travel over core NATS subjects with queue groups, so several
// ingesters can share one subject without coordination.
package eventprocessor
