// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package models

import "time"

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SourceStatus reports the buffering state of one data source.
type SourceStatus struct {
	Name      string `json:"name"`
	Buffering bool   `json:"buffering"`
	Buffered  int    `json:"buffered"`
}

// PipelineStatus is the body of the status endpoint.
type PipelineStatus struct {
	State    string         `json:"state"`
	Attempts int            `json:"attempts"`
	Sources  []SourceStatus `json:"sources"`
}
