// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/petabencana/sitioss-reports/internal/datasource"
	"github.com/petabencana/sitioss-reports/internal/logging"
	"github.com/petabencana/sitioss-reports/internal/models"
	"github.com/petabencana/sitioss-reports/internal/reconnect"
	"github.com/petabencana/sitioss-reports/internal/validation"
)

// maxWebhookBody bounds the size of one pushed event.
const maxWebhookBody = 1 << 20

// Prober checks storage connectivity.
type Prober interface {
	Probe(ctx context.Context) error
}

// ControllerStatus reports the reconnection state machine.
type ControllerStatus interface {
	State() reconnect.State
	Attempts() int
}

// SourceStatuser lists per-source buffering state.
type SourceStatuser interface {
	Status() []models.SourceStatus
}

// WebhookReceiver accepts raw pushed events.
type WebhookReceiver interface {
	PushRaw(data []byte) (models.IncomingEvent, error)
}

// Handler serves the API endpoints.
type Handler struct {
	storage      Prober
	controller   ControllerStatus
	sources      SourceStatuser
	webhook      WebhookReceiver
	probeTimeout time.Duration
	startTime    time.Time
}

// NewHandler creates a Handler. webhook may be nil when the webhook source
// is disabled.
func NewHandler(storage Prober, controller ControllerStatus, sources SourceStatuser, webhook WebhookReceiver, probeTimeout time.Duration) *Handler {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &Handler{
		storage:      storage,
		controller:   controller,
		sources:      sources,
		webhook:      webhook,
		probeTimeout: probeTimeout,
		startTime:    time.Now(),
	}
}

// HealthLive reports that the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 only when storage answers a probe and the
// reconnection controller is HEALTHY; otherwise 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	state := h.controller.State()

	ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
	defer cancel()
	probeErr := h.storage.Probe(ctx)

	body := map[string]interface{}{
		"ready":           probeErr == nil && state == reconnect.Healthy,
		"storage":         probeErr == nil,
		"reconnect_state": state.String(),
		"reconnect_tries": h.controller.Attempts(),
	}

	if probeErr != nil || state != reconnect.Healthy {
		logging.Ctx(r.Context()).Debug().Err(probeErr).Str("state", state.String()).Msg("not ready")
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   "error",
			Data:     body,
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    "NOT_READY",
				Message: "storage unavailable or recovering",
			},
		})
		return
	}
	respondData(w, http.StatusOK, body)
}

// Status returns the reconnection state and per-source buffering.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, models.PipelineStatus{
		State:    h.controller.State().String(),
		Attempts: h.controller.Attempts(),
		Sources:  h.sources.Status(),
	})
}

// Webhook accepts one JSON event and hands it to the webhook data source.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhook == nil {
		respondError(w, http.StatusNotFound, "WEBHOOK_DISABLED", "Webhook source is not enabled", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Event exceeds size limit", nil)
			return
		}
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Could not read request body", err)
		return
	}

	ev, err := h.webhook.PushRaw(body)
	if err != nil {
		h.webhookError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Debug().Str("event_id", ev.ID).Msg("webhook event accepted")
	respondData(w, http.StatusAccepted, map[string]string{"id": ev.ID})
}

func (h *Handler) webhookError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.Is(err, datasource.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusServiceUnavailable, "QUEUE_FULL", "Webhook queue is full", nil)
	case errors.As(err, &verr):
		details := make(map[string]interface{}, len(verr.Fields))
		for _, f := range verr.Fields {
			details[f.Field] = f.Message
		}
		respondErrorDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Event failed validation", details, nil)
	default:
		logging.Ctx(r.Context()).Debug().Err(err).Msg("webhook payload rejected")
		respondError(w, http.StatusBadRequest, "INVALID_EVENT", "Event could not be decoded", nil)
	}
}
