// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package eventprocessor

import (
	"time"

	"github.com/petabencana/sitioss-reports/internal/config"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host     string
	Port     int
	StoreDir string
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// SubscriberConfig holds subscriber configuration.
type SubscriberConfig struct {
	URL              string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// ServerConfigFrom maps the nats config section.
func ServerConfigFrom(cfg *config.NATSConfig) ServerConfig {
	return ServerConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		StoreDir: cfg.StoreDir,
	}
}

// PublisherConfigFrom maps the nats config section.
func PublisherConfigFrom(url string, cfg *config.NATSConfig) PublisherConfig {
	return PublisherConfig{
		URL:             url,
		MaxReconnects:   cfg.MaxReconnects,
		ReconnectWait:   cfg.ReconnectWait,
		ReconnectBuffer: 8 * 1024 * 1024,
	}
}

// SubscriberConfigFrom maps the nats config sections.
func SubscriberConfigFrom(url string, cfg *config.Config) SubscriberConfig {
	return SubscriberConfig{
		URL:        url,
		QueueGroup: cfg.Sources.NATS.QueueGroup,
		// One subscriber keeps per-subject arrival order.
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    cfg.NATS.MaxReconnects,
		ReconnectWait:    cfg.NATS.ReconnectWait,
	}
}
