// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/petabencana/sitioss-reports/internal/validation"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "pgx", "duckdb":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be pgx or duckdb, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" && c.Database.Driver == "pgx" {
		return fmt.Errorf("PG_CON_STRING is required for the pgx driver")
	}
	if c.Database.ReconnectionAttempts < 1 {
		return fmt.Errorf("PG_RECONNECTION_ATTEMPTS must be at least 1, got %d", c.Database.ReconnectionAttempts)
	}
	if c.Database.ReconnectionDelay <= 0 {
		return fmt.Errorf("PG_RECONNECTION_DELAY must be positive, got %v", c.Database.ReconnectionDelay)
	}
	if c.Database.HealthInterval < 0 {
		return fmt.Errorf("DATABASE_HEALTH_INTERVAL must not be negative")
	}
	if c.Database.QueryTimeout < 0 {
		return fmt.Errorf("DATABASE_QUERY_TIMEOUT must not be negative")
	}
	return nil
}

func (c *Config) validateNotify() error {
	switch c.Notify.Transport {
	case "log", "nats":
	default:
		return fmt.Errorf("NOTIFY_TRANSPORT must be log or nats, got %q", c.Notify.Transport)
	}
	if c.Notify.URLLength < 0 {
		return fmt.Errorf("NOTIFY_URL_LENGTH must not be negative")
	}
	if c.Notify.DefaultLanguage == "" {
		return fmt.Errorf("NOTIFY_DEFAULT_LANGUAGE is required")
	}
	return c.MessageLength().CheckMessages(c.Notify.Messages)
}

// MessageLength returns the reply length policy described by the notify section.
func (c *Config) MessageLength() validation.MessageLength {
	return validation.MessageLength{
		Budget:       c.Notify.MessageBudget,
		AddTimestamp: c.Notify.AddTimestamp,
		URLLength:    c.Notify.URLLength,
	}
}

func (c *Config) validateSources() error {
	s := c.Sources
	if s.EventTimeout <= 0 {
		return fmt.Errorf("SOURCES_EVENT_TIMEOUT must be positive, got %v", s.EventTimeout)
	}
	if s.Websocket.Enabled {
		if err := validateURL(s.Websocket.URL, "ws", "wss"); err != nil {
			return fmt.Errorf("WEBSOCKET_SOURCE_URL is invalid: %w", err)
		}
	}
	if s.NATS.Enabled && s.NATS.Subject == "" {
		return fmt.Errorf("NATS_SOURCE_SUBJECT is required when the NATS source is enabled")
	}
	if s.Redis.Enabled && (s.Redis.Addr == "" || s.Redis.Channel == "") {
		return fmt.Errorf("REDIS_ADDR and REDIS_CHANNEL are required when the Redis source is enabled")
	}
	if s.Kafka.Enabled && (len(s.Kafka.Brokers) == 0 || s.Kafka.Topic == "") {
		return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required when the Kafka source is enabled")
	}
	if s.Webhook.Enabled && s.Webhook.QueueSize < 1 {
		return fmt.Errorf("sources.webhook.queue_size must be at least 1")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		if err := validateURL(origin, "http", "https"); err != nil {
			return fmt.Errorf("CORS_ORIGINS entry %q is invalid: %w", origin, err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "verbose", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host")
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
}
