// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

// Package config loads and validates the ingester configuration.
//
// Values are layered with koanf: struct defaults, then an optional YAML file,
// then environment variables. See LoadWithKoanf.
package config

import "time"

// Config is the complete process configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Notify     NotifyConfig     `koanf:"notify"`
	Reports    ReportsConfig    `koanf:"reports"`
	Sources    SourcesConfig    `koanf:"sources"`
	NATS       NATSConfig       `koanf:"nats"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`

	// ExitGrace is how long the process waits after a fatal condition
	// before exiting, so buffered log output reaches its sink.
	ExitGrace time.Duration `koanf:"exit_grace"`
}

// DatabaseConfig holds storage gateway and reconnection settings.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // pgx or duckdb
	DSN    string `koanf:"dsn"`

	ReconnectionDelay    time.Duration `koanf:"reconnection_delay"`
	ReconnectionAttempts int           `koanf:"reconnection_attempts"`
	ProbeTimeout         time.Duration `koanf:"probe_timeout"`
	QueryTimeout         time.Duration `koanf:"query_timeout"` // per statement, 0 disables
	HealthInterval       time.Duration `koanf:"health_interval"` // 0 disables the idle health watcher

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`

	Tables TablesConfig `koanf:"tables"`
}

// TablesConfig names the report tables.
type TablesConfig struct {
	AllReports       string `koanf:"all_reports"`
	Tweets           string `koanf:"tweets"`
	Users            string `koanf:"users"`
	Invitees         string `koanf:"invitees"`
	Unconfirmed      string `koanf:"unconfirmed"`
	NonSpatialUsers  string `koanf:"nonspatial_users"`
	NonSpatialTweets string `koanf:"nonspatial_tweets"`
	AllUsers         string `koanf:"all_users"`
}

// NotifyConfig configures the outbound reply channel.
type NotifyConfig struct {
	// SendEnabled false runs the channel in test mode: replies are logged and
	// their continuations still run, but nothing is sent.
	SendEnabled bool   `koanf:"send_enabled"`
	Transport   string `koanf:"transport"` // log or nats
	Subject     string `koanf:"subject"`

	AdminUsernames []string `koanf:"admin_usernames"`
	// ReplyBlacklist is a comma-separated list of recipients that never get replies.
	ReplyBlacklist string `koanf:"reply_blacklist"`

	AddTimestamp    bool   `koanf:"add_timestamp"`
	URLLength       int    `koanf:"url_length"`
	MessageBudget   int    `koanf:"message_budget"`
	DefaultLanguage string `koanf:"default_language"`

	// Messages maps message kind (invite_text, askforgeo_text, thanks_text)
	// to language code to text.
	Messages map[string]map[string]string `koanf:"messages"`

	RatePerSecond      float64       `koanf:"rate_per_second"`
	Burst              int           `koanf:"burst"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// ReportsConfig drives the report filter.
type ReportsConfig struct {
	// AccountName is our own handle; events from it are ignored and
	// events mentioning it count as addressed.
	AccountName string   `koanf:"account_name"`
	Keywords    []string `koanf:"keywords"`

	KnownUserCacheSize int           `koanf:"known_user_cache_size"`
	KnownUserTTL       time.Duration `koanf:"known_user_ttl"`
}

// SourcesConfig enables and configures each feed.
type SourcesConfig struct {
	Websocket WebsocketSourceConfig `koanf:"websocket"`
	Webhook   WebhookSourceConfig   `koanf:"webhook"`
	NATS      NATSSourceConfig      `koanf:"nats"`
	Redis     RedisSourceConfig     `koanf:"redis"`
	Kafka     KafkaSourceConfig     `koanf:"kafka"`

	// EventTimeout bounds the processing of one event, storage writes and
	// replies included.
	EventTimeout time.Duration `koanf:"event_timeout"`
}

// WebsocketSourceConfig is a streaming feed over a websocket.
type WebsocketSourceConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	Token            string        `koanf:"token"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	ReadTimeout      time.Duration `koanf:"read_timeout"`
	MaxBackoff       time.Duration `koanf:"max_backoff"`
}

// WebhookSourceConfig is the push feed served on the HTTP server.
type WebhookSourceConfig struct {
	Enabled   bool   `koanf:"enabled"`
	JWTSecret string `koanf:"jwt_secret"`
	QueueSize int    `koanf:"queue_size"`
}

// NATSSourceConfig subscribes to a subject on the NATS server.
type NATSSourceConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Subject     string `koanf:"subject"`
	QueueGroup  string `koanf:"queue_group"`
	DurableName string `koanf:"durable_name"`
}

// RedisSourceConfig subscribes to a Redis pub/sub channel.
type RedisSourceConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// KafkaSourceConfig reads a Kafka topic as part of a consumer group.
type KafkaSourceConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	GroupID string   `koanf:"group_id"`
}

// NATSConfig configures the NATS connection and optional embedded server.
type NATSConfig struct {
	EmbeddedServer bool          `koanf:"embedded_server"`
	URL            string        `koanf:"url"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	StoreDir       string        `koanf:"store_dir"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}
