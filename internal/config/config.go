// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package config loads and validates Cadence configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (cadence.yaml, or the path in CADENCE_CONFIG)
//  3. Environment Variables: CADENCE_<SECTION>_<KEY>, e.g. CADENCE_SERVICE_DOMAIN
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"time"
)

// Config holds all Cadence configuration.
type Config struct {
	Service    ServiceConfig    `koanf:"service"`
	OAuth      OAuthConfig      `koanf:"oauth"`
	Sync       SyncConfig       `koanf:"sync"`
	Listen     ListenConfig     `koanf:"listen"`
	Device     DeviceConfig     `koanf:"device"`
	Store      StoreConfig      `koanf:"store"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServiceConfig describes the remote cloud service.
type ServiceConfig struct {
	// Domain is the base URL every relative API path is resolved against.
	Domain string `koanf:"domain" validate:"required,url"`

	// RealtimeURL is the WebSocket endpoint for pushed object events.
	// Empty disables the realtime client.
	RealtimeURL string `koanf:"realtime_url" validate:"omitempty,url"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// PingAttempts is how many consecutive ping failures declare disconnection.
	PingAttempts int `koanf:"ping_attempts" validate:"min=1,max=10"`

	// ReconnectInterval is the period of the reconnect ping while disconnected.
	ReconnectInterval time.Duration `koanf:"reconnect_interval" validate:"gt=0"`

	// RateLimit caps outbound requests per second (0 = unlimited).
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`

	// Burst is the token bucket size when RateLimit is set.
	Burst int `koanf:"burst" validate:"min=0"`
}

// OAuthConfig holds the application's OAuth consumer credentials.
// The per-user token and secret are obtained when linking and live in the store.
type OAuthConfig struct {
	ConsumerKey    string `koanf:"consumer_key"`
	ConsumerSecret string `koanf:"consumer_secret"`
}

// SyncConfig tunes the outgoing sync buffer and the inbound bridge buffer.
type SyncConfig struct {
	FlushDelay   time.Duration `koanf:"flush_delay" validate:"gt=0"`
	InboundDelay time.Duration `koanf:"inbound_delay" validate:"gt=0"`
	QueueSize    int           `koanf:"queue_size" validate:"min=1"`
	Workers      int           `koanf:"workers" validate:"min=1"`
}

// ListenConfig tunes the listen tracker.
type ListenConfig struct {
	Enabled           bool            `koanf:"enabled"`
	StartDelay        time.Duration   `koanf:"start_delay" validate:"gt=0"`
	MinimumListenTime time.Duration   `koanf:"minimum_listen_time" validate:"gt=0"`
	RetrySteps        []time.Duration `koanf:"retry_steps" validate:"min=1,dive,gt=0"`
	RetryConcurrency  int             `koanf:"retry_concurrency" validate:"min=1"`
}

// DeviceConfig describes this installation as a remote device.
type DeviceConfig struct {
	Name                    string        `koanf:"name" validate:"required"`
	Version                 string        `koanf:"version"`
	WaitTimeout             time.Duration `koanf:"wait_timeout" validate:"gt=0"`
	WaitStep                time.Duration `koanf:"wait_step" validate:"gt=0"`
	MaxRegistrationAttempts int           `koanf:"max_registration_attempts" validate:"min=1"`
}

// StoreConfig locates the durable local state.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is the period of value log garbage collection.
	GCInterval time.Duration `koanf:"gc_interval" validate:"gt=0"`
}

// APIConfig configures the local control surface.
type APIConfig struct {
	Host              string        `koanf:"host" validate:"required"`
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig holds suture tree tuning.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
