// Cadence - Cloud Sync Engine for Desktop Music Players
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CADENCE_CONFIG"

// envPrefix namespaces every environment override.
const envPrefix = "CADENCE_"

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"cadence.yaml",
	"cadence.yml",
}

// DefaultListenRetrySteps is the listen retry schedule used when none is configured.
var DefaultListenRetrySteps = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	180 * time.Second,
	300 * time.Second,
}

// defaultConfig returns a Config with all defaults applied.
func defaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "cadence"
	}

	return &Config{
		Service: ServiceConfig{
			Domain:            "https://api.stoffi.io",
			RealtimeURL:       "",
			Timeout:           30 * time.Second,
			PingAttempts:      3,
			ReconnectInterval: 15 * time.Second,
			RateLimit:         0,
			Burst:             10,
		},
		Sync: SyncConfig{
			FlushDelay:   500 * time.Millisecond,
			InboundDelay: 500 * time.Millisecond,
			QueueSize:    256,
			Workers:      1,
		},
		Listen: ListenConfig{
			Enabled:           true,
			StartDelay:        2 * time.Second,
			MinimumListenTime: 15 * time.Second,
			RetrySteps:        append([]time.Duration(nil), DefaultListenRetrySteps...),
			RetryConcurrency:  4,
		},
		Device: DeviceConfig{
			Name:                    hostname,
			Version:                 "dev",
			WaitTimeout:             30 * time.Second,
			WaitStep:                250 * time.Millisecond,
			MaxRegistrationAttempts: 3,
		},
		Store: StoreConfig{
			Path:       defaultStorePath(),
			InMemory:   false,
			GCInterval: 10 * time.Minute,
		},
		API: APIConfig{
			Host:              "127.0.0.1",
			Port:              7291,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Default returns the built-in configuration. Useful for tests and embedding.
func Default() *Config {
	return defaultConfig()
}

// defaultStorePath returns the per-user state directory.
func defaultStorePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cadence", "state")
	}
	return filepath.Join(".", "cadence-state")
}

// Load loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps CADENCE_SERVICE_DOMAIN to service.domain.
// The first underscore after the prefix separates the section from the key;
// the remaining underscores are part of the key name.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if key == "config" {
		return ""
	}
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"listen.retry_steps",
}

// processSliceFields converts comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
