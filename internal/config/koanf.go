// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"auditflow.yaml",
	"auditflow.yml",
	"/etc/auditflow/config.yaml",
	"/etc/auditflow/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix marks environment variables addressing config paths directly.
// A double underscore separates nesting levels:
//
//	AUDITFLOW_AUDIT__BATCH_SIZE=500 -> audit.batch_size
const EnvPrefix = "AUDITFLOW_"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Caller:  false,
			Service: "auditflow",
		},
		Audit: AuditConfig{
			Enabled:          true,
			Categories:       []string{"SECURITY", "DATA", "SYSTEM", "BUSINESS"},
			MinSeverity:      "LOW",
			RetentionDays:    90,
			RealTimeAlerting: true,
			AsyncProcessing:  true,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			DataMasking:      true,
			Compression:      false,
			Sinks: []SinkConfig{
				{
					Name: "file",
					Type: SinkTypeFile,
					File: FileSinkConfig{
						Path:       "/data/audit/audit.log",
						MaxSize:    100 * 1024 * 1024, // 100MB
						Rotation:   "size",
						Compress:   true,
						MaxBackups: 10,
					},
					Breaker: BreakerConfig{
						Enabled:          true,
						FailureThreshold: 5,
						Timeout:          30 * time.Second,
					},
				},
			},
		},
		Server: ServerConfig{
			Enabled:         true,
			Addr:            ":9464",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			HealthRateLimit: 120,
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
		Ingest: IngestConfig{
			Enabled: false,
			Source:  "-",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	return defaultConfig()
}

// Load loads configuration with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults. The result is validated.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
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

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"audit.categories",
	"audit.mask_patterns",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
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

// legacyEnvMappings maps flat environment variable names to config paths.
var legacyEnvMappings = map[string]string{
	// Logging
	"log_level":   "logging.level",
	"log_format":  "logging.format",
	"log_caller":  "logging.caller",
	"log_service": "logging.service",

	// Audit policy
	"audit_enabled":            "audit.enabled",
	"audit_categories":         "audit.categories",
	"audit_min_severity":       "audit.min_severity",
	"audit_retention_days":     "audit.retention_days",
	"audit_real_time_alerting": "audit.real_time_alerting",
	"audit_async_processing":   "audit.async_processing",
	"audit_batch_size":         "audit.batch_size",
	"audit_flush_interval":     "audit.flush_interval",
	"audit_data_masking":       "audit.data_masking",
	"audit_compression":        "audit.compression",
	"audit_mask_patterns":      "audit.mask_patterns",

	// Server
	"http_enabled":           "server.enabled",
	"http_addr":              "server.addr",
	"http_shutdown_timeout":  "server.shutdown_timeout",
	"http_health_rate_limit": "server.health_rate_limit",

	// Retention
	"retention_enabled":  "retention.enabled",
	"retention_interval": "retention.interval",

	// Ingest
	"ingest_enabled":    "ingest.enabled",
	"ingest_source":     "ingest.source",
	"ingest_rate_limit": "ingest.rate_limit",
	"ingest_burst":      "ingest.burst",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - AUDITFLOW_AUDIT__BATCH_SIZE -> audit.batch_size
//   - AUDITFLOW_SERVER__ADDR -> server.addr
//   - AUDIT_BATCH_SIZE -> audit.batch_size
//   - LOG_LEVEL -> logging.level
//
// Unknown names return "" so unrelated environment variables are skipped.
func envTransformFunc(key string) string {
	if strings.HasPrefix(key, EnvPrefix) {
		path := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if path == "" {
			return ""
		}
		return strings.ReplaceAll(path, "__", ".")
	}

	return legacyEnvMappings[strings.ToLower(key)]
}
