// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

/*
Package config loads and validates auditd configuration.

# Configuration Sources

Configuration is layered with koanf v2, later layers overriding earlier ones:

 1. Built-in defaults (Default)
 2. An optional YAML file: CONFIG_PATH, else the first of DefaultConfigPaths
 3. Environment variables

# Configuration Structure

  - LoggingConfig: level, format, caller, service name
  - AuditConfig: the policy, a list of sinks and a list of alert rules
  - ServerConfig: admin HTTP endpoint (health, liveness, metrics) and its rate limit
  - RetentionConfig: retention sweep interval
  - IngestConfig: NDJSON event ingest from stdin or a file, optionally throttled
  - SupervisorConfig: suture failure thresholds and shutdown timeout

# Environment Variables

Any path can be set with the AUDITFLOW_ prefix and a double underscore
between levels:

	AUDITFLOW_AUDIT__BATCH_SIZE=500
	AUDITFLOW_SERVER__ADDR=127.0.0.1:9464
	AUDITFLOW_AUDIT__CATEGORIES=SECURITY,DATA

Flat names are also accepted for the common settings, for example
LOG_LEVEL, AUDIT_BATCH_SIZE, AUDIT_MIN_SEVERITY and RETENTION_INTERVAL.

Sinks and alert rules are lists and can only be declared in the YAML file:

	audit:
	  batch_size: 200
	  sinks:
	    - name: primary
	      type: database
	      database:
	        dialect: duckdb
	        dsn: /data/audit.duckdb
	      breaker:
	        enabled: true
	    - name: archive
	      type: file
	      file:
	        path: /data/audit/audit.log
	        rotation: daily
	        compress: true
	  alert_rules:
	    - name: login-failures
	      enabled: true
	      level: ERROR
	      event_types: [auth.login_failed]
	      threshold: 5
	      time_window: 5m
*/
package config
