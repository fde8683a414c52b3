// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

/*
Package services provides the suture.Service implementations run by auditd.

Each service translates a component's lifecycle into suture's context-aware
Serve method and identifies itself through fmt.Stringer.

# Available Services

RetentionService (storage layer):
  - Calls Manager.ApplyRetention once at start and then on every interval
  - Sweep failures are logged and retried on the next tick
  - Stops for good once the manager is destroyed

IngestService (ingest layer):
  - Reads newline-delimited JSON events from stdin or a file
  - Hands each event to Manager.LogSync so store latency never stalls reads
  - Idles after EOF so a finished source is not replayed on restart

HTTPService (api layer):
  - Serves the admin router (health, liveness, metrics)
  - Graceful Shutdown bounded by a timeout on context cancellation

# Manager Lifecycle

The audit manager itself is not a service. It is created before the tree
starts and destroyed after the tree stops, so the final flush runs once
every producer has exited:

	manager, _ := pipeline.New(ctx, cfg.Audit)
	tree.AddStorageService(services.NewRetentionService(manager, time.Hour))
	tree.AddIngestService(services.NewIngestService(manager, services.OpenSource("-")))
	_ = tree.Serve(ctx)
	manager.Destroy(context.Background())

# Error Handling

Returning suture.ErrDoNotRestart stops a service permanently; any other
error triggers a restart subject to the tree's failure threshold and
backoff.
*/
package services
