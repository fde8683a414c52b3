// Auditflow - Embeddable Audit Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditflow

/*
Package supervisor provides process supervision for auditd using suture v4.

# Overview

The tree groups long-running services in three layers for failure isolation:

	RootSupervisor ("auditflow")
	├── StorageSupervisor ("storage-layer")
	│   └── RetentionService
	├── IngestSupervisor ("ingest-layer")
	│   └── IngestService (if ingest.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (if server.enabled)

A crashed service is restarted with backoff; restarts in one layer leave
the other layers running. Supervisor events are logged through sutureslog
into the zerolog pipeline.

# Usage

	tree, err := supervisor.NewSupervisorTree(nil, supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddStorageService(services.NewRetentionService(manager, cfg.Retention.Interval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

The audit Manager itself is not a supervised service: it is created before
the tree starts and destroyed after the tree stops, so a final flush runs
once every producer has exited.
*/
package supervisor
