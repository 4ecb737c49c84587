// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

/*
Package supervisor provides Suture-based process supervision for the
covidmobility server.

The serve command runs a two-layer tree:

	covidmobility (root)
	├── pipeline-layer
	│   ├── run-scheduler       (startup and interval runs)
	│   └── ledger-maintenance  (prune and BadgerDB GC)
	└── api-layer
	    └── http-server

A service that fails is restarted with backoff; a failure in the pipeline
layer never stops the API from serving the ledger.

Supervisor events are logged through sutureslog and the slog adapter of the
logging package:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewRunSchedulerService(runner, 0, true))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
