// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

/*
Package services adapts long-running components to suture.Service.

  - HTTPServerService: http.Server ListenAndServe/Shutdown
  - RunSchedulerService: pipeline runs on startup and on a fixed interval
  - LedgerMaintenanceService: run ledger retention and BadgerDB value log GC

Each service blocks in Serve until its context is canceled and implements
fmt.Stringer so suture events name it.
*/
package services
