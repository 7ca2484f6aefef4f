// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

/*
Package cycler provides a cycling workflow metascheduler: a
dependency-driven task scheduler that runs forecast task classes on
repeating reference-time cycles, matching each instance's
prerequisites against the rest of the live pool before dispatching it.

# Basic usage

	cfg := config.NewDefault()
	launcher := scheduler.NewDummyLauncher(deliverFunc, nil)
	s := cycler.New(cfg, logger, metrics.NewInMemoryCollector(), launcher)

	for _, class := range registry.Classes() {
	    if _, err := s.Seed(class, startRefTime, ""); err != nil {
	        log.Fatal(err)
	    }
	}

	if err := s.Run(ctx); err != nil && err != context.Canceled {
	    log.Fatal(err)
	}

New is a thin wrapper over internal/scheduler.New: this package exists
so cmd/ consumers import one path for construction instead of reaching
into internal/. There is no version-adapter layer here, because the
scheduling core has exactly one behavior, not several APIs to bridge.
*/
package cycler

import (
	"github.com/nzmetsched/cycler/internal/scheduler"
	"github.com/nzmetsched/cycler/pkg/config"
	"github.com/nzmetsched/cycler/pkg/logging"
	"github.com/nzmetsched/cycler/pkg/metrics"
)

// Option configures a Scheduler at construction.
type Option = scheduler.Option

// Scheduler is the live task pool and its match/dispatch/abdicate loop.
type Scheduler = scheduler.Scheduler

// ExternalLauncher performs the actual external job launch.
type ExternalLauncher = scheduler.ExternalLauncher

// New constructs a Scheduler ready to Seed classes and Run.
func New(cfg *config.Config, logger logging.Logger, collector metrics.Collector, external ExternalLauncher, opts ...Option) *Scheduler {
	return scheduler.New(cfg, logger, collector, external, opts...)
}
