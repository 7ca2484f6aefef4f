// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command cyclerd runs the cycling workflow scheduler with an HTTP
// inspection surface (spec §4.6). In dummy mode (the default) it
// seeds the registered task classes at startup and simulates job
// lifecycles without invoking any real external command.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nzmetsched/cycler/internal/jobstatus"
	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/registry"
	"github.com/nzmetsched/cycler/internal/scheduler"
	"github.com/nzmetsched/cycler/internal/task"
	"github.com/nzmetsched/cycler/pkg/config"
	"github.com/nzmetsched/cycler/pkg/logging"
	"github.com/nzmetsched/cycler/pkg/metrics"
)

func main() {
	cfg := config.NewDefault()
	cfg.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logLevel := logging.DefaultConfig()
	if cfg.Debug {
		logLevel.Level = slog.LevelDebug
	}
	logger := logging.NewLogger(logLevel)
	collector := metrics.NewInMemoryCollector()

	if !cfg.DummyMode {
		log.Fatal("cyclerd only supports dummy-mode operation; no real external launcher is wired")
	}

	jobWriter, err := jobstatus.New(cfg.JobStatusDir, logger)
	if err != nil {
		log.Fatalf("could not open job status directory: %v", err)
	}

	var s *scheduler.Scheduler
	dummy := scheduler.NewDummyLauncher(func(class string, refTime reftime.Stamp, severity task.Severity, text string) {
		s.Incoming(class, refTime, severity, text)
	}, jobWriter)

	s = scheduler.New(cfg, logger, collector, dummy, scheduler.WithJobStatus(jobWriter))

	seedStart := reftime.Stamp(startRefTime())
	for _, class := range registry.Classes() {
		if _, err := s.Seed(class, seedStart, ""); err != nil {
			logger.Warn("skipped seeding class", "class", class, "error", err.Error())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("scheduler loop stopped", "error", err.Error())
		}
	}()

	router := newRouter(s, collector, logger)
	addr := ":" + getEnvOrDefault("CYCLER_HTTP_ADDR", "8080")
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("cyclerd listening", "addr", addr)
	fmt.Printf("cyclerd listening on %s\n", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server error: %v", err)
	}
}

func startRefTime() string {
	if v := os.Getenv("CYCLER_START_REF_TIME"); v != "" {
		return v
	}
	return time.Now().UTC().Format(reftime.Layout)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
