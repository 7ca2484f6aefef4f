// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package pool bounds the number of concurrently in-flight fire-and-forget
// launches so a burst of simultaneous dispatches from one matching pass
// (spec §5) cannot unboundedly fork goroutines.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/nzmetsched/cycler/pkg/logging"
)

// WorkerPool bounds concurrent execution of launch tasks per task class.
type WorkerPool struct {
	mu      sync.RWMutex
	workers map[string]*pooledWorker
	config  *PoolConfig
	logger  logging.Logger
}

// pooledWorker wraps a per-class launch semaphore with usage statistics.
type pooledWorker struct {
	sem      chan struct{}
	created  time.Time
	lastUsed time.Time
	useCount int64
	active   int32
}

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	// MaxConcurrentPerClass limits simultaneous in-flight launches for a
	// single task class (spec §4.3 step 1 already serialises a class by
	// ref_time; this bounds goroutine fan-out for the same guarantee).
	MaxConcurrentPerClass int

	// IdleTimeout controls how long an unused per-class worker slot is
	// kept before CleanupIdle reclaims it.
	IdleTimeout time.Duration
}

// DefaultPoolConfig returns a pool configuration suited to dummy-mode and
// light external dispatch.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxConcurrentPerClass: 4,
		IdleTimeout:           15 * time.Minute,
	}
}

// NewWorkerPool creates a new launch worker pool.
func NewWorkerPool(config *PoolConfig, logger logging.Logger) *WorkerPool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &WorkerPool{
		workers: make(map[string]*pooledWorker),
		config:  config,
		logger:  logger,
	}
}

// Run executes fn for the given task class, blocking until a worker slot is
// free or ctx is done. Launches remain fire-and-forget to the caller: Run
// itself does not wait for fn's own asynchronous completion beyond fn
// returning (spec §5, "launches ... do not block").
func (p *WorkerPool) Run(ctx context.Context, class string, fn func()) error {
	w := p.worker(class)

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	w.lastUsed = time.Now()
	w.useCount++
	w.active++
	p.mu.Unlock()

	go func() {
		defer func() {
			<-w.sem
			p.mu.Lock()
			w.active--
			p.mu.Unlock()
		}()
		fn()
	}()

	return nil
}

func (p *WorkerPool) worker(class string) *pooledWorker {
	p.mu.RLock()
	w, exists := p.workers[class]
	p.mu.RUnlock()
	if exists {
		return w
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if w, exists := p.workers[class]; exists {
		return w
	}

	w = &pooledWorker{
		sem:      make(chan struct{}, p.config.MaxConcurrentPerClass),
		created:  time.Now(),
		lastUsed: time.Now(),
	}
	p.workers[class] = w
	p.logger.Info("created launch worker slot", "class", class)
	return w
}

// Stats returns statistics about the worker pool.
func (p *WorkerPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		TotalClasses: len(p.workers),
		ClassStats:   make(map[string]ClassStats, len(p.workers)),
	}

	for class, w := range p.workers {
		stats.ClassStats[class] = ClassStats{
			Created:  w.created,
			LastUsed: w.lastUsed,
			UseCount: w.useCount,
			Active:   w.active,
		}
	}

	return stats
}

// CleanupIdle removes per-class worker slots unused since the pool's
// configured IdleTimeout and currently idle.
func (p *WorkerPool) CleanupIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-p.config.IdleTimeout)

	for class, w := range p.workers {
		if w.lastUsed.Before(cutoff) && w.active == 0 {
			delete(p.workers, class)
			removed++
			p.logger.Info("removed idle launch worker slot", "class", class)
		}
	}

	return removed
}

// PoolStats contains statistics about the worker pool.
type PoolStats struct {
	TotalClasses int
	ClassStats   map[string]ClassStats
}

// ClassStats contains statistics for a single class's worker slot.
type ClassStats struct {
	Created  time.Time
	LastUsed time.Time
	UseCount int64
	Active   int32
}
