// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package scheduler holds the live task pool and drives the
// single-pass match -> dispatch -> abdicate loop over it (spec §4.5,
// §5), consuming inbound messages from a mailbox and owning the
// process-wide per-class catchup/uptodate flag (spec §9).
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nzmetsched/cycler/internal/jobstatus"
	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/registry"
	"github.com/nzmetsched/cycler/internal/task"
	"github.com/nzmetsched/cycler/pkg/config"
	cyclererrors "github.com/nzmetsched/cycler/pkg/errors"
	"github.com/nzmetsched/cycler/pkg/logging"
	"github.com/nzmetsched/cycler/pkg/metrics"
	"github.com/nzmetsched/cycler/pkg/pool"
	"github.com/nzmetsched/cycler/pkg/retry"
)

// Scheduler owns the live instance pool and the per-class catchup mode
// flags. One Scheduler serialises all pool mutation behind mu; the
// match/dispatch/abdicate passes and mailbox processing never run
// concurrently with each other (spec §5's single-threaded guarantee).
type Scheduler struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics metrics.Collector

	mu        sync.Mutex
	instances []*task.Instance
	catchup   map[string]bool

	mailbox  chan inboundMessage
	seenMsgs map[string]bool

	launcher  task.Launcher
	jobStatus *jobstatus.Writer
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithJobStatus attaches a job status file writer (spec §6, §8
// scenario 6). Without it, job status recording is skipped.
func WithJobStatus(w *jobstatus.Writer) Option {
	return func(s *Scheduler) { s.jobStatus = w }
}

// New constructs a Scheduler. external drives the actual fire-and-forget
// job launch (dummy or real); it is wrapped with a worker pool bound and
// a retry policy before being handed to task instances as their Launcher.
func New(cfg *config.Config, logger logging.Logger, collector metrics.Collector, external ExternalLauncher, opts ...Option) *Scheduler {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	s := &Scheduler{
		cfg:      cfg,
		logger:   logger,
		metrics:  collector,
		catchup:  make(map[string]bool),
		mailbox:  make(chan inboundMessage, 256),
		seenMsgs: make(map[string]bool),
	}

	workers := pool.NewWorkerPool(pool.DefaultPoolConfig(), logger)
	s.launcher = &dispatchLauncher{
		workers:     workers,
		external:    external,
		retryPolicy: retry.NewExponentialBackoffPolicy(),
		logger:      logger,
		metrics:     collector,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// catchupModeFor reports the process-wide catchup flag for class,
// defaulting to true (topnet starts in catchup mode per tasks.py).
func (s *Scheduler) catchupModeFor(class string) bool {
	v, ok := s.catchup[class]
	if !ok {
		return true
	}
	return v
}

// Seed creates and registers a new task instance for class at (a
// valid-hour adjustment of) refTime.
func (s *Scheduler) Seed(class string, refTime reftime.Stamp, initialState string) (*task.Instance, error) {
	desc, err := registry.Lookup(class)
	if err != nil {
		return nil, err
	}

	adjusted, err := reftime.NearestRefTime(refTime, desc.ValidHours)
	if err != nil {
		return nil, err
	}

	if _, found := s.Find(desc.Class, adjusted); found {
		return nil, cyclererrors.DuplicateInstance(desc.Class + "%" + string(adjusted))
	}

	s.mu.Lock()
	catchup := s.catchupModeFor(desc.Class)
	s.mu.Unlock()

	pre, err := desc.BuildPrerequisites(adjusted, catchup)
	if err != nil {
		return nil, err
	}
	post, err := desc.BuildPostrequisites(adjusted)
	if err != nil {
		return nil, err
	}

	maxFinished := desc.MaxFinished
	if desc.Variant == task.VariantRunaheadLimited && s.cfg.MaxFinished > 0 {
		maxFinished = s.cfg.MaxFinished
	}

	inst, err := task.New(task.Params{
		Class:          desc.Class,
		ValidHours:     desc.ValidHours,
		RefTime:        adjusted,
		Prerequisites:  pre,
		Postrequisites: post,
		Variant:        desc.Variant,
		MaxFinished:    maxFinished,
		InitialState:   initialState,
		Logger:         s.logger.With("class", desc.Class, "ref_time", string(adjusted)),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.instances = append(s.instances, inst)
	s.mu.Unlock()

	s.logger.Info("seeded task instance", "task", inst.Identity())
	return inst, nil
}

// AddInstance registers an already-constructed task instance directly,
// bypassing the class registry. This is for synthetic workloads (the
// scaling dry-run tool) that are not one of the registered forecast
// task classes. It returns an error if an instance already exists for
// inst's (class, ref_time) pair.
func (s *Scheduler) AddInstance(inst *task.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.instances {
		if existing.Class == inst.Class && existing.RefTime == inst.RefTime {
			return cyclererrors.DuplicateInstance(inst.Identity())
		}
	}
	s.instances = append(s.instances, inst)
	return nil
}

// Pool returns a snapshot of the live instance slice. Callers must not
// mutate the returned slice's instances outside the scheduler loop.
func (s *Scheduler) Pool() []*task.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*task.Instance, len(s.instances))
	copy(out, s.instances)
	return out
}

// Find returns the live instance for (class, refTime), if any.
func (s *Scheduler) Find(class string, refTime reftime.Stamp) (*task.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.Class == class && inst.RefTime == refTime {
			return inst, true
		}
	}
	return nil, false
}

// runPasses executes one match -> dispatch -> abdicate cycle.
func (s *Scheduler) runPasses(ctx context.Context) {
	start := time.Now()
	pool := s.Pool()

	for _, inst := range pool {
		inst.GetSatisfaction(pool)
	}

	for _, inst := range pool {
		result, err := inst.RunIfReady(ctx, pool, s.cfg.DummyRate, s.launcher)
		switch result {
		case task.RunResultDispatched:
			s.metrics.RecordDispatch(inst.Class)
			s.logger.Info("dispatched", "task", inst.Identity())
		case task.RunResultDispatchFailed:
			s.metrics.RecordDispatchFailure(inst.Class)
			s.logger.Warn("dispatch failed, left waiting", "task", inst.Identity(), "error", errString(err))
		}
	}

	for _, inst := range pool {
		if !inst.Abdicate() {
			continue
		}
		s.metrics.RecordAbdication(inst.Class)
		next, err := reftime.NextRefTime(inst.RefTime, inst.ValidHours)
		if err != nil {
			s.logger.Error("could not compute successor ref_time", "task", inst.Identity(), "error", err.Error())
			continue
		}
		if _, found := s.Find(inst.Class, next); found {
			s.logger.Warn("successor already exists, skipping abdication seed", "task", inst.Identity(), "successor_ref_time", string(next))
			continue
		}
		if _, err := s.Seed(inst.Class, next, ""); err != nil {
			s.logger.Error("abdication failed to seed successor", "task", inst.Identity(), "error", err.Error())
		}
	}

	s.metrics.RecordMatchPass(time.Since(start))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Retired reports how many instances of class have finished and
// abdicated, for operator inspection; the original leaves retirement
// policy undecided (spec §9) and this repo does not prune the pool.
func (s *Scheduler) Retired(class string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, inst := range s.instances {
		if inst.Class == class && inst.Abdicated {
			n++
		}
	}
	return n
}

// SortedClasses returns every class currently represented in the pool,
// alphabetically, for a stable inspection-router listing.
func (s *Scheduler) SortedClasses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, inst := range s.instances {
		if !seen[inst.Class] {
			seen[inst.Class] = true
			out = append(out, inst.Class)
		}
	}
	sort.Strings(out)
	return out
}
