// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/nzmetsched/cycler/internal/jobstatus"
	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/registry"
	"github.com/nzmetsched/cycler/internal/requisite"
	"github.com/nzmetsched/cycler/internal/task"
	"github.com/nzmetsched/cycler/pkg/logging"
	"github.com/nzmetsched/cycler/pkg/metrics"
	"github.com/nzmetsched/cycler/pkg/pool"
	"github.com/nzmetsched/cycler/pkg/retry"
)

// ExternalLauncher performs the actual external job launch (dummy
// driver or a real submission command), synchronously reporting
// accepted-or-failed (spec §6).
type ExternalLauncher interface {
	Launch(ctx context.Context, class string, refTime reftime.Stamp, dummyRate float64) error
}

// dispatchLauncher adapts an ExternalLauncher into a task.Launcher: the
// worker pool bounds concurrent in-flight launches (spec §5), and a
// retry policy absorbs transient failures inside the fire-and-forget
// goroutine without blocking the scheduler's synchronous accept decision.
type dispatchLauncher struct {
	workers     *pool.WorkerPool
	external    ExternalLauncher
	retryPolicy retry.Policy
	logger      logging.Logger
	metrics     metrics.Collector
}

func (d *dispatchLauncher) Launch(ctx context.Context, class string, refTime reftime.Stamp, dummyRate float64) error {
	return d.workers.Run(ctx, class, func() {
		err := retry.Do(ctx, d.retryPolicy, func() error {
			return d.external.Launch(ctx, class, refTime, dummyRate)
		})
		if err != nil {
			d.metrics.RecordDispatchFailure(class)
			d.logger.Error("external launch failed after retries",
				"class", class, "ref_time", string(refTime), "error", err.Error())
		}
	})
}

// DummyDeliver is called by DummyLauncher as each simulated
// postrequisite token comes due.
type DummyDeliver func(class string, refTime reftime.Stamp, severity task.Severity, text string)

// DummyLauncher simulates an external job's lifecycle from a class's
// registered timed postrequisites instead of invoking a real command
// (spec §4.3 run_if_ready step 3's dummy-mode branch; the original's
// task_dummy.py driver). Each registered offset is elapsed minutes
// since job start; dummyRate scales simulated minutes to wall-clock
// seconds.
type DummyLauncher struct {
	deliver   DummyDeliver
	jobStatus *jobstatus.Writer
}

// NewDummyLauncher constructs a DummyLauncher that reports finished
// postrequisite tokens back through deliver.
func NewDummyLauncher(deliver DummyDeliver, jobStatus *jobstatus.Writer) *DummyLauncher {
	return &DummyLauncher{deliver: deliver, jobStatus: jobStatus}
}

func (d *DummyLauncher) Launch(ctx context.Context, class string, refTime reftime.Stamp, dummyRate float64) error {
	desc, err := registry.Lookup(class)
	if err != nil {
		return err
	}
	post, err := desc.BuildPostrequisites(refTime)
	if err != nil {
		return err
	}
	timed, ok := post.(*requisite.Timed)
	if !ok {
		return fmt.Errorf("dummy launcher: %s postrequisites have no timed schedule", class)
	}

	rate := dummyRate
	if rate <= 0 {
		rate = 1
	}

	identity := class + "%" + string(refTime)
	now := time.Now()
	if d.jobStatus != nil {
		if err := d.jobStatus.Started(identity, syntheticPID(), now); err != nil {
			return err
		}
	}

	entries := timed.GetTimes()
	go func() {
		lastOffset := 0.0
		for _, e := range entries {
			deltaMinutes := e.OffsetMinutes - lastOffset
			lastOffset = e.OffsetMinutes
			wait := time.Duration(deltaMinutes / rate * float64(time.Second))

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			d.deliver(class, refTime, task.SeverityNormal, e.Token)
		}
		if d.jobStatus != nil {
			_ = d.jobStatus.Succeeded(identity, time.Now())
		}
	}()

	return nil
}

func syntheticPID() int {
	return int(time.Now().UnixNano()%30000) + 2
}
