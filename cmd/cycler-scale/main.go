// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command cycler-scale is a dummy-mode dry-run tool: it builds a
// synthetic workload of N tasks arranged in a binary dependency tree
// (T(i/2) => T(i), T(i/2) => T(i+1)) and drives it through the
// scheduler core, reporting how long the whole tree took to complete
// and the resulting dispatch, dispatch-error and match-pass counters.
// It exercises the
// same scheduling core as cyclerd without touching the registered
// forecast task classes.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/requisite"
	"github.com/nzmetsched/cycler/internal/scheduler"
	"github.com/nzmetsched/cycler/internal/task"
	"github.com/nzmetsched/cycler/pkg/config"
	"github.com/nzmetsched/cycler/pkg/logging"
	"github.com/nzmetsched/cycler/pkg/metrics"
)

const scaleRefTime = reftime.Stamp("2011010100")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s N_TASKS [dummy_rate]\n", os.Args[0])
		os.Exit(1)
	}
	n, err := strconv.Atoi(os.Args[1])
	if err != nil || n < 1 {
		fmt.Fprintln(os.Stderr, "N_TASKS must be a positive integer")
		os.Exit(1)
	}
	rate := 1000.0
	if len(os.Args) > 2 {
		if r, err := strconv.ParseFloat(os.Args[2], 64); err == nil && r > 0 {
			rate = r
		}
	}

	cfg := config.NewDefault()
	cfg.DummyRate = rate
	cfg.TickInterval = 20 * time.Millisecond
	collector := metrics.NewInMemoryCollector()

	var s *scheduler.Scheduler
	launcher := &scaleLauncher{
		deliver: func(class string, refTime reftime.Stamp, severity task.Severity, text string) {
			s.Incoming(class, refTime, severity, text)
		},
	}
	s = scheduler.New(cfg, logging.NoOpLogger{}, collector, launcher)

	for i := 1; i <= n; i++ {
		inst, err := task.New(task.Params{
			Class:          fmt.Sprintf("T%d", i),
			RefTime:        scaleRefTime,
			Prerequisites:  requisite.NewExact(fmt.Sprintf("T%d%%%s", i, scaleRefTime), parentTokens(i)),
			Postrequisites: requisite.NewExact(fmt.Sprintf("T%d%%%s", i, scaleRefTime), []string{fmt.Sprintf("T%d done", i)}),
			Variant:        task.VariantStandard,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build T%d: %v\n", i, err)
			os.Exit(1)
		}
		if err := s.AddInstance(inst); err != nil {
			fmt.Fprintf(os.Stderr, "failed to register T%d: %v\n", i, err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	go func() {
		_ = s.Run(ctx)
	}()

	for {
		if allFinished(s, n) {
			break
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "timed out before the tree completed")
			os.Exit(1)
		case <-time.After(10 * time.Millisecond):
		}
	}
	elapsed := time.Since(start)
	cancel()

	stats := collector.GetStats()
	fmt.Printf("tasks: %d\n", n)
	fmt.Printf("wall clock: %s\n", elapsed)
	fmt.Printf("dispatches: %d\n", stats.TotalDispatches)
	fmt.Printf("dispatch errors: %d\n", stats.TotalDispatchErrors)
	fmt.Printf("match passes: %d (avg %s)\n", stats.TotalMatchPasses, stats.MatchPassTimeStats.Average)
}

// parentTokens returns the prerequisite the i'th synthetic task waits
// on: none for the root, otherwise its parent's completion token.
func parentTokens(i int) []string {
	if i == 1 {
		return nil
	}
	parent := i / 2
	return []string{fmt.Sprintf("T%d done", parent)}
}

func allFinished(s *scheduler.Scheduler, n int) bool {
	if len(s.Pool()) < n {
		return false
	}
	for _, inst := range s.Pool() {
		if inst.State != task.StateFinished {
			return false
		}
	}
	return true
}

// scaleLauncher simulates a synthetic task's external job by delivering
// its single completion token after a dummyRate-scaled delay.
type scaleLauncher struct {
	deliver func(class string, refTime reftime.Stamp, severity task.Severity, text string)
}

func (l *scaleLauncher) Launch(ctx context.Context, class string, refTime reftime.Stamp, dummyRate float64) error {
	rate := dummyRate
	if rate <= 0 {
		rate = 1
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(1.0 / rate * float64(time.Second))):
		}
		l.deliver(class, refTime, task.SeverityNormal, class+" done")
	}()
	return nil
}
