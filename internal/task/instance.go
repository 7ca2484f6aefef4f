// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package task implements the per-(class, ref_time) task instance: its
// state machine, dependency matching, dispatch decision, abdication,
// and incoming-message handling (spec §4.3).
package task

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/requisite"
	cyclererrors "github.com/nzmetsched/cycler/pkg/errors"
	"github.com/nzmetsched/cycler/pkg/logging"
)

// State is a task instance's position in the waiting -> running ->
// finished lifecycle.
type State string

const (
	StateWaiting  State = "waiting"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Variant selects a task instance's behavioural overrides.
type Variant int

const (
	// VariantStandard applies no override beyond the base lifecycle.
	VariantStandard Variant = iota
	// VariantRunaheadLimited adds the MAX_FINISHED dispatch precondition
	// for dependency-free source classes.
	VariantRunaheadLimited
	// VariantFuzzyConsumer additionally inspects incoming messages for
	// CATCHUP/UPTODATE mode signals (topnet).
	VariantFuzzyConsumer
)

// DefaultMaxFinished is the runahead bound applied when a
// runahead-limited instance's MaxFinished is left at zero.
const DefaultMaxFinished = 4

// Launcher is the fire-and-forget external job launch collaborator
// (spec §6); the core never awaits its completion beyond the call
// returning accepted-or-failed.
type Launcher interface {
	Launch(ctx context.Context, class string, refTime reftime.Stamp, dummyRate float64) error
}

// RunResult reports the outcome of a dispatch decision.
type RunResult int

const (
	RunResultBlocked RunResult = iota
	RunResultAlreadyActive
	RunResultRunaheadHeld
	RunResultWaiting
	RunResultDispatched
	RunResultDispatchFailed
)

// ModeSignal reports a detected class-level catchup/uptodate mode
// transition request; the scheduler, which owns the process-wide flag,
// decides whether to apply it (spec §4.3, §9).
type ModeSignal struct {
	Class     string
	RefTime   reftime.Stamp
	ToCatchup bool
}

// Instance is one task instance: a (class, ref_time) pair with state,
// prerequisites, postrequisites, and class-specific behavior.
type Instance struct {
	Class          string
	ValidHours     reftime.ValidHours
	RefTime        reftime.Stamp
	State          State
	Prerequisites  requisite.Set
	Postrequisites requisite.Set
	LatestMessage  string
	Abdicated      bool
	Variant        Variant
	MaxFinished    int

	logger logging.Logger
}

// Params seeds a new Instance.
type Params struct {
	Class          string
	ValidHours     reftime.ValidHours
	RefTime        reftime.Stamp
	Prerequisites  requisite.Set
	Postrequisites requisite.Set
	Variant        Variant
	MaxFinished    int
	InitialState   string // "", "waiting", "finished", or "ready"
	Logger         logging.Logger
}

// New constructs a task instance. InitialState values outside {"",
// "waiting", "finished", "ready"} are rejected with UnknownInitialState,
// fatal at construction (spec §7).
func New(p Params) (*Instance, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	inst := &Instance{
		Class:          p.Class,
		ValidHours:     p.ValidHours,
		RefTime:        p.RefTime,
		Prerequisites:  p.Prerequisites,
		Postrequisites: p.Postrequisites,
		Variant:        p.Variant,
		MaxFinished:    p.MaxFinished,
		logger:         logger,
		State:          StateWaiting,
	}

	switch p.InitialState {
	case "", "waiting":
		inst.State = StateWaiting
	case "finished":
		inst.Postrequisites.SetAllSatisfied()
		inst.State = StateFinished
		logger.Warn(fmt.Sprintf("%s starting in FINISHED state", inst.Identity()))
	case "ready":
		// a transient logical hint: waiting with all prerequisites pre-satisfied.
		inst.State = StateWaiting
		inst.Prerequisites.SetAllSatisfied()
		logger.Warn(fmt.Sprintf("%s starting in READY state", inst.Identity()))
	default:
		return nil, cyclererrors.UnknownInitialState(inst.Identity(), p.InitialState)
	}

	return inst, nil
}

// Identity returns "<class>%<ref_time>".
func (i *Instance) Identity() string {
	return i.Class + "%" + string(i.RefTime)
}

// Display returns "<class>(<ref_time>)".
func (i *Instance) Display() string {
	return i.Class + "(" + string(i.RefTime) + ")"
}

// GetSatisfaction matches this instance's prerequisites against every
// other instance's postrequisites in the pool (spec §4.3).
func (i *Instance) GetSatisfaction(pool []*Instance) {
	for _, other := range pool {
		if other == i {
			continue
		}
		i.Prerequisites.SatisfyMe(other.Postrequisites)
	}
}

// WillGetSatisfaction reports, without mutating this instance, whether
// matching against the given pool would leave every prerequisite
// satisfied.
func (i *Instance) WillGetSatisfaction(pool []*Instance) bool {
	clone := i.Prerequisites.Clone()
	for _, other := range pool {
		if other == i {
			continue
		}
		clone.SatisfyMe(other.Postrequisites)
	}
	return clone.AllSatisfied()
}

// RunIfReady implements the dispatch decision of spec §4.3. Launch is
// fire-and-forget: a DispatchFailure leaves the instance waiting so a
// later tick retries it while prerequisites still hold.
func (i *Instance) RunIfReady(ctx context.Context, pool []*Instance, dummyRate float64, launcher Launcher) (RunResult, error) {
	for _, other := range pool {
		if other == i || other.Class != i.Class {
			continue
		}
		if other.State != StateFinished && other.RefTime < i.RefTime {
			return RunResultBlocked, nil
		}
	}

	if i.State == StateRunning || i.State == StateFinished {
		return RunResultAlreadyActive, nil
	}

	if i.Variant == VariantRunaheadLimited {
		maxFinished := i.MaxFinished
		if maxFinished <= 0 {
			maxFinished = DefaultMaxFinished
		}
		finished := 0
		for _, other := range pool {
			if other.Class == i.Class && other.State == StateFinished {
				finished++
			}
		}
		if finished >= maxFinished {
			return RunResultRunaheadHeld, nil
		}
	}

	if !i.Prerequisites.AllSatisfied() {
		return RunResultWaiting, nil
	}

	if launcher == nil {
		return RunResultWaiting, fmt.Errorf("no launcher configured for %s", i.Identity())
	}

	if err := launcher.Launch(ctx, i.Class, i.RefTime, dummyRate); err != nil {
		return RunResultDispatchFailed, cyclererrors.DispatchFailure(i.Identity(), err)
	}

	i.State = StateRunning
	return RunResultDispatched, nil
}

// Abdicate flips the one-shot abdicated flag when this instance is
// finished and has not abdicated before, signalling the scheduler to
// create its successor.
func (i *Instance) Abdicate() bool {
	if i.State == StateFinished && !i.Abdicated {
		i.Abdicated = true
		return true
	}
	return false
}

// Incoming processes a message from the instance's external job (spec
// §4.3, §6). It returns a non-nil ModeSignal only for fuzzy-consumer
// instances whose message names a CATCHUP/UPTODATE transition for this
// instance's ref_time; the scheduler applies it to process-wide state.
func (i *Instance) Incoming(severity Severity, text string) *ModeSignal {
	i.LatestMessage = text

	if i.State != StateRunning {
		i.logger.Warn(cyclererrors.MessageWhileNotRunning(i.Identity(), string(i.State)).Error(),
			"task", i.Identity(), "message", text)
	}

	if i.Postrequisites.Exists(text) {
		if i.Postrequisites.Satisfied(text) {
			i.logger.Warn(cyclererrors.DuplicatePostrequisite(i.Identity(), text).Error(),
				"task", i.Identity())
		}
		i.Postrequisites.SetSatisfied(text)
		i.logger.Info(text, "task", i.Identity())
	} else {
		switch severity {
		case SeverityWarning:
			i.logger.Warn(text, "task", i.Identity())
		case SeverityCritical:
			i.logger.Error(text, "task", i.Identity())
		default:
			i.logger.Info(text, "task", i.Identity())
		}
	}

	if i.Postrequisites.AllSatisfied() {
		i.State = StateFinished
	}

	if i.Variant != VariantFuzzyConsumer {
		return nil
	}
	return detectModeSignal(i.Class, i.RefTime, text)
}

func detectModeSignal(class string, refTime reftime.Stamp, text string) *ModeSignal {
	suffix := regexp.QuoteMeta(string(refTime))
	if regexp.MustCompile(`^CATCHUP:.*for ` + suffix + `$`).MatchString(text) {
		return &ModeSignal{Class: class, RefTime: refTime, ToCatchup: true}
	}
	if regexp.MustCompile(`^UPTODATE:.*for ` + suffix + `$`).MatchString(text) {
		return &ModeSignal{Class: class, RefTime: refTime, ToCatchup: false}
	}
	return nil
}
