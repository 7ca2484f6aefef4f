// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/task"
)

const (
	vacatedPrefix   = "Task job script vacated by "
	abortedPrefix   = "Task job script aborted with "
	signalledPrefix = "Task job script received "
)

// inboundMessage is a mailbox entry: an incoming message stamped with a
// UUID when Incoming enqueues it, so the same entry is never applied
// twice. Each Incoming call assigns a new UUID, so a transport that
// delivers the same message twice produces two entries and both are
// applied.
type inboundMessage struct {
	ID       string
	Class    string
	RefTime  reftime.Stamp
	Severity task.Severity
	Text     string
}

// Incoming enqueues a message for processing by the scheduler loop. It
// is safe to call from any goroutine, including a DummyLauncher's
// simulation goroutine or a real transport collaborator's delivery
// handler.
func (s *Scheduler) Incoming(class string, refTime reftime.Stamp, severity task.Severity, text string) {
	msg := inboundMessage{
		ID:       uuid.NewString(),
		Class:    class,
		RefTime:  refTime,
		Severity: severity,
		Text:     text,
	}
	select {
	case s.mailbox <- msg:
	default:
		s.logger.Warn("mailbox full, dropping message", "class", class, "ref_time", string(refTime))
	}
}

// drainMailbox applies every currently queued message without
// blocking, so a single wake-up processes a full burst before running
// a match/dispatch/abdicate pass.
func (s *Scheduler) drainMailbox() {
	for {
		select {
		case msg := <-s.mailbox:
			s.applyMessage(msg)
		default:
			return
		}
	}
}

func (s *Scheduler) applyMessage(msg inboundMessage) {
	s.mu.Lock()
	if s.seenMsgs[msg.ID] {
		s.mu.Unlock()
		s.logger.Warn("duplicate message delivery ignored", "message_id", msg.ID)
		return
	}
	s.seenMsgs[msg.ID] = true
	s.mu.Unlock()

	s.metrics.RecordMessage(msg.Severity.String())

	inst, found := s.Find(msg.Class, msg.RefTime)
	if !found {
		s.logger.Warn("message for unknown task instance", "class", msg.Class, "ref_time", string(msg.RefTime))
		return
	}

	signal := inst.Incoming(msg.Severity, msg.Text)

	if s.jobStatus != nil {
		s.recordJobStatus(inst.Identity(), msg)
	}

	if signal == nil {
		return
	}
	s.applyModeSignal(signal)
}

// recordJobStatus routes a message into the job status file: the §6
// lifecycle exceptions (job vacated, aborted, or signalled) trigger
// their dedicated Writer methods instead of a plain CYLC_MESSAGE line,
// so the vacation rewrite (spec §8 scenario 6) is reachable from the
// live message path rather than only from direct Writer calls.
func (s *Scheduler) recordJobStatus(identity string, msg inboundMessage) {
	now := time.Now()
	switch {
	case strings.HasPrefix(msg.Text, vacatedPrefix):
		_ = s.jobStatus.Vacated(identity, msg.Severity, msg.Text, now)
	case strings.HasPrefix(msg.Text, abortedPrefix), strings.HasPrefix(msg.Text, signalledPrefix):
		_ = s.jobStatus.Failed(identity, msg.Text, now)
	default:
		_ = s.jobStatus.Message(identity, msg.Severity, msg.Text, now)
	}
}

// applyModeSignal mutates the process-wide catchup flag for a class,
// logging only genuine transitions; a repeated signal in the same
// direction is idempotent and silent in both directions (spec §9 open
// question, resolved symmetrically rather than following the original's
// one-directional-only warning).
func (s *Scheduler) applyModeSignal(signal *task.ModeSignal) {
	s.mu.Lock()
	previous := s.catchupModeFor(signal.Class)
	s.catchup[signal.Class] = signal.ToCatchup
	s.mu.Unlock()

	if previous == signal.ToCatchup {
		return
	}
	if signal.ToCatchup {
		s.logger.Warn("beginning CATCHUP operation", "class", signal.Class, "ref_time", string(signal.RefTime))
	} else {
		s.logger.Info("beginning UPTODATE operation", "class", signal.Class, "ref_time", string(signal.RefTime))
	}
}

// Run drives the scheduler loop until ctx is cancelled: every time a
// message arrives it drains the mailbox and runs one match -> dispatch
// -> abdicate pass, and every tick it runs one pass (spec §4.5, §5).
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.runPasses(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.mailbox:
			s.applyMessage(msg)
			s.drainMailbox()
			s.runPasses(ctx)
		case <-ticker.C:
			s.runPasses(ctx)
		}
	}
}
