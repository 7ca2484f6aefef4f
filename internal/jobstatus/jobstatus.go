// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package jobstatus writes the append-only per-job KEY=VALUE status
// file a launched job's collaborator reports progress into (spec §6),
// including the vacation rewrite that strips prior CYLC_JOB_* entries
// when a job is vacated and restarted elsewhere.
package jobstatus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nzmetsched/cycler/internal/task"
	"github.com/nzmetsched/cycler/pkg/logging"
)

const (
	KeyPID      = "CYLC_JOB_PID"
	KeyInitTime = "CYLC_JOB_INIT_TIME"
	KeyExit     = "CYLC_JOB_EXIT"
	KeyExitTime = "CYLC_JOB_EXIT_TIME"
	KeyMessage  = "CYLC_MESSAGE"
)

const jobPrefix = "CYLC_JOB_"

// TimeFormat matches the wallclock string format job messages carry.
const TimeFormat = time.RFC3339

// Writer appends to and rewrites per-identity job status files under a
// single directory, one file per (class, ref_time) identity.
type Writer struct {
	dir    string
	logger logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Writer rooted at dir, creating it if necessary.
func New(dir string, logger logging.Logger) (*Writer, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jobstatus: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, logger: logger, locks: make(map[string]*sync.Mutex)}, nil
}

func (w *Writer) path(identity string) string {
	return filepath.Join(w.dir, identity+".status")
}

func (w *Writer) lockFor(identity string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		w.locks[identity] = l
	}
	return l
}

func (w *Writer) appendLines(identity string, lines []string) error {
	l := w.lockFor(identity)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(w.path(identity), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jobstatus: open %s: %w", identity, err)
	}
	defer f.Close()

	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("jobstatus: write %s: %w", identity, err)
		}
	}
	return nil
}

// Started records job startup: the launching process's PID (when
// known and plausible, i.e. > 1) and the wallclock init time.
func (w *Writer) Started(identity string, pid int, at time.Time) error {
	lines := make([]string, 0, 2)
	if pid > 1 {
		lines = append(lines, fmt.Sprintf("%s=%d", KeyPID, pid))
	}
	lines = append(lines, fmt.Sprintf("%s=%s", KeyInitTime, at.Format(TimeFormat)))
	return w.appendLines(identity, lines)
}

// Succeeded records a normal job exit.
func (w *Writer) Succeeded(identity string, at time.Time) error {
	return w.appendLines(identity, []string{
		fmt.Sprintf("%s=SUCCEEDED", KeyExit),
		fmt.Sprintf("%s=%s", KeyExitTime, at.Format(TimeFormat)),
	})
}

// Failed records a job terminated by signal or non-zero exit.
func (w *Writer) Failed(identity, reason string, at time.Time) error {
	return w.appendLines(identity, []string{
		fmt.Sprintf("%s=%s", KeyExit, reason),
		fmt.Sprintf("%s=%s", KeyExitTime, at.Format(TimeFormat)),
	})
}

// Message appends a plain progress/postrequisite message record.
func (w *Writer) Message(identity string, severity task.Severity, text string, at time.Time) error {
	return w.appendLines(identity, []string{formatMessage(severity, text, at)})
}

// Vacated rewrites the status file, stripping every prior CYLC_JOB_*
// entry (the job is restarting elsewhere) and appending the vacation
// message (spec §8 scenario 6, task_message.py's VACATION_MESSAGE_PREFIX
// handling).
func (w *Writer) Vacated(identity string, severity task.Severity, text string, at time.Time) error {
	l := w.lockFor(identity)
	l.Lock()
	defer l.Unlock()

	path := w.path(identity)
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("jobstatus: read %s: %w", identity, err)
	}

	var kept []string
	for _, line := range strings.Split(string(existing), "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, jobPrefix) {
			continue
		}
		kept = append(kept, line)
	}
	kept = append(kept, formatMessage(severity, text, at))

	content := strings.Join(kept, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("jobstatus: rewrite %s: %w", identity, err)
	}
	w.logger.Info("job status file rewritten on vacation", "task", identity)
	return nil
}

func formatMessage(severity task.Severity, text string, at time.Time) string {
	return fmt.Sprintf("%s=%s|%s|%s", KeyMessage, at.Format(TimeFormat), severity, text)
}
