// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package watch provides a polling-based watch implementation over the
// scheduler's live pool, for the operator-facing websocket feed (SPEC_FULL
// §3, "UI log tailing" analogue — a collaborator surface, not core logic).
package watch

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the default polling interval for pool watch operations.
const DefaultPollInterval = 2 * time.Second

// Snapshot is a minimal, poll-friendly view of one task instance.
type Snapshot struct {
	TaskID string // "<class>%<ref_time>"
	State  string
}

// PoolEvent describes a detected change in the live pool between two polls.
type PoolEvent struct {
	EventType     string // "instance_new", "state_change", "instance_gone"
	TaskID        string
	PreviousState string
	NewState      string
	EventTime     time.Time
}

// ListFunc returns the current snapshot of every live task instance.
type ListFunc func(ctx context.Context) ([]Snapshot, error)

// PoolPoller implements real-time pool monitoring through polling.
type PoolPoller struct {
	listFunc     ListFunc
	pollInterval time.Duration
	bufferSize   int
	mu           sync.RWMutex
	states       map[string]string // task id -> last observed state
}

// NewPoolPoller creates a new pool poller.
func NewPoolPoller(listFunc ListFunc) *PoolPoller {
	return &PoolPoller{
		listFunc:     listFunc,
		pollInterval: DefaultPollInterval,
		bufferSize:   100,
		states:       make(map[string]string),
	}
}

// WithPollInterval sets a custom poll interval.
func (p *PoolPoller) WithPollInterval(interval time.Duration) *PoolPoller {
	p.pollInterval = interval
	return p
}

// WithBufferSize sets a custom buffer size for the event channel.
func (p *PoolPoller) WithBufferSize(size int) *PoolPoller {
	p.bufferSize = size
	return p
}

// Watch starts watching for pool state changes.
func (p *PoolPoller) Watch(ctx context.Context) (<-chan PoolEvent, error) {
	eventChan := make(chan PoolEvent, p.bufferSize)
	go p.pollLoop(ctx, eventChan)
	return eventChan, nil
}

func (p *PoolPoller) pollLoop(ctx context.Context, eventChan chan<- PoolEvent) {
	defer close(eventChan)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.performPoll(ctx, eventChan, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.performPoll(ctx, eventChan, false)
		}
	}
}

func (p *PoolPoller) performPoll(ctx context.Context, eventChan chan<- PoolEvent, isInitial bool) {
	snapshots, err := p.listFunc(ctx)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]bool, len(snapshots))

	for _, s := range snapshots {
		current[s.TaskID] = true
		previous, exists := p.states[s.TaskID]

		if !exists {
			p.states[s.TaskID] = s.State
			if !isInitial {
				eventChan <- PoolEvent{
					EventType: "instance_new",
					TaskID:    s.TaskID,
					NewState:  s.State,
					EventTime: time.Now(),
				}
			}
			continue
		}

		if previous != s.State {
			p.states[s.TaskID] = s.State
			eventChan <- PoolEvent{
				EventType:     "state_change",
				TaskID:        s.TaskID,
				PreviousState: previous,
				NewState:      s.State,
				EventTime:     time.Now(),
			}
		}
	}

	for taskID, state := range p.states {
		if !current[taskID] {
			delete(p.states, taskID)
			eventChan <- PoolEvent{
				EventType:     "instance_gone",
				TaskID:        taskID,
				PreviousState: state,
				EventTime:     time.Now(),
			}
		}
	}
}
