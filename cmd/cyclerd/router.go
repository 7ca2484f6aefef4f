// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/nzmetsched/cycler/internal/reftime"
	"github.com/nzmetsched/cycler/internal/scheduler"
	"github.com/nzmetsched/cycler/internal/task"
	"github.com/nzmetsched/cycler/pkg/logging"
	"github.com/nzmetsched/cycler/pkg/metrics"
	"github.com/nzmetsched/cycler/pkg/watch"
)

// instanceView is the JSON-facing projection of a task instance for the
// operator inspection surface.
type instanceView struct {
	Class      string `json:"class"`
	RefTime    string `json:"ref_time"`
	State      string `json:"state"`
	Display    string `json:"display"`
	Abdicated  bool   `json:"abdicated"`
	LatestText string `json:"latest_message,omitempty"`
}

func toView(inst *task.Instance) instanceView {
	return instanceView{
		Class:      inst.Class,
		RefTime:    string(inst.RefTime),
		State:      string(inst.State),
		Display:    inst.Display(),
		Abdicated:  inst.Abdicated,
		LatestText: inst.LatestMessage,
	}
}

// newRouter builds the gorilla/mux router exposing the scheduler's live
// pool for operator inspection (spec §4.6): /pool, /pool/{class}/{ref_time},
// /healthz, /metrics, and a /watch websocket feed of pool state changes.
func newRouter(s *scheduler.Scheduler, collector metrics.Collector, logger logging.Logger) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","service":"cyclerd"}`)
	}).Methods(http.MethodGet)

	r.HandleFunc("/pool", func(w http.ResponseWriter, r *http.Request) {
		pool := s.Pool()
		views := make([]instanceView, 0, len(pool))
		for _, inst := range pool {
			views = append(views, toView(inst))
		}
		writeJSON(w, views)
	}).Methods(http.MethodGet)

	r.HandleFunc("/pool/{class}/{ref_time}", func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		inst, found := s.Find(vars["class"], reftime.Stamp(vars["ref_time"]))
		if !found {
			http.Error(w, "task instance not found", http.StatusNotFound)
			return
		}
		writeJSON(w, toView(inst))
	}).Methods(http.MethodGet)

	r.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, collector.GetStats().FormatPrometheus())
	}).Methods(http.MethodGet)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	r.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		handleWatch(w, r, s, upgrader, logger)
	}).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleWatch upgrades the connection and feeds it pool state-change
// events from a watch.PoolPoller until the client disconnects.
func handleWatch(w http.ResponseWriter, r *http.Request, s *scheduler.Scheduler, upgrader websocket.Upgrader, logger logging.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	poller := watch.NewPoolPoller(func(ctx context.Context) ([]watch.Snapshot, error) {
		pool := s.Pool()
		snaps := make([]watch.Snapshot, 0, len(pool))
		for _, inst := range pool {
			snaps = append(snaps, watch.Snapshot{TaskID: inst.Identity(), State: string(inst.State)})
		}
		return snaps, nil
	}).WithPollInterval(2 * time.Second)

	events, err := poller.Watch(ctx)
	if err != nil {
		logger.Warn("watch start failed", "error", err.Error())
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
