// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestCollectorRecordsTraceEventsFromSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "trace.sock")

	tl := NewTimeline(0)
	c := NewCollector(socketPath, tl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.ListenAndServe(ctx)
	waitForSocket(t, socketPath)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	ev := TraceEvent{TraceID: 42, Service: 1, CurrentTsNs: 999}
	payload, _ := json.Marshal(ev)
	conn.Write(append(payload, '\n'))
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if tl.Stats().EventsTotal > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if tl.Stats().EventsTotal != 1 {
		t.Fatalf("EventsTotal = %d, want 1", tl.Stats().EventsTotal)
	}
	recent := tl.Recent(10)
	if len(recent) != 1 || recent[0].TraceID != 42 {
		t.Fatalf("recent = %+v, want trace_id=42", recent)
	}
}

func TestCollectorDropsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "trace.sock")

	tl := NewTimeline(0)
	c := NewCollector(socketPath, tl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.ListenAndServe(ctx)
	waitForSocket(t, socketPath)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Write([]byte("not json\n"))
	conn.Close()

	time.Sleep(50 * time.Millisecond)
	if tl.Stats().EventsTotal != 0 {
		t.Fatalf("EventsTotal = %d, want 0 for malformed input", tl.Stats().EventsTotal)
	}
}

func TestCollectorHandleHealthReportsHealthy(t *testing.T) {
	c := NewCollector("", NewTimeline(0))
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	c.handleHealth(w, req)

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("status = %v, want healthy", body["status"])
	}
}

func TestCollectorHandleTracesReturnsAtMost20MostRecent(t *testing.T) {
	tl := NewTimeline(0)
	for i := uint64(1); i <= 30; i++ {
		tl.Record(TraceEvent{TraceID: i})
	}
	c := NewCollector("", tl)
	req := httptest.NewRequest(http.MethodGet, "/api/traces", nil)
	w := httptest.NewRecorder()
	c.handleTraces(w, req)

	var traces []completedTrace
	if err := json.NewDecoder(w.Body).Decode(&traces); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(traces) != 20 {
		t.Fatalf("len(traces) = %d, want 20", len(traces))
	}
	if traces[0].TraceID != 30 {
		t.Fatalf("traces[0].TraceID = %d, want 30 (most recent first)", traces[0].TraceID)
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never became ready", path)
}
