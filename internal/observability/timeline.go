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

// Package observability assembles per-trace timelines from TraceContextTLV
// crossings and exposes them, plus process health, over an HTTP+JSON API.
package observability

import (
	"sync"

	"torq/internal/wire"
)

// TraceEvent is one service-boundary crossing of a trace, the unit the
// collector receives over its Unix socket and stores in the timeline.
type TraceEvent struct {
	TraceID     uint64          `json:"trace_id"`
	Service     uint8           `json:"source_service"`
	StartTsNs   uint64          `json:"start_ts_ns"`
	CurrentTsNs uint64          `json:"current_ts_ns"`
	SpanDepth   uint8           `json:"span_depth"`
	StageBits   wire.StageFlags `json:"stage_bits"`
}

// FromTLV builds a TraceEvent from the wire-level TraceContextTLV a
// forwarding service just stamped with ContinueTrace.
func FromTLV(t wire.TraceContextTLV) TraceEvent {
	return TraceEvent{
		TraceID:     t.TraceID,
		Service:     t.SourceService,
		StartTsNs:   t.StartTsNs,
		CurrentTsNs: t.CurrentTsNs,
		SpanDepth:   t.SpanDepth,
		StageBits:   t.StageBits,
	}
}

// completedTrace is the assembled view returned by the read API: every
// crossing seen for one trace_id, oldest first.
type completedTrace struct {
	TraceID   uint64       `json:"trace_id"`
	Crossings []TraceEvent `json:"crossings"`
	LatestNs  uint64       `json:"latest_ts_ns"`
}

const defaultRingCapacity = 4096

// Timeline is a bounded, keyed ring buffer of completed traces: the one
// piece of global, mutable process state the observability subsystem
// owns, per spec.md §4.9's accounting of global state.
type Timeline struct {
	mu       sync.Mutex
	capacity int
	order    []uint64 // trace_id update order, least recently updated first
	byID     map[uint64]*completedTrace

	eventsTotal uint64
}

// NewTimeline builds a Timeline holding at most capacity traces; the
// oldest is evicted once capacity is exceeded. capacity<=0 uses the
// documented default.
func NewTimeline(capacity int) *Timeline {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &Timeline{
		capacity: capacity,
		byID:     make(map[uint64]*completedTrace, capacity),
	}
}

// Record appends ev to its trace's crossing list, creating the trace if
// this is its first observed crossing, and evicts the least recently
// updated trace once the ring is over capacity.
func (t *Timeline) Record(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.eventsTotal++
	tr, ok := t.byID[ev.TraceID]
	if !ok {
		tr = &completedTrace{TraceID: ev.TraceID}
		t.byID[ev.TraceID] = tr
	} else {
		for i, id := range t.order {
			if id == ev.TraceID {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.order = append(t.order, ev.TraceID)
	tr.Crossings = append(tr.Crossings, ev)
	if ev.CurrentTsNs > tr.LatestNs {
		tr.LatestNs = ev.CurrentTsNs
	}

	for len(t.order) > t.capacity {
		evictID := t.order[0]
		t.order = t.order[1:]
		delete(t.byID, evictID)
	}
}

// Recent returns up to n completed traces, most-recently-updated first,
// the shape spec.md §4.8's GET /api/traces returns.
func (t *Timeline) Recent(n int) []completedTrace {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]completedTrace, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		out = append(out, *t.byID[t.order[i]])
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Stats is the summary GET /api/stats returns.
type Stats struct {
	TracesTracked int    `json:"traces_tracked"`
	EventsTotal   uint64 `json:"events_total"`
	Capacity      int    `json:"capacity"`
}

func (t *Timeline) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		TracesTracked: len(t.order),
		EventsTotal:   t.eventsTotal,
		Capacity:      t.capacity,
	}
}
