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
	"testing"

	"torq/internal/wire"
)

func TestTimelineRecordGroupsCrossingsByTraceID(t *testing.T) {
	tl := NewTimeline(0)
	tl.Record(TraceEvent{TraceID: 1, Service: 1, CurrentTsNs: 100})
	tl.Record(TraceEvent{TraceID: 1, Service: 2, CurrentTsNs: 200})
	tl.Record(TraceEvent{TraceID: 2, Service: 1, CurrentTsNs: 150})

	recent := tl.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	var trace1 *completedTrace
	for i := range recent {
		if recent[i].TraceID == 1 {
			trace1 = &recent[i]
		}
	}
	if trace1 == nil {
		t.Fatal("expected trace_id=1 in recent traces")
	}
	if len(trace1.Crossings) != 2 {
		t.Fatalf("len(trace1.Crossings) = %d, want 2", len(trace1.Crossings))
	}
	if trace1.LatestNs != 200 {
		t.Fatalf("trace1.LatestNs = %d, want 200", trace1.LatestNs)
	}
}

func TestTimelineRecentOrdersMostRecentlyUpdatedFirst(t *testing.T) {
	tl := NewTimeline(0)
	tl.Record(TraceEvent{TraceID: 1})
	tl.Record(TraceEvent{TraceID: 2})
	tl.Record(TraceEvent{TraceID: 3})

	recent := tl.Recent(10)
	if recent[0].TraceID != 3 || recent[1].TraceID != 2 || recent[2].TraceID != 1 {
		t.Fatalf("recent order = %v, want [3 2 1]", recent)
	}
}

func TestTimelineRecentRespectsLimit(t *testing.T) {
	tl := NewTimeline(0)
	for i := uint64(1); i <= 5; i++ {
		tl.Record(TraceEvent{TraceID: i})
	}
	recent := tl.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
}

func TestTimelineEvictsOldestOnceOverCapacity(t *testing.T) {
	tl := NewTimeline(2)
	tl.Record(TraceEvent{TraceID: 1})
	tl.Record(TraceEvent{TraceID: 2})
	tl.Record(TraceEvent{TraceID: 3})

	recent := tl.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2 after eviction", len(recent))
	}
	for _, tr := range recent {
		if tr.TraceID == 1 {
			t.Fatal("expected trace_id=1 to have been evicted")
		}
	}
}

func TestTimelineStatsReflectsTrackedAndTotal(t *testing.T) {
	tl := NewTimeline(10)
	tl.Record(TraceEvent{TraceID: 1})
	tl.Record(TraceEvent{TraceID: 1})
	tl.Record(TraceEvent{TraceID: 2})

	stats := tl.Stats()
	if stats.TracesTracked != 2 {
		t.Fatalf("TracesTracked = %d, want 2", stats.TracesTracked)
	}
	if stats.EventsTotal != 3 {
		t.Fatalf("EventsTotal = %d, want 3", stats.EventsTotal)
	}
	if stats.Capacity != 10 {
		t.Fatalf("Capacity = %d, want 10", stats.Capacity)
	}
}

func TestFromTLVCopiesAllFields(t *testing.T) {
	trace := wire.TraceContextTLV{TraceID: 7, StartTsNs: 100, CurrentTsNs: 200, SourceService: 4, SpanDepth: 2, StageBits: wire.StageCollected}
	ev := FromTLV(trace)
	if ev.TraceID != trace.TraceID || ev.Service != trace.SourceService || ev.SpanDepth != trace.SpanDepth {
		t.Fatalf("FromTLV dropped fields: %+v from %+v", ev, trace)
	}
}
