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

package relay

import "testing"

func TestReplayRingReturnsRetainedRangeInOrder(t *testing.T) {
	r := newReplayRing(8)
	for seq := uint64(100); seq <= 105; seq++ {
		r.record(seq, []byte{byte(seq)})
	}

	frames, ok := r.rangeFrames(101, 104)
	if !ok {
		t.Fatal("expected ok=true, every sequence in range is retained")
	}
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2 (sequences 102, 103)", len(frames))
	}
	if frames[0][0] != 102 || frames[1][0] != 103 {
		t.Fatalf("frames out of order: %v", frames)
	}
}

func TestReplayRingRangeFramesEmptyWhenAdjacent(t *testing.T) {
	r := newReplayRing(8)
	r.record(100, []byte{1})
	frames, ok := r.rangeFrames(100, 101)
	if !ok || len(frames) != 0 {
		t.Fatalf("frames=%v ok=%v, want empty ok=true (no gap between adjacent sequences)", frames, ok)
	}
}

func TestReplayRingReportsMissingSequenceAsNotOK(t *testing.T) {
	r := newReplayRing(8)
	r.record(100, []byte{1})
	r.record(103, []byte{2}) // 101, 102 never observed
	if _, ok := r.rangeFrames(100, 103); ok {
		t.Fatal("expected ok=false, sequences 101-102 were never retained")
	}
}

func TestReplayRingEvictsOldestOnceOverCapacity(t *testing.T) {
	r := newReplayRing(2)
	r.record(1, []byte{1})
	r.record(2, []byte{2})
	r.record(3, []byte{3})

	if _, ok := r.rangeFrames(0, 2); ok {
		t.Fatal("expected ok=false, sequence 1 should have been evicted")
	}
	frames, ok := r.rangeFrames(1, 3)
	if !ok || len(frames) != 1 {
		t.Fatalf("frames=%v ok=%v, want [seq 2] ok=true", frames, ok)
	}
}
