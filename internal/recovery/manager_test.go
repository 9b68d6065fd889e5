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

package recovery

import (
	"testing"

	"torq/internal/validator"
	"torq/internal/wire"
)

// TestSequenceGapTriggersRetransmitStrategy is spec.md scenario 4:
// seq 100, 101, 102, then 150 (gap=48) -> Retransmit, last=102 current=150,
// state moves to RecoveryRequested.
func TestSequenceGapTriggersRetransmitStrategy(t *testing.T) {
	gap := &validator.SequenceGapError{Source: wire.SourceBinanceCollector, LastSequence: 102, CurrentSequence: 150}

	var gotLast, gotCurrent uint64
	retransmitCalled := false
	m := NewManager(wire.SourceBinanceCollector, 16, NewSnapshotDeduper(),
		func(last, current uint64) error {
			retransmitCalled = true
			gotLast, gotCurrent = last, current
			return nil
		},
		func() (SnapshotDescriptor, error) { t.Fatal("snapshot should not be requested for a small gap"); return SnapshotDescriptor{}, nil },
		func(string, uint64) error { return nil },
	)

	strat := ChooseStrategy(gap.CurrentSequence - gap.LastSequence)
	if strat != Retransmit {
		t.Fatalf("ChooseStrategy(48) = %v, want Retransmit", strat)
	}
	reqTLV := BuildRequestTLV(1, gap.LastSequence, gap.CurrentSequence, strat)
	decoded, err := wire.DecodeRecoveryRequestTLV(reqTLV)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.RequestType != wire.RecoveryRetransmit || decoded.LastSequence != 102 || decoded.CurrentSequence != 150 {
		t.Fatalf("decoded = %+v", decoded)
	}

	buffered, err := m.HandleGap(gap)
	if err != nil {
		t.Fatalf("HandleGap: %v", err)
	}
	if len(buffered) != 0 {
		t.Fatalf("expected no buffered frames, got %d", len(buffered))
	}
	if !retransmitCalled || gotLast != 102 || gotCurrent != 150 {
		t.Fatalf("retransmit called=%v last=%d current=%d", retransmitCalled, gotLast, gotCurrent)
	}
	if m.State() != StateNormal {
		t.Fatalf("final state = %v, want Normal", m.State())
	}
}

// TestLargeGapTriggersSnapshotStrategy is spec.md scenario 5: seq 100,
// then 300 (gap=200) -> Snapshot; after snapshot_applied(end_seq=300),
// state is Resynchronizing, then returns to Normal once resumed.
func TestLargeGapTriggersSnapshotStrategy(t *testing.T) {
	gap := &validator.SequenceGapError{Source: wire.SourceBinanceCollector, LastSequence: 100, CurrentSequence: 300}

	strat := ChooseStrategy(gap.CurrentSequence - gap.LastSequence)
	if strat != Snapshot {
		t.Fatalf("ChooseStrategy(200) = %v, want Snapshot", strat)
	}
	reqTLV := BuildRequestTLV(1, gap.LastSequence, gap.CurrentSequence, strat)
	decoded, err := wire.DecodeRecoveryRequestTLV(reqTLV)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.RequestType != wire.RecoverySnapshot {
		t.Fatalf("request_type = %v, want Snapshot", decoded.RequestType)
	}

	appliedEndSeq := uint64(0)
	m := NewManager(wire.SourceBinanceCollector, 16, NewSnapshotDeduper(),
		func(uint64, uint64) error { t.Fatal("retransmit should not run for a large gap"); return nil },
		func() (SnapshotDescriptor, error) { return SnapshotDescriptor{SnapshotID: "snap-1", EndSeq: 300}, nil },
		func(snapshotID string, endSeq uint64) error {
			appliedEndSeq = endSeq
			return nil
		},
	)

	if _, err := m.HandleGap(gap); err != nil {
		t.Fatalf("HandleGap: %v", err)
	}
	if appliedEndSeq != 300 {
		t.Fatalf("applied end_seq = %d, want 300", appliedEndSeq)
	}
	if m.State() != StateNormal {
		t.Fatalf("state after resume = %v, want Normal", m.State())
	}
}

func TestRetryBudgetExhaustionForcesSnapshot(t *testing.T) {
	budget := NewRetryBudgetWithMax(2)
	gap := uint64(10) // small enough that ChooseStrategy alone would pick Retransmit

	if Resolve(gap, budget) != Retransmit {
		t.Fatal("first attempt should still choose Retransmit for a small gap")
	}
	budget.RecordAttempt()
	if Resolve(gap, budget) != Retransmit {
		t.Fatal("second attempt still within budget")
	}
	budget.RecordAttempt()
	if Resolve(gap, budget) != Snapshot {
		t.Fatal("exhausted budget must force Snapshot regardless of gap size")
	}
}

func TestSnapshotDeduperRejectsDuplicateID(t *testing.T) {
	d := NewSnapshotDeduper()
	if !d.ShouldApply("src", "snap-1") {
		t.Fatal("first delivery should apply")
	}
	if d.ShouldApply("src", "snap-1") {
		t.Fatal("duplicate snapshot id must not re-apply")
	}
	if !d.ShouldApply("src", "snap-2") {
		t.Fatal("a different snapshot id must still apply")
	}
}

func TestLiveBufferBoundedAndDrainsInOrder(t *testing.T) {
	b := NewLiveBuffer(2)
	if err := b.Push([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := b.Push([]byte("b")); err != nil {
		t.Fatal(err)
	}
	if err := b.Push([]byte("c")); err != ErrBufferFull {
		t.Fatalf("err = %v, want ErrBufferFull", err)
	}
	frames := b.Drain()
	if len(frames) != 2 || string(frames[0]) != "a" || string(frames[1]) != "b" {
		t.Fatalf("frames = %v", frames)
	}
	if b.Len() != 0 {
		t.Fatal("buffer should be empty after Drain")
	}
}

func TestCoordinatorReusesManagerPerSource(t *testing.T) {
	built := 0
	c := NewCoordinator(func(source wire.Source) *Manager {
		built++
		return NewManager(source, 16, NewSnapshotDeduper(),
			func(uint64, uint64) error { return nil },
			func() (SnapshotDescriptor, error) { return SnapshotDescriptor{}, nil },
			func(string, uint64) error { return nil },
		)
	})
	m1 := c.ManagerFor(wire.SourceBinanceCollector)
	m2 := c.ManagerFor(wire.SourceBinanceCollector)
	if m1 != m2 {
		t.Fatal("expected the same manager instance for the same source")
	}
	if built != 1 {
		t.Fatalf("factory called %d times, want 1", built)
	}
	_ = c.ManagerFor(wire.SourceKrakenCollector)
	if built != 2 {
		t.Fatalf("factory called %d times after new source, want 2", built)
	}
}

func TestStateMachineRejectsOutOfOrderTransition(t *testing.T) {
	m := NewStateMachine()
	if err := m.SendRequest(); err == nil {
		t.Fatal("SendRequest from Normal should be rejected")
	}
	if err := m.DetectGap(); err != nil {
		t.Fatal(err)
	}
	if err := m.ReceiveSnapshot(); err == nil {
		t.Fatal("ReceiveSnapshot from GapDetected should be rejected")
	}
}
