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

package validator

import (
	"sync"
	"sync/atomic"

	"torq/internal/wire"
)

// SeqResult classifies one sequence number against a SequenceTracker's
// current state.
type SeqResult uint8

const (
	SeqOK SeqResult = iota
	SeqGap
	SeqGapTooLarge
	SeqDuplicate
	SeqInvalidState
)

// perSourceState is one source's sequence tracking state: the expected
// next sequence, a last-seen watermark, and a small recent-duplicate
// ring. Grounded on internal/ratelimiter/core/store.go's managedVSA
// (an atomic-guarded per-key struct lazily created on first access).
type perSourceState struct {
	mu       sync.Mutex
	expected uint64
	lastSeen uint64
	ring     []uint64
	ringPos  int
	started  bool
}

func (s *perSourceState) seen(seq uint64) bool {
	for _, v := range s.ring {
		if v == seq {
			return true
		}
	}
	return false
}

func (s *perSourceState) remember(seq uint64, windowSize int) {
	if len(s.ring) < windowSize {
		s.ring = append(s.ring, seq)
		return
	}
	s.ring[s.ringPos] = seq
	s.ringPos = (s.ringPos + 1) % windowSize
}

// SequenceTracker holds one perSourceState per wire.Source, created
// lazily on first observation. Concurrent-safe via sync.Map, matching
// core.Store.GetOrCreate's fast-path-Load / LoadOrStore-on-miss pattern.
type SequenceTracker struct {
	states    sync.Map // wire.Source -> *perSourceState
	maxGap    uint64
	windowSize int
}

func NewSequenceTracker(maxGap uint64, windowSize int) *SequenceTracker {
	return &SequenceTracker{maxGap: maxGap, windowSize: windowSize}
}

func (t *SequenceTracker) stateFor(src wire.Source) *perSourceState {
	if v, ok := t.states.Load(src); ok {
		return v.(*perSourceState)
	}
	s := &perSourceState{}
	actual, loaded := t.states.LoadOrStore(src, s)
	if !loaded {
		trackedSourceCount.Add(1)
	}
	return actual.(*perSourceState)
}

// TrackedSourceCount reports the number of distinct wire.Source values
// with sequence-tracking state across every SequenceTracker in the
// process, for the relay's per-process source-cardinality metric.
func TrackedSourceCount() int64 {
	return trackedSourceCount.Load()
}

// Observe classifies seq for source src and advances tracking state for
// SeqOK and SeqGap outcomes (the caller is expected to either accept the
// message immediately, in the SeqOK case, or enter recovery, in the
// SeqGap case — either way the expected watermark moves
// forward to seq so a retransmit-then-resume doesn't re-flag the same
// gap on every subsequent message). Every other outcome leaves the
// state unchanged. The returned prevLastSeen is the
// watermark as it stood before this call's mutation, so a SeqGap caller
// can report the pre-gap sequence rather than the post-mutation one.
func (t *SequenceTracker) Observe(src wire.Source, seq uint64) (result SeqResult, prevLastSeen uint64) {
	s := t.stateFor(src)
	s.mu.Lock()
	defer s.mu.Unlock()

	prevLastSeen = s.lastSeen

	if !s.started {
		s.started = true
		s.expected = seq + 1
		s.lastSeen = seq
		s.remember(seq, t.windowSize)
		return SeqOK, prevLastSeen
	}

	switch {
	case seq == s.expected:
		s.expected = seq + 1
		s.lastSeen = seq
		s.remember(seq, t.windowSize)
		return SeqOK, prevLastSeen
	case seq > s.expected && seq <= s.expected+t.maxGap:
		s.expected = seq + 1
		s.lastSeen = seq
		s.remember(seq, t.windowSize)
		return SeqGap, prevLastSeen
	case seq > s.expected+t.maxGap:
		return SeqGapTooLarge, prevLastSeen
	case seq <= s.lastSeen && s.seen(seq):
		return SeqDuplicate, prevLastSeen
	default:
		return SeqInvalidState, prevLastSeen
	}
}

// Reset moves src's expected sequence forward to endSeq+1, used after a
// snapshot-based recovery completes (spec.md §4.5).
func (t *SequenceTracker) Reset(src wire.Source, endSeq uint64) {
	s := t.stateFor(src)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.expected = endSeq + 1
	s.lastSeen = endSeq
}

// trackedSourceCount backs TrackedSourceCount; atomics keep it cheap to
// read without locking the whole tracker.
var trackedSourceCount atomic.Int64
