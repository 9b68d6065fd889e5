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
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"torq/internal/validator"
	"torq/internal/wire"
)

// ApplyFunc installs a snapshot's state (consumer-side: reset
// downstream order-book/state caches, etc.) before the state machine
// resumes Normal processing.
type ApplyFunc func(snapshotID string, endSeq uint64) error

// RetransmitFunc asks the relay to replay [lastSeq+1, currentSeq) on
// the same connection; returns once replay completes (the recovered
// frames themselves flow back through the normal message path).
type RetransmitFunc func(lastSeq, currentSeq uint64) error

// RequestSnapshotFunc asks the relay for a fresh snapshot; returns the
// snapshot's descriptor once it has been fully received.
type RequestSnapshotFunc func() (SnapshotDescriptor, error)

// Manager drives one source's recovery episode end to end: detect →
// choose strategy → request → (retransmit | snapshot) → drain buffered
// live traffic → resume. Grounded on plugin/tfd/pipeline.go's
// Start/Stop/Handle lifecycle shape for the exported methods, and on
// core/store.go's GetOrCreate pattern for per-source manager lookup
// (see Coordinator in coordinator.go).
type Manager struct {
	mu       sync.Mutex
	source   wire.Source
	machine  *StateMachine
	budget   *RetryBudget
	buffer   *LiveBuffer
	dedup    *SnapshotDeduper
	log      logrus.FieldLogger

	retransmit RetransmitFunc
	snapshot   RequestSnapshotFunc
	apply      ApplyFunc
}

// NewManager builds a recovery manager for one source. bufferCapacity
// bounds the live-message buffer accumulated mid-recovery.
func NewManager(source wire.Source, bufferCapacity int, dedup *SnapshotDeduper, retransmit RetransmitFunc, snapshot RequestSnapshotFunc, apply ApplyFunc) *Manager {
	return &Manager{
		source:     source,
		machine:    NewStateMachine(),
		budget:     NewRetryBudget(),
		buffer:     NewLiveBuffer(bufferCapacity),
		dedup:      dedup,
		log:        logrus.StandardLogger().WithField("source", source.String()),
		retransmit: retransmit,
		snapshot:   snapshot,
		apply:      apply,
	}
}

// State exposes the manager's current recovery state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Current()
}

// BufferLiveFrame is called by the reader loop for messages that arrive
// while this source is mid-recovery; they're queued for replay once
// resync completes rather than dropped or applied out of order.
func (m *Manager) BufferLiveFrame(frame []byte) error {
	return m.buffer.Push(frame)
}

// HandleGap drives a full recovery episode for a detected
// *validator.SequenceGapError. It blocks until the episode resolves
// (Normal) or returns an error from an exhausted or failed strategy.
func (m *Manager) HandleGap(gap *validator.SequenceGapError) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.machine.DetectGap(); err != nil {
		return nil, err
	}
	gapSize := gap.CurrentSequence - gap.LastSequence

	if m.budget.Attempts() >= m.budget.max {
		m.log.Warn("retry budget exhausted, forcing snapshot strategy")
	}
	strat := Resolve(gapSize, m.budget)
	m.budget.RecordAttempt()

	if err := m.machine.SendRequest(); err != nil {
		return nil, err
	}

	switch strat {
	case Retransmit:
		if err := m.retransmit(gap.LastSequence, gap.CurrentSequence); err != nil {
			m.machine.Reset()
			return nil, fmt.Errorf("recovery: retransmit failed: %w", err)
		}
		if err := m.machine.BeginResync(); err != nil {
			return nil, err
		}
	case Snapshot:
		desc, err := m.snapshot()
		if err != nil {
			m.machine.Reset()
			return nil, fmt.Errorf("recovery: snapshot request failed: %w", err)
		}
		if err := m.machine.ReceiveSnapshot(); err != nil {
			return nil, err
		}
		sourceKey := m.source.String()
		if m.dedup.ShouldApply(sourceKey, desc.SnapshotID) {
			if err := m.apply(desc.SnapshotID, desc.EndSeq); err != nil {
				m.machine.Reset()
				return nil, fmt.Errorf("recovery: snapshot apply failed: %w", err)
			}
		}
		if err := m.machine.BeginResync(); err != nil {
			return nil, err
		}
	}

	buffered := m.buffer.Drain()
	if err := m.machine.Resume(); err != nil {
		return nil, err
	}
	m.budget.Reset()
	return buffered, nil
}
