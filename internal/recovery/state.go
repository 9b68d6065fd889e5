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

// Package recovery implements the consumer-side sequence-gap recovery
// protocol (C5): gap detection, retransmit-vs-snapshot strategy
// selection, bounded live-message buffering during resync, and
// idempotent snapshot application.
package recovery

import "fmt"

// State is one point in the consumer recovery state machine from
// spec.md §4.5:
//
//	Normal --gap--> GapDetected --send--> RecoveryRequested --recv snapshot--> SnapshotLoading
//	   ^                                        |                                   |
//	   |                                        +--recv msgs--> buffer              v
//	   +-------- apply/resume -------------------------------- Resynchronizing <-----+
type State uint8

const (
	StateNormal State = iota
	StateGapDetected
	StateRecoveryRequested
	StateSnapshotLoading
	StateResynchronizing
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "Normal"
	case StateGapDetected:
		return "GapDetected"
	case StateRecoveryRequested:
		return "RecoveryRequested"
	case StateSnapshotLoading:
		return "SnapshotLoading"
	case StateResynchronizing:
		return "Resynchronizing"
	default:
		return "Unknown"
	}
}

// ErrInvalidTransition is returned when a caller drives the state
// machine out of order (e.g. snapshot arriving while still Normal).
type ErrInvalidTransition struct {
	From State
	Want []State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("recovery: invalid transition from %s, allowed: %v", e.From, e.Want)
}

// StateMachine holds one consumer's recovery state. It has no lock of
// its own; Manager serializes every call under its mutex.
// Grounded on the teacher's managedVSA.armed atomic.Bool flag in
// core/store.go — a minimal state gate — generalized here from a
// single boolean into a full enum, and on plugin/tfd/pipeline.go's
// Start/Stop/Handle lifecycle-method shape for the transition methods
// below.
type StateMachine struct {
	state State
}

// NewStateMachine starts in Normal.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateNormal}
}

// Current returns the machine's current state.
func (m *StateMachine) Current() State { return m.state }

func (m *StateMachine) transition(from []State, to State) error {
	for _, f := range from {
		if m.state == f {
			m.state = to
			return nil
		}
	}
	return &ErrInvalidTransition{From: m.state, Want: from}
}

// DetectGap: Normal -> GapDetected.
func (m *StateMachine) DetectGap() error {
	return m.transition([]State{StateNormal}, StateGapDetected)
}

// SendRequest: GapDetected -> RecoveryRequested.
func (m *StateMachine) SendRequest() error {
	return m.transition([]State{StateGapDetected}, StateRecoveryRequested)
}

// ReceiveSnapshot: RecoveryRequested -> SnapshotLoading.
func (m *StateMachine) ReceiveSnapshot() error {
	return m.transition([]State{StateRecoveryRequested}, StateSnapshotLoading)
}

// BeginResync: SnapshotLoading -> Resynchronizing (snapshot applied,
// now draining the buffer accumulated while it loaded) or directly
// RecoveryRequested -> Resynchronizing for a retransmit that completed
// without ever needing a snapshot.
func (m *StateMachine) BeginResync() error {
	return m.transition([]State{StateSnapshotLoading, StateRecoveryRequested}, StateResynchronizing)
}

// Resume: Resynchronizing -> Normal, once the buffered live messages
// have been replayed in order.
func (m *StateMachine) Resume() error {
	return m.transition([]State{StateResynchronizing}, StateNormal)
}

// Reset forces the machine back to Normal unconditionally — used by
// Manager.HandleGap when a retransmit, snapshot request or snapshot
// apply fails, so the next HandleGap call starts a fresh episode.
func (m *StateMachine) Reset() {
	m.state = StateNormal
}
