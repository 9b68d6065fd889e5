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

package adapter

import (
	"sync"
	"time"

	"torq/internal/wire"
)

// FrameSink is whatever the adapter uses to hand a fully built frame to
// the relay socket; Pipeline and StateInvalidator send their finished
// frames through it.
type FrameSink interface {
	SendFrame(frame []byte) error
}

// InstrumentTracker is the per-adapter set of instruments currently
// believed live. StateInvalidator consults it to build the
// AffectedInstruments list at disconnect/staleness time, and adapters
// add/remove from it as they parse feed messages referencing
// instruments. Grounded on the teacher's VRouter per-key registry
// shape (plugin/tfd/vactors.go), generalized from ordered actors to a
// plain guarded set since invalidation only needs membership, not
// per-key ordering.
type InstrumentTracker struct {
	mu      sync.Mutex
	tracked map[uint64]struct{}
}

// NewInstrumentTracker returns an empty tracker.
func NewInstrumentTracker() *InstrumentTracker {
	return &InstrumentTracker{tracked: make(map[uint64]struct{})}
}

// Track marks an instrument ID as live.
func (t *InstrumentTracker) Track(instrumentID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[instrumentID] = struct{}{}
}

// Untrack removes an instrument ID.
func (t *InstrumentTracker) Untrack(instrumentID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, instrumentID)
}

// Snapshot returns every currently tracked instrument ID. Order is
// unspecified.
func (t *InstrumentTracker) Snapshot() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uint64, 0, len(t.tracked))
	for id := range t.tracked {
		ids = append(ids, id)
	}
	return ids
}

// StateInvalidator emits StateInvalidationTLV frames on disconnect and
// on staleness timeout, per spec.md §4.6's state-invalidation contract:
// "on disconnect with any non-graceful reason, the adapter's state
// manager emits a StateInvalidationTLV enumerating all instruments it
// had been tracking, with monotonically increasing sequence."
type StateInvalidator struct {
	mu       sync.Mutex
	venue    uint16
	seq      uint64
	source   wire.Source
	domain   wire.RelayDomain
	tracker  *InstrumentTracker
	sink     FrameSink
	lastSeen time.Time
	now      func() time.Time
}

// NewStateInvalidator builds an invalidator for one venue/source pair,
// emitting onto domain (Signal or System per the wire registry).
func NewStateInvalidator(venue uint16, source wire.Source, domain wire.RelayDomain, tracker *InstrumentTracker, sink FrameSink) *StateInvalidator {
	return &StateInvalidator{
		venue:   venue,
		source:  source,
		domain:  domain,
		tracker: tracker,
		sink:    sink,
		now:     time.Now,
	}
}

// reasonFor maps a connection DisconnectReason onto the wire's
// InvalidationReason vocabulary.
func reasonFor(r DisconnectReason) wire.InvalidationReason {
	switch r {
	case ReasonNetworkError:
		return wire.ReasonDisconnection
	case ReasonAuthenticationFailed:
		return wire.ReasonAuthFailure
	case ReasonRateLimited:
		return wire.ReasonRateLimited
	case ReasonInternalError:
		return wire.ReasonDisconnection
	default:
		return wire.ReasonDisconnection
	}
}

// OnDisconnect emits an invalidation for every currently tracked
// instrument, unless reason is GracefulShutdown (spec.md: "no
// reconnect" disconnects carry no phantom state to evict either, since
// the adapter is shutting down cleanly rather than losing sync).
func (s *StateInvalidator) OnDisconnect(reason DisconnectReason) error {
	if reason == ReasonGracefulShutdown {
		return nil
	}
	return s.emit(reasonFor(reason))
}

// CheckStaleness emits an invalidation if no message has arrived for
// maxStale since the last call to MarkAlive, and reports whether it did.
func (s *StateInvalidator) CheckStaleness(maxStale time.Duration) (bool, error) {
	s.mu.Lock()
	last := s.lastSeen
	s.mu.Unlock()
	if last.IsZero() {
		return false, nil
	}
	if s.now().Sub(last) < maxStale {
		return false, nil
	}
	if err := s.emit(wire.ReasonStaleness); err != nil {
		return false, err
	}
	return true, nil
}

// MarkAlive resets the staleness clock; call on every inbound feed message.
func (s *StateInvalidator) MarkAlive() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *StateInvalidator) emit(reason wire.InvalidationReason) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	tlv := wire.StateInvalidationTLV{
		Venue:               s.venue,
		Sequence:            seq,
		Reason:              reason,
		AffectedInstruments: s.tracker.Snapshot(),
	}
	payload := tlv.Encode(nil)

	body, err := wire.AppendTLV(nil, wire.TypeStateInvalidation, payload)
	if err != nil {
		return err
	}

	frame := make([]byte, wire.HeaderSize)
	h := wire.Header{
		Version:     wire.SupportedVersion,
		Domain:      s.domain,
		Source:      s.source,
		Sequence:    seq,
		TimestampNs: uint64(s.now().UnixNano()),
	}
	h.Encode(frame, body)
	frame = append(frame, body...)

	return s.sink.SendFrame(frame)
}

// defaultMaxStaleDuration is spec.md §4.6's staleness-monitor default.
const defaultMaxStaleDuration = 100 * time.Millisecond

// StalenessMonitor polls a StateInvalidator on a fixed tick, emitting
// invalidations for subscriptions that have gone quiet. Grounded on the
// teacher's SService background-flush ticker (plugin/tfd/sservice.go).
type StalenessMonitor struct {
	invalidator *StateInvalidator
	maxStale    time.Duration
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewStalenessMonitor builds a monitor checking every interval (must be
// <= maxStale to catch the deadline promptly; callers typically pick
// maxStale/2). maxStale of 0 uses the spec default of 100ms.
func NewStalenessMonitor(invalidator *StateInvalidator, maxStale, interval time.Duration) *StalenessMonitor {
	if maxStale <= 0 {
		maxStale = defaultMaxStaleDuration
	}
	if interval <= 0 {
		interval = maxStale / 2
	}
	return &StalenessMonitor{
		invalidator: invalidator,
		maxStale:    maxStale,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Run blocks, checking staleness every interval until Stop is called.
func (m *StalenessMonitor) Run() {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.invalidator.CheckStaleness(m.maxStale)
		case <-m.stopCh:
			return
		}
	}
}

// Stop terminates Run. Safe to call multiple times.
func (m *StalenessMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
