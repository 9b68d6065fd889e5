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
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"torq/internal/wire"
)

var (
	ErrWrongDomain   = errors.New("validator: relay_domain does not match this validator")
	ErrMessageTooBig = errors.New("validator: message exceeds max_message_size")
	ErrTimestampOOB  = errors.New("validator: timestamp out of bounds")
	ErrSeqGapTooLarge = errors.New("validator: sequence gap too large")
	ErrSeqDuplicate   = errors.New("validator: duplicate sequence")
	ErrSeqInvalid     = errors.New("validator: invalid sequence state")
	ErrUnknownPool    = errors.New("validator: unknown pool address")
)

// SequenceGapError is returned (not just a sentinel) so the caller can
// read the gap size and promote it to the recovery state machine.
type SequenceGapError struct {
	Source         wire.Source
	LastSequence   uint64
	CurrentSequence uint64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("validator: sequence gap for source %s: last=%d current=%d", e.Source, e.LastSequence, e.CurrentSequence)
}

// PoolAddressExtractor pulls a 20-byte pool address out of a TLV payload,
// if that TLV type carries one. Returns ok=false for types with no pool
// address (most of them).
type PoolAddressExtractor func(typ uint8, payload []byte) (addr [20]byte, ok bool)

// KnownPools is queried by the validator's pool-discovery hook; callers
// back it with the pool-metadata cache (C7).
type KnownPools interface {
	Contains(addr [20]byte) bool
}

// Validator applies one domain's Policy to inbound frames.
type Validator struct {
	policy       Policy
	registry     *wire.Registry
	sequences    *SequenceTracker
	knownPools   KnownPools
	extractPool  PoolAddressExtractor
	discovery    chan<- [20]byte
	log          logrus.FieldLogger
}

type Option func(*Validator)

func WithKnownPools(kp KnownPools, extract PoolAddressExtractor, discovery chan<- [20]byte) Option {
	return func(v *Validator) {
		v.knownPools = kp
		v.extractPool = extract
		v.discovery = discovery
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(v *Validator) { v.log = log }
}

func New(policy Policy, registry *wire.Registry, opts ...Option) *Validator {
	v := &Validator{
		policy:    policy,
		registry:  registry,
		sequences: NewSequenceTracker(policy.MaxSequenceGap, policy.SequenceWindowSize),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full validation pipeline from spec.md §4.3 steps 1-6
// over one parsed frame (header already parsed, TLVs already scanned by
// internal/wire). headerBuf/payload are the raw header and payload bytes,
// needed only for checksum recomputation.
func (v *Validator) Validate(h wire.Header, headerBuf, payload []byte, tlvs []wire.TLVView) error {
	if h.Domain != v.policy.Domain {
		return ErrWrongDomain
	}
	if v.policy.MaxMessageSize > 0 && uint32(wire.HeaderSize+len(payload)) > v.policy.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooBig, wire.HeaderSize+len(payload), v.policy.MaxMessageSize)
	}

	for _, t := range tlvs {
		if err := wire.ValidateAgainstRegistry(v.registry, h.Domain, t); err != nil {
			return err
		}
		if v.knownPools != nil && v.extractPool != nil {
			if addr, ok := v.extractPool(t.Type, t.Payload); ok && !v.knownPools.Contains(addr) {
				if v.discovery != nil {
					select {
					case v.discovery <- addr:
					default:
					}
				}
				return ErrUnknownPool
			}
		}
	}

	if v.policy.Checksum {
		if err := h.Verify(headerBuf, payload); err != nil {
			return err
		}
	}

	if v.policy.Strict && v.policy.EnforceTimestamp {
		if err := v.checkTimestamp(h.TimestampNs); err != nil {
			return err
		}
	}

	switch result, prevLastSeen := v.sequences.Observe(h.Source, h.Sequence); result {
	case SeqOK:
		return nil
	case SeqGap:
		return &SequenceGapError{Source: h.Source, LastSequence: prevLastSeen, CurrentSequence: h.Sequence}
	case SeqGapTooLarge:
		return fmt.Errorf("%w: source %s seq %d", ErrSeqGapTooLarge, h.Source, h.Sequence)
	case SeqDuplicate:
		return ErrSeqDuplicate
	default:
		return ErrSeqInvalid
	}
}

func (v *Validator) checkTimestamp(ts uint64) error {
	if !wire.ValidTimestamp(ts) {
		return fmt.Errorf("%w: %d looks like sub-nanosecond units", ErrTimestampOOB, ts)
	}
	now := uint64(timeNowNs())
	if ts > now && ts-now > v.policy.FutureToleranceNs {
		return fmt.Errorf("%w: %d ns ahead of now", ErrTimestampOOB, ts-now)
	}
	if now > ts && now-ts > v.policy.PastToleranceNs {
		return fmt.Errorf("%w: %d ns behind now", ErrTimestampOOB, now-ts)
	}
	return nil
}

// Sequences exposes the tracker so the recovery package can call Reset
// after a snapshot-based resync completes.
func (v *Validator) Sequences() *SequenceTracker { return v.sequences }
