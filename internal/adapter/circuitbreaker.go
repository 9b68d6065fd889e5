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
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow when the breaker is open and the
// cooldown has not yet elapsed; callers must not attempt the underlying
// socket operation.
var ErrCircuitOpen = errors.New("adapter: circuit breaker open")

// BreakerState mirrors the closed/open/half-open machine from
// spec.md §4.6.
type BreakerState uint8

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
	defaultCooldown         = 60 * time.Second
)

// CircuitBreaker guards one adapter's connection attempts. Grounded on
// the same minimal-atomic-state-gate discipline as the teacher's
// core/store.go managedVSA.armed flag and this module's own
// recovery.StateMachine, generalized here to a 3-state machine with
// failure/success counters since the corpus carries no dedicated
// circuit-breaker type to adapt directly.
type CircuitBreaker struct {
	mu sync.Mutex

	state            BreakerState
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	openedAt         time.Time

	now func() time.Time
}

// NewCircuitBreaker returns a breaker using spec.md §4.6's defaults: 5
// consecutive failures to open, 60s cooldown before half-open, 3
// successes in half-open to close.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
	}
}

// Allow reports whether a connection attempt may proceed. While Open
// and the cooldown hasn't elapsed, it returns ErrCircuitOpen without
// ever touching the underlying socket. Once the cooldown has elapsed it
// transitions to HalfOpen and allows exactly the probing attempts
// through (spec.md's "any failure in half-open -> open" means only one
// probe should be in flight at a time; callers serialize via their own
// connection-manager state, so Allow here simply permits HalfOpen
// attempts rather than limiting concurrency itself).
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerHalfOpen:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			b.successes = 0
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess registers a successful attempt. In HalfOpen, enough
// consecutive successes closes the breaker; in Closed it resets the
// failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure registers a failed attempt. Any failure while HalfOpen
// reopens immediately; in Closed, failureThreshold consecutive failures
// opens the breaker.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerHalfOpen:
		b.open()
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.open()
		}
	}
}

func (b *CircuitBreaker) open() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

// State reports the breaker's current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
