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
	"testing"
	"time"
)

func TestCircuitBreakerOpensOnFiveConsecutiveFailures(t *testing.T) {
	b := NewCircuitBreaker()
	for i := 0; i < defaultFailureThreshold-1; i++ {
		b.RecordFailure()
		if b.State() != BreakerClosed {
			t.Fatalf("after %d failures state = %s, want Closed", i+1, b.State())
		}
	}
	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("after %d failures state = %s, want Open", defaultFailureThreshold, b.State())
	}
	if err := b.Allow(); err != ErrCircuitOpen {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	for i := 0; i < defaultFailureThreshold-1; i++ {
		b.RecordFailure()
	}
	if b.State() != BreakerClosed {
		t.Fatalf("state = %s, want Closed (success should have reset the streak)", b.State())
	}
}

func TestCircuitBreakerHalfOpensAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker()
	fakeNow := time.Now()
	b.now = func() time.Time { return fakeNow }

	for i := 0; i < defaultFailureThreshold; i++ {
		b.RecordFailure()
	}
	if err := b.Allow(); err != ErrCircuitOpen {
		t.Fatalf("Allow() before cooldown = %v, want ErrCircuitOpen", err)
	}

	fakeNow = fakeNow.Add(defaultCooldown - time.Second)
	if err := b.Allow(); err != ErrCircuitOpen {
		t.Fatalf("Allow() just before cooldown elapses = %v, want ErrCircuitOpen", err)
	}

	fakeNow = fakeNow.Add(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown elapsed = %v, want nil", err)
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state after cooldown = %s, want HalfOpen", b.State())
	}
}

func TestCircuitBreakerClosesAfterThreeSuccessesInHalfOpen(t *testing.T) {
	b := NewCircuitBreaker()
	fakeNow := time.Now()
	b.now = func() time.Time { return fakeNow }
	for i := 0; i < defaultFailureThreshold; i++ {
		b.RecordFailure()
	}
	fakeNow = fakeNow.Add(defaultCooldown)
	b.Allow()
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state = %s, want HalfOpen", b.State())
	}

	for i := 0; i < defaultSuccessThreshold-1; i++ {
		b.RecordSuccess()
		if b.State() != BreakerHalfOpen {
			t.Fatalf("after %d successes state = %s, want still HalfOpen", i+1, b.State())
		}
	}
	b.RecordSuccess()
	if b.State() != BreakerClosed {
		t.Fatalf("after %d successes state = %s, want Closed", defaultSuccessThreshold, b.State())
	}
}

func TestCircuitBreakerHalfOpenReopensOnAnyFailure(t *testing.T) {
	b := NewCircuitBreaker()
	fakeNow := time.Now()
	b.now = func() time.Time { return fakeNow }
	for i := 0; i < defaultFailureThreshold; i++ {
		b.RecordFailure()
	}
	fakeNow = fakeNow.Add(defaultCooldown)
	b.Allow()
	b.RecordSuccess()
	b.RecordSuccess()
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state = %s, want HalfOpen before the reopening failure", b.State())
	}

	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("state after half-open failure = %s, want Open", b.State())
	}
	if err := b.Allow(); err != ErrCircuitOpen {
		t.Fatalf("Allow() immediately after reopening = %v, want ErrCircuitOpen", err)
	}
}
