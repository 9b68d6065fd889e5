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

func TestConnectionManagerHappyPath(t *testing.T) {
	cm := NewConnectionManager(NewCircuitBreaker())
	if got := cm.State(); got != ConnDisconnected {
		t.Fatalf("initial state = %s, want Disconnected", got)
	}
	if err := cm.BeginConnect(); err != nil {
		t.Fatalf("BeginConnect: %v", err)
	}
	if got := cm.State(); got != ConnConnecting {
		t.Fatalf("state after BeginConnect = %s, want Connecting", got)
	}
	cm.ConnectSucceeded()
	if got := cm.State(); got != ConnConnected {
		t.Fatalf("state after ConnectSucceeded = %s, want Connected", got)
	}
}

func TestConnectionManagerBackoffGrowsAndCaps(t *testing.T) {
	cm := NewConnectionManager(NewCircuitBreaker())
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30, 30, 30}
	for i, w := range want {
		d, err := cm.ConnectFailed()
		if err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
		if d != w*time.Second {
			t.Fatalf("attempt %d: backoff = %v, want %v", i+1, d, w*time.Second)
		}
	}
	if _, err := cm.ConnectFailed(); err != ErrMaxRetriesExceeded {
		t.Fatalf("11th failure err = %v, want ErrMaxRetriesExceeded", err)
	}
	if got := cm.State(); got != ConnFailed {
		t.Fatalf("state after exhausting retries = %s, want Failed", got)
	}
}

func TestConnectionManagerGracefulShutdownSkipsReconnect(t *testing.T) {
	cm := NewConnectionManager(NewCircuitBreaker())
	cm.BeginConnect()
	cm.ConnectSucceeded()
	cm.Disconnect(ReasonGracefulShutdown)
	if got := cm.State(); got != ConnDisconnected {
		t.Fatalf("state after graceful shutdown = %s, want Disconnected", got)
	}
}

func TestConnectionManagerNetworkErrorSchedulesReconnect(t *testing.T) {
	cm := NewConnectionManager(NewCircuitBreaker())
	cm.BeginConnect()
	cm.ConnectSucceeded()
	cm.Disconnect(ReasonNetworkError)
	if got := cm.State(); got != ConnReconnecting {
		t.Fatalf("state after network error = %s, want Reconnecting", got)
	}
}

func TestConnectionManagerOpenBreakerBlocksConnect(t *testing.T) {
	breaker := NewCircuitBreaker()
	fakeNow := time.Now()
	breaker.now = func() time.Time { return fakeNow }
	for i := 0; i < defaultFailureThreshold; i++ {
		breaker.RecordFailure()
	}
	if breaker.State() != BreakerOpen {
		t.Fatalf("breaker state = %s, want Open", breaker.State())
	}

	cm := NewConnectionManager(breaker)
	if err := cm.BeginConnect(); err != ErrCircuitOpen {
		t.Fatalf("BeginConnect err = %v, want ErrCircuitOpen", err)
	}
	if got := cm.State(); got != ConnDisconnected {
		t.Fatalf("state after blocked connect = %s, want Disconnected (unchanged)", got)
	}

	fakeNow = fakeNow.Add(defaultCooldown)
	if err := cm.BeginConnect(); err != nil {
		t.Fatalf("BeginConnect after cooldown: %v", err)
	}
	if got := cm.State(); got != ConnConnecting {
		t.Fatalf("state after cooldown connect = %s, want Connecting", got)
	}
}
