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

// ConnState is the adapter connection-manager state from spec.md §4.6:
// Disconnected -> Connecting -> Connected -> {Reconnecting | Failed}.
type ConnState uint8

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnReconnecting
	ConnFailed
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "Disconnected"
	case ConnConnecting:
		return "Connecting"
	case ConnConnected:
		return "Connected"
	case ConnReconnecting:
		return "Reconnecting"
	case ConnFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// DisconnectReason records why a connection dropped, per spec.md §4.6.
// GracefulShutdown is the only reason that does not schedule a reconnect.
type DisconnectReason uint8

const (
	ReasonNetworkError DisconnectReason = iota
	ReasonAuthenticationFailed
	ReasonRateLimited
	ReasonInternalError
	ReasonGracefulShutdown
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonNetworkError:
		return "NetworkError"
	case ReasonAuthenticationFailed:
		return "AuthenticationFailed"
	case ReasonRateLimited:
		return "RateLimited"
	case ReasonInternalError:
		return "InternalError"
	case ReasonGracefulShutdown:
		return "GracefulShutdown"
	default:
		return "Unknown"
	}
}

// ErrMaxRetriesExceeded is returned once the backoff schedule has been
// exhausted; the connection manager moves to Failed and the caller's
// adapter instance is done.
var ErrMaxRetriesExceeded = errors.New("adapter: max reconnect attempts exceeded")

const (
	backoffBase       = 1 * time.Second
	backoffCap        = 30 * time.Second
	backoffMultiplier = 2
	maxReconnectTries = 10
)

// ConnectionManager drives one adapter's connection lifecycle,
// including exponential-backoff reconnect scheduling and breaker
// gating. Grounded on the same explicit-enum-plus-mutex discipline as
// recovery.StateMachine; backoff arithmetic is plain spec.md §4.6
// (base 1s, cap 30s, x2, max 10 attempts).
type ConnectionManager struct {
	mu      sync.Mutex
	state   ConnState
	attempt int
	breaker *CircuitBreaker
}

// NewConnectionManager returns a manager starting Disconnected, backed
// by breaker for circuit-open gating.
func NewConnectionManager(breaker *CircuitBreaker) *ConnectionManager {
	return &ConnectionManager{state: ConnDisconnected, breaker: breaker}
}

// State reports the manager's current state.
func (c *ConnectionManager) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BeginConnect transitions Disconnected/Reconnecting -> Connecting,
// first consulting the circuit breaker; returns ErrCircuitOpen without
// changing state if the breaker is open.
func (c *ConnectionManager) BeginConnect() error {
	if err := c.breaker.Allow(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ConnConnecting
	return nil
}

// ConnectSucceeded transitions Connecting -> Connected, resets the
// reconnect attempt counter, and reports success to the breaker.
func (c *ConnectionManager) ConnectSucceeded() {
	c.breaker.RecordSuccess()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ConnConnected
	c.attempt = 0
}

// ConnectFailed reports a failed connection attempt to the breaker and
// returns the backoff duration to wait before the next attempt, or
// ErrMaxRetriesExceeded once the schedule is exhausted (the manager
// then moves to Failed).
func (c *ConnectionManager) ConnectFailed() (time.Duration, error) {
	c.breaker.RecordFailure()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	if c.attempt > maxReconnectTries {
		c.state = ConnFailed
		return 0, ErrMaxRetriesExceeded
	}
	c.state = ConnReconnecting
	return backoffFor(c.attempt), nil
}

// Disconnect transitions Connected -> Disconnected (GracefulShutdown,
// no reconnect scheduled) or Connected -> Reconnecting (any other
// reason, caller is expected to retry via BeginConnect).
func (c *ConnectionManager) Disconnect(reason DisconnectReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reason == ReasonGracefulShutdown {
		c.state = ConnDisconnected
		c.attempt = 0
		return
	}
	c.state = ConnReconnecting
}

// backoffFor computes base * multiplier^(attempt-1), capped.
func backoffFor(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= backoffMultiplier
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}
