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
	"errors"
	"sync"
)

// ErrBufferFull is returned by LiveBuffer.Push when the bound is
// reached; the caller's only correct response per spec.md §4.5 is to
// escalate straight to Snapshot (a consumer that can't even buffer the
// live traffic arriving during recovery has no chance of catching up
// via Retransmit).
var ErrBufferFull = errors.New("recovery: live-message buffer full")

// LiveBuffer holds messages that arrive while a consumer is mid-recovery
// (RecoveryRequested/SnapshotLoading), to be replayed in order once the
// snapshot or retransmit catches the consumer up to the buffer's first
// sequence. Bounded: grounded on the teacher's SService.in fixed-capacity
// channel (plugin/tfd/sservice.go), generalized from a channel (which
// needs a dedicated reader goroutine) to a plain mutex-guarded slice
// since the buffer is drained synchronously by the recovery manager,
// not consumed concurrently.
type LiveBuffer struct {
	mu       sync.Mutex
	frames   [][]byte
	capacity int
}

// NewLiveBuffer returns a buffer bounded to capacity frames.
func NewLiveBuffer(capacity int) *LiveBuffer {
	return &LiveBuffer{capacity: capacity}
}

// Push appends frame, copying it so the caller's buffer can be reused.
// Returns ErrBufferFull once capacity is reached.
func (b *LiveBuffer) Push(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) >= b.capacity {
		return ErrBufferFull
	}
	owned := make([]byte, len(frame))
	copy(owned, frame)
	b.frames = append(b.frames, owned)
	return nil
}

// Drain returns all buffered frames in arrival order and empties the
// buffer, ready for the next recovery episode.
func (b *LiveBuffer) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.frames
	b.frames = nil
	return out
}

// Len reports the current buffer depth.
func (b *LiveBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}
