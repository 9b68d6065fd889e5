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

package observability

import (
	"sync"
	"testing"
	"time"

	"torq/internal/wire"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSink) SendFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSink) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func decodeHealth(t *testing.T, frame []byte) wire.SystemHealthTLV {
	t.Helper()
	h, err := wire.ParseHeader(frame[:wire.HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	payload := frame[wire.HeaderSize:]
	if err := h.Verify(frame[:wire.HeaderSize], payload); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	views, err := wire.ParseTLVs(payload)
	if err != nil {
		t.Fatalf("ParseTLVs: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("len(views) = %d, want 1", len(views))
	}
	report, err := wire.DecodeSystemHealthTLV(views[0].Payload)
	if err != nil {
		t.Fatalf("DecodeSystemHealthTLV: %v", err)
	}
	return report
}

func TestHealthReporterEmitsOnInterval(t *testing.T) {
	sink := &recordingSink{}
	r := NewHealthReporter("test-component", sink, 10*time.Millisecond)
	r.ObserveMessage(5 * time.Millisecond)

	go r.Run()
	defer r.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sink.last() != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	frame := sink.last()
	if frame == nil {
		t.Fatal("expected at least one SystemHealthTLV frame to be emitted")
	}
	report := decodeHealth(t, frame)
	if report.Component != "test-component" {
		t.Fatalf("Component = %q, want test-component", report.Component)
	}
}

func TestHealthReporterStopEndsLoop(t *testing.T) {
	sink := &recordingSink{}
	r := NewHealthReporter("c", sink, 5*time.Millisecond)
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()
	r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	// Safe to call twice.
	r.Stop()
}

func TestPercentileNsEmptySamplesReturnsZero(t *testing.T) {
	if got := percentileNs(nil, 0.95); got != 0 {
		t.Fatalf("percentileNs(nil) = %d, want 0", got)
	}
}

func TestPercentileNsOrdersUnsortedSamples(t *testing.T) {
	samples := []time.Duration{50, 10, 30, 20, 40}
	got := percentileNs(samples, 0.0)
	if got != 10 {
		t.Fatalf("p0 = %d, want 10 (the minimum)", got)
	}
	got = percentileNs(samples, 1.0)
	if got != 50 {
		t.Fatalf("p100 = %d, want 50 (the maximum)", got)
	}
}
