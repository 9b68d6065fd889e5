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
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"torq/internal/wire"
)

// FrameSink delivers an encoded frame to its transport. Mirrors
// adapter.FrameSink's shape so a relay connection or adapter socket can
// satisfy both without adapting a wrapper type.
type FrameSink interface {
	SendFrame(frame []byte) error
}

const defaultHealthInterval = 30 * time.Second

// HealthReporter samples process vitals and emits a SystemHealthTLV
// frame on a fixed interval, per spec.md §4.8.
type HealthReporter struct {
	component string
	sink      FrameSink
	interval  time.Duration

	msgCount atomic.Uint64

	latencyMu      sync.Mutex
	latencySamples []time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHealthReporter builds a HealthReporter that labels its reports
// with component and emits frames through sink every interval (the
// documented 30s default when interval<=0).
func NewHealthReporter(component string, sink FrameSink, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{
		component: component,
		sink:      sink,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// ObserveMessage records that one message was processed, for the
// message_rate field, and its processing latency, for the latency p95
// field.
func (h *HealthReporter) ObserveMessage(latency time.Duration) {
	h.msgCount.Add(1)
	h.latencyMu.Lock()
	h.latencySamples = append(h.latencySamples, latency)
	if len(h.latencySamples) > 4096 {
		h.latencySamples = h.latencySamples[len(h.latencySamples)-4096:]
	}
	h.latencyMu.Unlock()
}

// Run emits a SystemHealthTLV frame every interval until Stop is
// called.
func (h *HealthReporter) Run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.emit()
		case <-h.stopCh:
			return
		}
	}
}

// Stop ends the reporting loop. Safe to call more than once.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *HealthReporter) emit() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	count := h.msgCount.Swap(0)
	rate := uint64(float64(count) / h.interval.Seconds())

	h.latencyMu.Lock()
	p95 := percentileNs(h.latencySamples, 0.95)
	h.latencySamples = h.latencySamples[:0]
	h.latencyMu.Unlock()

	report := wire.SystemHealthTLV{
		TimestampNs:  uint64(time.Now().UnixNano()),
		CPUPercent:   wire.FixedPoint8(0),
		MemoryBytes:  mem.Alloc,
		MessageRate:  rate,
		LatencyP95Ns: p95,
		Component:    h.component,
	}
	frame := buildHealthFrame(report)
	if frame == nil {
		return
	}
	if err := h.sink.SendFrame(frame); err == nil {
		healthReportsEmitted.Inc()
	}
}

// buildHealthFrame wraps report in the domain header, targeting
// DomainSystem per wire/records.go's declared domain mask for type 112.
func buildHealthFrame(report wire.SystemHealthTLV) []byte {
	body, err := wire.AppendTLV(nil, wire.TypeSystemHealth, report.Encode(nil))
	if err != nil {
		return nil
	}

	frame := make([]byte, wire.HeaderSize)
	h := wire.Header{
		Version:     wire.SupportedVersion,
		Domain:      wire.DomainSystem,
		Source:      wire.SourceMetricsCollector,
		TimestampNs: report.TimestampNs,
	}
	h.Encode(frame, body)
	frame = append(frame, body...)
	return frame
}

// percentileNs returns the pth percentile (0..1) of samples in
// nanoseconds. Samples need not be pre-sorted; this sorts a copy.
func percentileNs(samples []time.Duration, p float64) uint64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	idx := int(p * float64(len(sorted)-1))
	return uint64(sorted[idx])
}
