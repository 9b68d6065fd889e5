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

package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the relay's first-class KPIs, grounded on the teacher's
// internal/ratelimiter/telemetry/churn counters: a handful of global
// Prometheus series, labeled by domain rather than per-key to avoid
// unbounded cardinality.
var (
	framesAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_frames_accepted_total",
		Help: "Frames that passed validation and were broadcast",
	}, []string{"domain"})
	framesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_frames_rejected_total",
		Help: "Frames dropped by the validator, labeled by domain",
	}, []string{"domain"})
	fanoutDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_fanout_delivered_total",
		Help: "Frame deliveries to subscriber mailboxes",
	}, []string{"domain"})
	fanoutDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_fanout_dropped_total",
		Help: "Frame deliveries dropped because a subscriber's mailbox was full",
	}, []string{"domain"})
	activeConsumers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "torq_relay_active_consumers",
		Help: "Currently connected consumers per domain",
	}, []string{"domain"})
	sequenceGaps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_sequence_gaps_total",
		Help: "Sequence gaps observed, labeled by domain",
	}, []string{"domain"})
	recoveryRetransmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_recovery_retransmits_total",
		Help: "RecoveryRequestTLV requests served by replaying retained frames, labeled by domain",
	}, []string{"domain"})
	recoveryFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "torq_relay_recovery_fallbacks_total",
		Help: "RecoveryRequestTLV requests that could not be served by retransmit and fell back to a StateInvalidation signal, labeled by domain",
	}, []string{"domain"})
)

func init() {
	prometheus.MustRegister(framesAccepted, framesRejected, fanoutDelivered, fanoutDropped, activeConsumers, sequenceGaps, recoveryRetransmits, recoveryFallbacks)
}
