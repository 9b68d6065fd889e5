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

import "github.com/prometheus/client_golang/prometheus"

var (
	traceEventsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "torq_observability_trace_events_received_total",
		Help: "Trace events successfully decoded and recorded into the timeline.",
	})
	traceEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "torq_observability_trace_events_dropped_total",
		Help: "Trace events dropped for failing JSON decode.",
	})
	healthReportsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "torq_observability_health_reports_emitted_total",
		Help: "SystemHealthTLV frames emitted on the fixed reporting interval.",
	})
)

func init() {
	prometheus.MustRegister(traceEventsReceived, traceEventsDropped, healthReportsEmitted)
}
