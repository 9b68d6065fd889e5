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

package poolcache

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirror spec.md's pool-cache scenario 7 vocabulary directly:
// cached_pools, cache_misses (plus cache_hits for the hit side of the
// same counter pair). Grounded on the same global-Prometheus-series
// pattern as internal/relay/metrics.go; unlabeled here since there is
// exactly one pool cache per process.
var (
	cachedPools = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "torq_poolcache_cached_pools",
		Help: "Number of pools currently held in the in-memory cache",
	})
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "torq_poolcache_cache_hits_total",
		Help: "GetCached calls that found a cached pool",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "torq_poolcache_cache_misses_total",
		Help: "GetCached calls that found no cached pool",
	})
)

func init() {
	prometheus.MustRegister(cachedPools, cacheHits, cacheMisses)
}
