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

// Package poolcache implements the pool-metadata cache (C7): an
// in-memory, sharded store of DEX pool metadata keyed by pool address,
// backed by a snapshot+journal on disk and populated lazily through a
// bounded discovery worker pool.
package poolcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"torq/internal/wire"
)

// ErrDiscoveryQueueFull is returned by GetOrDiscover when the bounded
// discovery channel has no room; per spec.md §4.7, discovery is never
// allowed to back up onto the hot path, so callers fail open instead of
// blocking indefinitely.
var ErrDiscoveryQueueFull = errors.New("poolcache: discovery queue full")

const defaultShardCount = 64

// shard is one partition of the cache: its own mutex guarding its own
// map, so lookups for different pools never contend. Grounded on the
// same map-of-guarded-state shape as relay.TopicRegistry, partitioned
// by xxhash of the pool address rather than rendezvous across shards
// (all shards live in this one process, so there's no need to route
// consistently across machines the way the relay's topic sharding does).
type shard struct {
	mu    sync.RWMutex
	pools map[ethcommon.Address]wire.PoolInfoTLV
}

// Cache is the sharded, concurrent, read-mostly pool-metadata store.
type Cache struct {
	shards      []*shard
	mask        uint64
	discoveryCh chan discoveryRequest
	discoverer  Discoverer
	journal     *Journal
}

// Options configures a Cache.
type Options struct {
	Shards          int // default defaultShardCount
	DiscoveryBuffer int // default 256
	Workers         int // default 2, per spec.md §4.7's 2-4 concurrency cap
	Discoverer      Discoverer
	Journal         *Journal
}

// NewCache builds a Cache and starts its bounded discovery worker pool.
func NewCache(opts Options) *Cache {
	n := opts.Shards
	if n <= 0 {
		n = defaultShardCount
	}
	n = nextPow2(n)
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{pools: make(map[ethcommon.Address]wire.PoolInfoTLV)}
	}
	buf := opts.DiscoveryBuffer
	if buf <= 0 {
		buf = 256
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}
	c := &Cache{
		shards:      shards,
		mask:        uint64(n - 1),
		discoveryCh: make(chan discoveryRequest, buf),
		discoverer:  opts.Discoverer,
		journal:     opts.Journal,
	}
	for i := 0; i < workers; i++ {
		go c.runWorker()
	}
	return c
}

func (c *Cache) shardFor(addr ethcommon.Address) *shard {
	h := xxhash.Sum64(addr.Bytes())
	return c.shards[h&c.mask]
}

// GetCached is the hot-path, phase-1 lookup: a pure in-memory read that
// never blocks and never triggers discovery. Adapters call this and
// skip emission on a miss (spec.md §4.6/§4.7's fail-open contract).
func (c *Cache) GetCached(addr ethcommon.Address) (wire.PoolInfoTLV, bool) {
	s := c.shardFor(addr)
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.pools[addr]
	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return info, ok
}

// ResolveDecimals implements adapter.PoolResolver directly against
// GetCached, so the adapter pipeline's DEX enrichment step never leaves
// the hot path.
func (c *Cache) ResolveDecimals(poolAddr ethcommon.Address) (uint8, uint8, bool) {
	info, ok := c.GetCached(poolAddr)
	if !ok {
		return 0, 0, false
	}
	return info.Token0Decimals, info.Token1Decimals, true
}

// GetOrDiscover is the phase-2 path: check the cache, and on a miss
// submit a discovery request and wait (bounded by ctx) for a worker to
// resolve it via eth_call. Callers on a genuinely hot path should use
// GetCached instead; this is for background warming or explicit
// on-demand resolution where a caller can tolerate RPC latency.
func (c *Cache) GetOrDiscover(ctx context.Context, addr ethcommon.Address) (wire.PoolInfoTLV, error) {
	if info, ok := c.GetCached(addr); ok {
		return info, nil
	}
	req := discoveryRequest{addr: addr, resp: make(chan discoveryResult, 1)}
	select {
	case c.discoveryCh <- req:
	default:
		return wire.PoolInfoTLV{}, ErrDiscoveryQueueFull
	}
	select {
	case res := <-req.resp:
		return res.info, res.err
	case <-ctx.Done():
		return wire.PoolInfoTLV{}, ctx.Err()
	}
}

// insert publishes a resolved PoolInfoTLV into its shard and appends a
// journal entry, per spec.md §4.7 step 3. Partial/default records are
// never inserted; callers only reach here after a successful discovery.
func (c *Cache) insert(info wire.PoolInfoTLV) {
	s := c.shardFor(info.PoolAddr)
	s.mu.Lock()
	s.pools[info.PoolAddr] = info
	s.mu.Unlock()
	cachedPools.Inc()
	if c.journal != nil {
		_ = c.journal.Append(JournalEntry{Op: JournalAdd, Timestamp: uint64(time.Now().UnixNano()), Info: info})
	}
}

// LoadSnapshot inserts every record in snap into the cache, used during
// startup before journal replay. Entries already cached are not cleared;
// a record in snap overwrites a cached entry for the same pool address.
func (c *Cache) LoadSnapshot(snap *Snapshot) {
	for _, info := range snap.Pools {
		s := c.shardFor(info.PoolAddr)
		s.mu.Lock()
		s.pools[info.PoolAddr] = info
		s.mu.Unlock()
	}
	cachedPools.Add(float64(len(snap.Pools)))
}

// ApplyJournalEntry replays one journal entry onto the cache, used
// after loading a snapshot to catch up on entries written since.
func (c *Cache) ApplyJournalEntry(e JournalEntry) {
	s := c.shardFor(e.Info.PoolAddr)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Op {
	case JournalDelete:
		delete(s.pools, e.Info.PoolAddr)
	default:
		s.pools[e.Info.PoolAddr] = e.Info
	}
}

// Snapshot captures the cache's entire current contents for persistence.
func (c *Cache) Snapshot() []wire.PoolInfoTLV {
	var out []wire.PoolInfoTLV
	for _, s := range c.shards {
		s.mu.RLock()
		for _, info := range s.pools {
			out = append(out, info)
		}
		s.mu.RUnlock()
	}
	return out
}

// Len reports the total number of cached pools across all shards.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.pools)
		s.mu.RUnlock()
	}
	return n
}

func nextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}
