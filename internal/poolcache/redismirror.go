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

import (
	"context"
	"encoding/hex"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"torq/internal/wire"
)

// RedisMirror is an optional warm-standby mirror of the pool cache: a
// fan-out, best-effort write to Redis alongside the local journal, so a
// freshly started process in the same cluster can borrow a neighbor's
// warm cache instead of replaying RPC discovery from scratch. Grounded
// on the teacher's RedisPersister (internal/ratelimiter/persistence/
// redis.go): the same "wrap a narrow client interface, encode the
// record, write through" shape, simplified from its idempotency-marker
// Lua script (pool records aren't a commit/consume ledger, so there's
// nothing to deduplicate) down to a plain HSET into one TTL-free hash,
// HGET for single lookups, and a bulk HGETALL for warm-start reads.
type RedisMirror struct {
	client *redis.Client
	key    string
}

// NewRedisMirror wraps an already-configured go-redis client, mirroring
// pool records into the Redis hash named key.
func NewRedisMirror(client *redis.Client, key string) *RedisMirror {
	if key == "" {
		key = "torq:poolcache:pools"
	}
	return &RedisMirror{client: client, key: key}
}

// Write mirrors one resolved pool record into Redis, keyed by its
// lowercase hex address.
func (m *RedisMirror) Write(ctx context.Context, info wire.PoolInfoTLV) error {
	buf := make([]byte, wire.PoolInfoTLVSize)
	info.Encode(buf)
	return m.client.HSet(ctx, m.key, hex.EncodeToString(info.PoolAddr.Bytes()), buf).Err()
}

// Delete removes a mirrored record.
func (m *RedisMirror) Delete(ctx context.Context, addr ethcommon.Address) error {
	return m.client.HDel(ctx, m.key, hex.EncodeToString(addr.Bytes())).Err()
}

// Lookup fetches one pool's mirrored record, reporting ok=false on a
// cache miss (HGet's "redis: nil") as well as on a decode failure —
// either way the caller should fall through to RPC discovery rather
// than treat it as a hard error.
func (m *RedisMirror) Lookup(ctx context.Context, addr ethcommon.Address) (wire.PoolInfoTLV, bool) {
	raw, err := m.client.HGet(ctx, m.key, hex.EncodeToString(addr.Bytes())).Bytes()
	if err != nil || len(raw) != wire.PoolInfoTLVSize {
		return wire.PoolInfoTLV{}, false
	}
	info, err := wire.DecodePoolInfoTLV(raw)
	if err != nil {
		return wire.PoolInfoTLV{}, false
	}
	return info, true
}

// LoadAll fetches every mirrored record for warm-start population,
// skipping (rather than failing the whole load) any entry that fails
// to decode — a foreign/corrupt hash field should not block startup.
func (m *RedisMirror) LoadAll(ctx context.Context) ([]wire.PoolInfoTLV, error) {
	fields, err := m.client.HGetAll(ctx, m.key).Result()
	if err != nil {
		return nil, err
	}
	pools := make([]wire.PoolInfoTLV, 0, len(fields))
	for _, raw := range fields {
		buf := []byte(raw)
		if len(buf) != wire.PoolInfoTLVSize {
			continue
		}
		info, err := wire.DecodePoolInfoTLV(buf)
		if err != nil {
			continue
		}
		pools = append(pools, info)
	}
	return pools, nil
}

// MirroringCache wraps a Cache so every successful discovery is also
// written through to a RedisMirror, best-effort (a mirror write failure
// never fails the caller's GetOrDiscover).
type MirroringCache struct {
	*Cache
	mirror  *RedisMirror
	timeout time.Duration
}

// NewMirroringCache returns a MirroringCache layering mirror on top of cache.
func NewMirroringCache(cache *Cache, mirror *RedisMirror, timeout time.Duration) *MirroringCache {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MirroringCache{Cache: cache, mirror: mirror, timeout: timeout}
}

// GetOrDiscover checks the local cache, then Redis, and only falls
// through to RPC discovery if neither has the pool — per SPEC_FULL.md's
// "Redis is consulted before RPC, never instead of the local map."
// A pool found in Redis is inserted into the local cache (and its
// journal, if configured) so the next lookup is purely local.
func (m *MirroringCache) GetOrDiscover(ctx context.Context, addr ethcommon.Address) (wire.PoolInfoTLV, error) {
	if info, ok := m.Cache.GetCached(addr); ok {
		return info, nil
	}
	if info, ok := m.mirror.Lookup(ctx, addr); ok {
		m.Cache.insert(info)
		return info, nil
	}

	info, err := m.Cache.GetOrDiscover(ctx, addr)
	if err != nil {
		return info, err
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	_ = m.mirror.Write(writeCtx, info)
	return info, nil
}
