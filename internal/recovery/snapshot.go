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

import "sync"

// SnapshotDescriptor identifies one delivered snapshot payload.
type SnapshotDescriptor struct {
	SnapshotID string
	EndSeq     uint64
}

// SnapshotDeduper makes snapshot application idempotent: a snapshot
// delivery that is retried (e.g. because the consumer's ack was lost)
// must not be re-applied. Grounded on
// internal/ratelimiter/persistence/types.go's CommitEntry.CommitID
// idempotency-key discipline, generalized here from per-key commits to
// per-source snapshot ids.
type SnapshotDeduper struct {
	mu      sync.Mutex
	applied map[string]map[string]struct{} // source key -> seen snapshot ids
}

// NewSnapshotDeduper returns an empty deduper.
func NewSnapshotDeduper() *SnapshotDeduper {
	return &SnapshotDeduper{applied: make(map[string]map[string]struct{})}
}

// ShouldApply reports whether snapshotID for sourceKey has not been
// seen before, and records it as seen either way so a concurrent
// duplicate delivery is also rejected.
func (d *SnapshotDeduper) ShouldApply(sourceKey, snapshotID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen, ok := d.applied[sourceKey]
	if !ok {
		seen = make(map[string]struct{})
		d.applied[sourceKey] = seen
	}
	if _, dup := seen[snapshotID]; dup {
		return false
	}
	seen[snapshotID] = struct{}{}
	return true
}
