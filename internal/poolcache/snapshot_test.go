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
	"os"
	"path/filepath"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"torq/internal/wire"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pools.snap")

	snap := Snapshot{
		ChainID:         137,
		LastUpdatedSecs: 1700000000,
		Pools: []wire.PoolInfoTLV{
			{PoolAddr: ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"), Token0Decimals: 6, Token1Decimals: 18, Venue: 4},
			{PoolAddr: ethcommon.HexToAddress("0x2222222222222222222222222222222222222222"), Token0Decimals: 8, Token1Decimals: 8, Venue: 4, PoolType: wire.PoolTypeV3},
		},
	}
	if err := WriteSnapshotFile(path, snap); err != nil {
		t.Fatalf("WriteSnapshotFile: %v", err)
	}

	loaded, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile: %v", err)
	}
	if loaded.ChainID != 137 || loaded.LastUpdatedSecs != 1700000000 {
		t.Fatalf("loaded header = %+v, unexpected", loaded)
	}
	if len(loaded.Pools) != 2 {
		t.Fatalf("len(Pools) = %d, want 2", len(loaded.Pools))
	}
	if loaded.Pools[1].PoolType != wire.PoolTypeV3 {
		t.Fatalf("Pools[1].PoolType = %v, want PoolTypeV3", loaded.Pools[1].PoolType)
	}
}

func TestSnapshotRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.snap")
	garbage := make([]byte, snapshotHeaderSize)
	copy(garbage, []byte("NOPE"))
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadSnapshotFile(path); err != ErrBadSnapshotMagic {
		t.Fatalf("ReadSnapshotFile err = %v, want ErrBadSnapshotMagic", err)
	}
}

func TestSnapshotRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.snap")
	snap := Snapshot{
		Pools: []wire.PoolInfoTLV{{PoolAddr: ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")}},
	}
	if err := WriteSnapshotFile(path, snap); err != nil {
		t.Fatalf("WriteSnapshotFile: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte in the body, past the header, to corrupt the payload
	// without touching the magic/version/checksum fields themselves.
	raw[snapshotHeaderSize] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := ReadSnapshotFile(path); err != ErrSnapshotChecksumMismatch {
		t.Fatalf("ReadSnapshotFile err = %v, want ErrSnapshotChecksumMismatch", err)
	}
}

func TestLoadWithRecoveryReplaysJournalAfterSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "pools.snap")
	journalPath := filepath.Join(dir, "pools.journal")

	snapAddr := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	journalAddr := ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")

	snap := Snapshot{Pools: []wire.PoolInfoTLV{{PoolAddr: snapAddr, Token0Decimals: 6}}}
	if err := WriteSnapshotFile(snapPath, snap); err != nil {
		t.Fatalf("WriteSnapshotFile: %v", err)
	}

	j, err := OpenJournal(journalPath)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	if err := j.Append(JournalEntry{Op: JournalAdd, Info: wire.PoolInfoTLV{PoolAddr: journalAddr, Token0Decimals: 18}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c := NewCache(Options{})
	if err := LoadWithRecovery(c, snapPath, journalPath); err != nil {
		t.Fatalf("LoadWithRecovery: %v", err)
	}

	if _, ok := c.GetCached(snapAddr); !ok {
		t.Fatal("expected the snapshot pool to be loaded")
	}
	if _, ok := c.GetCached(journalAddr); !ok {
		t.Fatal("expected the journal-replayed pool to be loaded")
	}
}

func TestLoadWithRecoveryTreatsMissingSnapshotAsEmpty(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "pools.journal")
	addr := ethcommon.HexToAddress("0x3333333333333333333333333333333333333333")

	j, err := OpenJournal(journalPath)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	j.Append(JournalEntry{Op: JournalAdd, Info: wire.PoolInfoTLV{PoolAddr: addr}})
	j.Close()

	c := NewCache(Options{})
	if err := LoadWithRecovery(c, filepath.Join(dir, "does-not-exist.snap"), journalPath); err != nil {
		t.Fatalf("LoadWithRecovery: %v", err)
	}
	if _, ok := c.GetCached(addr); !ok {
		t.Fatal("expected journal replay to still populate the cache with no snapshot present")
	}
}
