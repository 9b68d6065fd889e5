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
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"torq/internal/wire"
)

// snapshotMagic is the fixed 4-byte magic spec.md §4.7 requires.
var snapshotMagic = [4]byte{'P', 'O', 'O', 'L'}

const snapshotVersion = 1

// snapshotHeaderSize is magic(4) + version(1) + chain_id(8) +
// pool_count(4) + last_updated_secs(8) + checksum(4) + reserved(32).
const snapshotHeaderSize = 4 + 1 + 8 + 4 + 8 + 4 + 32

var (
	// ErrBadSnapshotMagic is returned when a snapshot file doesn't begin
	// with the expected "POOL" magic bytes.
	ErrBadSnapshotMagic = fmt.Errorf("poolcache: bad snapshot magic")
	// ErrUnsupportedSnapshotVersion is returned for a snapshot version
	// this build doesn't know how to read.
	ErrUnsupportedSnapshotVersion = fmt.Errorf("poolcache: unsupported snapshot version")
	// ErrSnapshotChecksumMismatch is returned when the body's CRC32
	// doesn't match the header's recorded checksum.
	ErrSnapshotChecksumMismatch = fmt.Errorf("poolcache: snapshot checksum mismatch")
)

// Snapshot is a point-in-time dump of the pool cache, per spec.md §4.7's
// on-disk format: a fixed header followed by a sequence of PoolInfoTLV
// records.
type Snapshot struct {
	ChainID         uint64
	LastUpdatedSecs uint64
	Pools           []wire.PoolInfoTLV
}

// WriteSnapshotFile serializes snap to path atomically: it writes to a
// temp file in the same directory, then renames over path, per spec.md
// §4.7's "snapshot writes go to a temp file then rename" atomicity rule.
func WriteSnapshotFile(path string, snap Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".poolsnapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	body := make([]byte, 0, len(snap.Pools)*wire.PoolInfoTLVSize)
	for _, p := range snap.Pools {
		buf := make([]byte, wire.PoolInfoTLVSize)
		p.Encode(buf)
		body = append(body, buf...)
	}
	checksum := crc32.ChecksumIEEE(body)

	header := make([]byte, snapshotHeaderSize)
	copy(header[0:4], snapshotMagic[:])
	header[4] = snapshotVersion
	binary.LittleEndian.PutUint64(header[5:13], snap.ChainID)
	binary.LittleEndian.PutUint32(header[13:17], uint32(len(snap.Pools)))
	binary.LittleEndian.PutUint64(header[17:25], snap.LastUpdatedSecs)
	binary.LittleEndian.PutUint32(header[25:29], checksum)
	// header[29:61] reserved, left zero.

	if _, err := tmp.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadSnapshotFile loads and validates a snapshot file, rejecting bad
// magic/version/checksum per spec.md §4.7. Callers that get an error
// here should treat the cache as empty and continue from the journal
// rather than fail startup outright.
func ReadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()

	header := make([]byte, snapshotHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return Snapshot{}, fmt.Errorf("poolcache: short snapshot header: %w", err)
	}
	if string(header[0:4]) != string(snapshotMagic[:]) {
		return Snapshot{}, ErrBadSnapshotMagic
	}
	version := header[4]
	if version != snapshotVersion {
		return Snapshot{}, ErrUnsupportedSnapshotVersion
	}
	chainID := binary.LittleEndian.Uint64(header[5:13])
	poolCount := binary.LittleEndian.Uint32(header[13:17])
	lastUpdated := binary.LittleEndian.Uint64(header[17:25])
	wantChecksum := binary.LittleEndian.Uint32(header[25:29])

	body, err := io.ReadAll(f)
	if err != nil {
		return Snapshot{}, err
	}
	if crc32.ChecksumIEEE(body) != wantChecksum {
		return Snapshot{}, ErrSnapshotChecksumMismatch
	}
	if len(body) != int(poolCount)*wire.PoolInfoTLVSize {
		return Snapshot{}, fmt.Errorf("poolcache: snapshot body size %d doesn't match pool_count %d", len(body), poolCount)
	}

	pools := make([]wire.PoolInfoTLV, 0, poolCount)
	for off := 0; off < len(body); off += wire.PoolInfoTLVSize {
		p, err := wire.DecodePoolInfoTLV(body[off : off+wire.PoolInfoTLVSize])
		if err != nil {
			return Snapshot{}, err
		}
		pools = append(pools, p)
	}
	return Snapshot{ChainID: chainID, LastUpdatedSecs: lastUpdated, Pools: pools}, nil
}

// LoadWithRecovery implements spec.md §4.7's load sequence: read the
// snapshot (treating a bad magic/version/checksum as "empty, continue
// from journal"), then replay every journal entry into the cache.
func LoadWithRecovery(c *Cache, snapshotPath, journalPath string) error {
	snap, err := ReadSnapshotFile(snapshotPath)
	switch {
	case err == nil:
		c.LoadSnapshot(&snap)
	case os.IsNotExist(err):
		// No snapshot yet; start from an empty cache.
	default:
		// Corrupt snapshot: treat as empty and continue from the journal.
	}

	entries, err := ReadJournal(journalPath)
	if err != nil {
		return err
	}
	for _, e := range entries {
		c.ApplyJournalEntry(e)
	}
	return nil
}
