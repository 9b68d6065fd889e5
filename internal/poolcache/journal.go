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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"torq/internal/wire"
)

// JournalOp enumerates the three operations a journal entry records.
type JournalOp uint8

const (
	JournalAdd JournalOp = iota
	JournalUpdate
	JournalDelete
)

// JournalEntry is one append-only record: an operation, the timestamp
// it was written, and the PoolInfoTLV it concerns.
type JournalEntry struct {
	Op        JournalOp
	Timestamp uint64
	Info      wire.PoolInfoTLV
}

// journalEntrySize is 1 (op) + 8 (timestamp) + PoolInfoTLVSize.
const journalEntrySize = 1 + 8 + wire.PoolInfoTLVSize

func encodeJournalEntry(e JournalEntry) []byte {
	buf := make([]byte, journalEntrySize)
	buf[0] = uint8(e.Op)
	binary.LittleEndian.PutUint64(buf[1:9], e.Timestamp)
	e.Info.Encode(buf[9:])
	return buf
}

func decodeJournalEntry(buf []byte) (JournalEntry, error) {
	if len(buf) < journalEntrySize {
		return JournalEntry{}, fmt.Errorf("poolcache: short journal entry (%d bytes)", len(buf))
	}
	info, err := wire.DecodePoolInfoTLV(buf[9:journalEntrySize])
	if err != nil {
		return JournalEntry{}, err
	}
	return JournalEntry{
		Op:        JournalOp(buf[0]),
		Timestamp: binary.LittleEndian.Uint64(buf[1:9]),
		Info:      info,
	}, nil
}

// Journal is an append-only, O_APPEND binary log of pool-cache mutations.
// Grounded directly on the teacher's SBatchFileSink (internal/sinks/
// sbatch_file_sink.go): a buffered append-only writer with a periodic
// flush, plus a standalone ReadAll-style replay reader — adapted here
// from JSONL records to fixed-size binary records, since the journal
// body is PoolInfoTLV's own wire encoding rather than a JSON shape.
type Journal struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	lastFlush time.Time
}

// OpenJournal opens (or creates) the journal file at path in append mode.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{f: f, w: bufio.NewWriterSize(f, 1<<16), lastFlush: time.Now()}, nil
}

// Append writes one entry, flushing at most every 100ms to bound
// data loss on crash without fsyncing on every write.
func (j *Journal) Append(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(encodeJournalEntry(e)); err != nil {
		return err
	}
	if time.Since(j.lastFlush) > 100*time.Millisecond {
		if err := j.w.Flush(); err != nil {
			return err
		}
		j.lastFlush = time.Now()
	}
	return nil
}

// Flush forces any buffered entries to disk.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastFlush = time.Now()
	return j.w.Flush()
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.w.Flush()
	return j.f.Close()
}

// ReadJournal replays every entry in the journal file at path, in
// order. Used at startup to catch up on mutations written since the
// last snapshot.
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []JournalEntry
	buf := make([]byte, journalEntrySize)
	for {
		_, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			// A partial trailing record means a crash mid-write; stop
			// replay here rather than erroring the whole load.
			break
		}
		if err != nil {
			return out, err
		}
		entry, err := decodeJournalEntry(buf)
		if err != nil {
			return out, err
		}
		out = append(out, entry)
	}
	return out, nil
}
