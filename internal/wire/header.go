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

package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Header is the fixed 32-byte frame header that precedes every TLV payload
// on the bus. Field layout (little-endian on the wire, except magic, which
// is the sole big-endian field):
//
//	offset  size  field
//	0       4     magic bytes (0xDEADBEEF, big-endian)
//	4       1     version
//	5       1     flags (opaque, forwarded unmodified by the relay)
//	6       1     relay_domain
//	7       1     source
//	8       4     reserved, zero on send, ignored on receive
//	12      8     sequence
//	20      8     timestamp_ns
//	28      4     checksum (CRC32-IEEE over the message with this field zeroed)
type Header struct {
	Version     uint8
	Flags       uint8
	Domain      RelayDomain
	Source      Source
	Sequence    uint64
	TimestampNs uint64
	Checksum    uint32
}

// Encode writes h plus the checksum into dst[:HeaderSize]. payload is the
// TLV body that follows the header on the wire; it is included in the
// checksum but not written by Encode. dst must be at least HeaderSize bytes.
func (h *Header) Encode(dst []byte, payload []byte) {
	_ = dst[HeaderSize-1]
	binary.BigEndian.PutUint32(dst[0:4], MagicBytes)
	dst[4] = h.Version
	dst[5] = h.Flags
	dst[6] = byte(h.Domain)
	dst[7] = byte(h.Source)
	binary.LittleEndian.PutUint32(dst[8:12], 0)
	binary.LittleEndian.PutUint64(dst[12:20], h.Sequence)
	binary.LittleEndian.PutUint64(dst[20:28], h.TimestampNs)
	binary.LittleEndian.PutUint32(dst[28:32], 0)

	crc := crc32.ChecksumIEEE(dst[:HeaderSize])
	crc = crc32.Update(crc, crc32.IEEETable, payload)
	h.Checksum = crc
	binary.LittleEndian.PutUint32(dst[28:32], crc)
}

// ParseHeader reads a Header from buf[:HeaderSize] without validating the
// checksum; call Verify for that once the payload bytes are also available.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != MagicBytes {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version:     buf[4],
		Flags:       buf[5],
		Domain:      RelayDomain(buf[6]),
		Source:      Source(buf[7]),
		Sequence:    binary.LittleEndian.Uint64(buf[12:20]),
		TimestampNs: binary.LittleEndian.Uint64(buf[20:28]),
		Checksum:    binary.LittleEndian.Uint32(buf[28:32]),
	}
	if h.Version > SupportedVersion {
		return Header{}, fmt.Errorf("%w: got version %d, max %d", ErrUnsupportedVersion, h.Version, SupportedVersion)
	}
	if !h.Domain.Valid() {
		return Header{}, fmt.Errorf("%w: domain byte %d", ErrBadDomain, buf[6])
	}
	return h, nil
}

// Verify recomputes the CRC32 over headerBuf (with the checksum field
// zeroed) and payload, and compares it against h.Checksum.
func (h *Header) Verify(headerBuf []byte, payload []byte) error {
	if len(headerBuf) < HeaderSize {
		return ErrShortHeader
	}
	var scratch [HeaderSize]byte
	copy(scratch[:], headerBuf[:HeaderSize])
	binary.LittleEndian.PutUint32(scratch[28:32], 0)
	crc := crc32.ChecksumIEEE(scratch[:])
	crc = crc32.Update(crc, crc32.IEEETable, payload)
	if crc != h.Checksum {
		return fmt.Errorf("%w: want %#08x got %#08x", ErrChecksumMismatch, h.Checksum, crc)
	}
	return nil
}
