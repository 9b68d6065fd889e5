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

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// AddressSlotSize is the on-wire width of a padded Ethereum address field:
// 20 address bytes followed by 12 zero bytes.
const AddressSlotSize = 32

// PutAddress writes addr's 20 bytes into dst[:32] followed by 12 zero
// padding bytes. dst must be at least AddressSlotSize long.
func PutAddress(dst []byte, addr ethcommon.Address) {
	_ = dst[AddressSlotSize-1]
	copy(dst[0:20], addr.Bytes())
	for i := 20; i < AddressSlotSize; i++ {
		dst[i] = 0
	}
}

// GetAddress reads a padded 32-byte address slot from src, rejecting any
// message whose 12 trailing padding bytes are not all zero.
func GetAddress(src []byte) (ethcommon.Address, error) {
	if len(src) < AddressSlotSize {
		return ethcommon.Address{}, fmt.Errorf("%w: address slot", ErrPayloadTooShort)
	}
	for i := 20; i < AddressSlotSize; i++ {
		if src[i] != 0 {
			return ethcommon.Address{}, fmt.Errorf("wire: non-zero address padding at byte %d", i)
		}
	}
	var a ethcommon.Address
	copy(a[:], src[0:20])
	return a, nil
}

// Amount128 is a native-precision, unsigned 128-bit token amount stored as
// two big-endian halves so it never round-trips through a float. On the
// wire it is little-endian, matching every other payload field (§6).
type Amount128 struct {
	Hi uint64
	Lo uint64
}

// PutAmount128 writes a little-endian 16-byte amount to dst.
func PutAmount128(dst []byte, a Amount128) {
	_ = dst[15]
	binary.LittleEndian.PutUint64(dst[0:8], a.Lo)
	binary.LittleEndian.PutUint64(dst[8:16], a.Hi)
}

// GetAmount128 reads a little-endian 16-byte amount from src.
func GetAmount128(src []byte) Amount128 {
	_ = src[15]
	return Amount128{
		Lo: binary.LittleEndian.Uint64(src[0:8]),
		Hi: binary.LittleEndian.Uint64(src[8:16]),
	}
}

// FixedPoint8 is an 8-decimal fixed-point quantity (1.00 == 100_000_000),
// used for USD-denominated fields. Never convert to float on the hot path.
type FixedPoint8 int64

const FixedPoint8Scale = 100_000_000

// MinValidTimestampNs rejects timestamps that look like microsecond- or
// millisecond-unit confusion: any real nanosecond timestamp is well past
// one day after the epoch.
const MinValidTimestampNs = uint64(24 * 60 * 60 * 1_000_000_000)

// ValidTimestamp reports whether ns is plausibly a nanosecond-since-epoch
// value rather than a smaller unit mistakenly passed through.
func ValidTimestamp(ns uint64) bool {
	return ns >= MinValidTimestampNs
}
