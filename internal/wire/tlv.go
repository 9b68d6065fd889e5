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
)

// ExtendedMarker is the type byte that escapes into the 5-byte extended
// TLV framing (marker|reserved|type|length_lo|length_hi).
const ExtendedMarker = 0xFF

// MaxExtendedPayload is the largest payload an extended TLV can carry.
const MaxExtendedPayload = 65535

// TLVView is a borrowed, zero-copy view over one decoded TLV record:
// Payload aliases the input buffer and must not be retained past its
// lifetime without copying.
type TLVView struct {
	Type    uint8
	Kind    TLVKind
	Payload []byte
}

// AppendTLV appends one TLV record (type, payload) to dst in the encoding
// selected by payload length, returning the grown slice. This is the
// single place that decides standard vs extended framing.
func AppendTLV(dst []byte, typ uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxExtendedPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLong, len(payload))
	}
	if len(payload) <= 255 && typ != ExtendedMarker {
		dst = append(dst, typ, uint8(len(payload)))
		dst = append(dst, payload...)
		return dst, nil
	}
	var hdr [5]byte
	hdr[0] = ExtendedMarker
	hdr[1] = 0
	hdr[2] = typ
	binary.LittleEndian.PutUint16(hdr[3:5], uint16(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst, nil
}

// ParseTLVs scans buf (the payload region following the 32-byte header)
// into a sequence of TLVViews. It never allocates beyond the returned
// slice header: each view's Payload aliases buf.
func ParseTLVs(buf []byte) ([]TLVView, error) {
	var views []TLVView
	off := 0
	for off < len(buf) {
		if off+2 > len(buf) {
			return nil, fmt.Errorf("%w: at offset %d", ErrShortTLV, off)
		}
		typ := buf[off]
		if typ == ExtendedMarker {
			if off+5 > len(buf) {
				return nil, fmt.Errorf("%w: extended header at offset %d", ErrShortTLV, off)
			}
			realType := buf[off+2]
			length := int(binary.LittleEndian.Uint16(buf[off+3 : off+5]))
			payloadStart := off + 5
			payloadEnd := payloadStart + length
			if payloadEnd > len(buf) {
				return nil, fmt.Errorf("%w: type %d wants %d bytes at offset %d", ErrTruncatedPayload, realType, length, payloadStart)
			}
			views = append(views, TLVView{Type: realType, Kind: KindExtended, Payload: buf[payloadStart:payloadEnd]})
			off = payloadEnd
			continue
		}
		if off+2 > len(buf) {
			return nil, fmt.Errorf("%w: at offset %d", ErrShortTLV, off)
		}
		length := int(buf[off+1])
		payloadStart := off + 2
		payloadEnd := payloadStart + length
		if payloadEnd > len(buf) {
			return nil, fmt.Errorf("%w: type %d wants %d bytes at offset %d", ErrTruncatedPayload, typ, length, payloadStart)
		}
		views = append(views, TLVView{Type: typ, Kind: KindStandard, Payload: buf[payloadStart:payloadEnd]})
		off = payloadEnd
	}
	return views, nil
}

// ValidateAgainstRegistry checks v's type/size against reg for domain,
// rejecting unknown types, out-of-range types, and fixed-size mismatches.
func ValidateAgainstRegistry(reg *Registry, domain RelayDomain, v TLVView) error {
	d, err := reg.Lookup(domain, v.Type)
	if err != nil {
		return err
	}
	if d.FixedSize > 0 && len(v.Payload) != d.FixedSize {
		return fmt.Errorf("%w: type %d (%s) wants %d bytes, got %d", ErrPayloadTooShort, v.Type, d.Name, d.FixedSize, len(v.Payload))
	}
	return nil
}
