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
	_ "unsafe" // for go:linkname
)

// scratchBufSize is the per-P buffer size: large enough for any standard
// message and most extended ones without spilling into a heap allocation.
const scratchBufSize = 64 * 1024

//go:linkname runtime_procPin runtime.procPin
func runtime_procPin() int

//go:linkname runtime_procUnpin runtime.procUnpin
func runtime_procUnpin()

// scratchPool is a fixed-size array of per-P scratch buffers, indexed by
// the stable P id returned by runtime.procPin. This is the same technique
// the VSA rate-budget package uses (perPUpdateChooser) to pick a stripe
// index without an atomic increment per call: pinning to a P is cheap and
// the P count is bounded, so a flat array beats a sync.Pool Get/Put pair
// on the hottest path in the system.
var scratchPool [256][scratchBufSize]byte

// WithHotPathBuffer pins the calling goroutine to its P, hands fn a scratch
// buffer reset to zero length (but full scratchBufSize capacity), and
// unpins before returning. fn must not retain buf past the call: the next
// call on the same P reuses the same backing array. Returns fn's result
// and the number of bytes fn wrote.
func WithHotPathBuffer(fn func(buf []byte) (used int)) int {
	pid := runtime_procPin()
	idx := pid & (len(scratchPool) - 1)
	buf := scratchPool[idx][:0]
	used := fn(buf)
	runtime_procUnpin()
	return used
}

// BuildInto is the zero-allocation hot-path constructor: it pins to a P,
// encodes header and TLV payload directly into that P's scratch buffer,
// and invokes emit with the finished frame. emit must not retain the slice
// past the call (copy it if crossing an async/ownership boundary — that
// single copy is the one allocation the hot path is allowed).
func BuildInto(h Header, tlvs []TLVView, emit func(frame []byte) error) error {
	var callErr error
	pid := runtime_procPin()
	idx := pid & (len(scratchPool) - 1)
	buf := scratchPool[idx][:HeaderSize]

	for _, t := range tlvs {
		var err error
		buf, err = AppendTLV(buf, t.Type, t.Payload)
		if err != nil {
			runtime_procUnpin()
			return err
		}
	}
	payload := buf[HeaderSize:]
	h.Encode(buf[:HeaderSize], payload)
	callErr = emit(buf)
	runtime_procUnpin()
	return callErr
}
