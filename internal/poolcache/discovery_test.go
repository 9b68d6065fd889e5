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
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

func TestDecodeAddressReadsRightmost20Bytes(t *testing.T) {
	out := make([]byte, 32)
	want := ethcommon.HexToAddress("0xabababababababababababababababababababab"[:42])
	copy(out[12:32], want.Bytes())
	got, err := decodeAddress(out)
	if err != nil {
		t.Fatalf("decodeAddress: %v", err)
	}
	if got != want {
		t.Fatalf("got = %v, want %v", got, want)
	}
}

func TestDecodeAddressRejectsShortInput(t *testing.T) {
	if _, err := decodeAddress(make([]byte, 10)); err == nil {
		t.Fatal("expected an error for input shorter than 32 bytes")
	}
}

func TestDecodeUint8ReadsLastByte(t *testing.T) {
	out := make([]byte, 32)
	out[31] = 18
	got, err := decodeUint8(out)
	if err != nil {
		t.Fatalf("decodeUint8: %v", err)
	}
	if got != 18 {
		t.Fatalf("got = %d, want 18", got)
	}
}

func TestEthereumCallMsgSetsSelectorAsData(t *testing.T) {
	to := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	msg := ethereumCallMsg(to, selectorToken0)
	if msg.To == nil || *msg.To != to {
		t.Fatalf("msg.To = %v, want %v", msg.To, to)
	}
	if len(msg.Data) != 4 {
		t.Fatalf("len(msg.Data) = %d, want 4", len(msg.Data))
	}
}
