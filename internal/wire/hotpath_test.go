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
	"testing"
)

func TestBuildIntoZeroAllocations(t *testing.T) {
	trade := TradeTLV{InstrumentID: 1, Price: 1, Volume: Amount128{Lo: 1}, TimestampNs: MinValidTimestampNs + 1}
	payload := make([]byte, 40)
	trade.Encode(payload)

	h := Header{Version: SupportedVersion, Domain: DomainMarketData, Source: SourceBinanceCollector, Sequence: 1, TimestampNs: trade.TimestampNs}
	tlvs := []TLVView{{Type: TypeTrade, Payload: payload}}

	sink := 0
	emit := func(frame []byte) error {
		sink += len(frame)
		return nil
	}
	allocs := testing.AllocsPerRun(1000, func() {
		_ = BuildInto(h, tlvs, emit)
	})
	if allocs != 0 {
		t.Fatalf("BuildInto allocated %v times per run, want 0", allocs)
	}
	_ = sink
}

func BenchmarkBuildIntoTrade(b *testing.B) {
	trade := TradeTLV{InstrumentID: 1, Price: 1, Volume: Amount128{Lo: 1}, TimestampNs: MinValidTimestampNs + 1}
	payload := make([]byte, 40)
	trade.Encode(payload)
	h := Header{Version: SupportedVersion, Domain: DomainMarketData, Source: SourceBinanceCollector, TimestampNs: trade.TimestampNs}
	tlvs := []TLVView{{Type: TypeTrade, Payload: payload}}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Sequence = uint64(i)
		_ = BuildInto(h, tlvs, func(frame []byte) error { return nil })
	}
}

func BenchmarkParseHeader(b *testing.B) {
	frame := make([]byte, HeaderSize)
	h := Header{Version: SupportedVersion, Domain: DomainMarketData, Source: SourceBinanceCollector, Sequence: 1}
	h.Encode(frame, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseHeader(frame); err != nil {
			b.Fatal(err)
		}
	}
}
