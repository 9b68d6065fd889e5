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

// Package wire implements Torq's binary message bus wire format: the
// 32-byte header, the typed length-value (TLV) payload codec, and the
// fixed-size domain records that ride inside it.
package wire

// RelayDomain partitions messages into one of the four relay sockets.
type RelayDomain uint8

const (
	DomainMarketData RelayDomain = 1
	DomainSignal     RelayDomain = 2
	DomainExecution  RelayDomain = 3
	DomainSystem     RelayDomain = 4
)

// Valid reports whether d is one of the four known relay domains.
func (d RelayDomain) Valid() bool {
	return d >= DomainMarketData && d <= DomainSystem
}

func (d RelayDomain) String() string {
	switch d {
	case DomainMarketData:
		return "MarketData"
	case DomainSignal:
		return "Signal"
	case DomainExecution:
		return "Execution"
	case DomainSystem:
		return "System"
	default:
		return "Unknown"
	}
}

// Source identifies the producing service. Stable across releases: new
// sources take an unused slot rather than renumbering existing ones.
type Source uint8

const (
	SourceBinanceCollector Source = 1
	SourceKrakenCollector  Source = 2
	SourceCoinbaseCollector Source = 3
	SourcePolygonCollector Source = 4

	SourceArbitrageStrategy Source = 20
	SourceMarketMaker       Source = 21

	SourcePortfolioManager Source = 40
	SourceExecutionEngine  Source = 41

	SourceDashboard        Source = 80
	SourceMetricsCollector Source = 81
	SourceStateManager     Source = 82
	SourceSignalRelay      Source = 83

	SourceTestClient Source = 254
)

var sourceNames = map[Source]string{
	SourceBinanceCollector:  "BinanceCollector",
	SourceKrakenCollector:   "KrakenCollector",
	SourceCoinbaseCollector: "CoinbaseCollector",
	SourcePolygonCollector:  "PolygonCollector",
	SourceArbitrageStrategy: "ArbitrageStrategy",
	SourceMarketMaker:       "MarketMaker",
	SourcePortfolioManager:  "PortfolioManager",
	SourceExecutionEngine:   "ExecutionEngine",
	SourceDashboard:         "Dashboard",
	SourceMetricsCollector:  "MetricsCollector",
	SourceStateManager:      "StateManager",
	SourceSignalRelay:       "SignalRelay",
	SourceTestClient:        "TestClient",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MagicBytes is the 4-byte frame-sync marker, written big-endian at offset 0
// regardless of host endianness so that a byte-scanning resync loop can find
// it without interpreting the rest of the header.
const MagicBytes uint32 = 0xDEADBEEF

// SupportedVersion is the highest header version this build understands.
const SupportedVersion uint8 = 1

// HeaderSize is the fixed on-wire header length in bytes.
const HeaderSize = 32
