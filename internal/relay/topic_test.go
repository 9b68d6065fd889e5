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

package relay

import (
	"testing"

	"torq/internal/wire"
)

func TestSourceTypeStrategyUsesSourceName(t *testing.T) {
	h := wire.Header{Source: wire.SourceBinanceCollector}
	if got := SourceTypeStrategy(h, nil); got != wire.SourceBinanceCollector.String() {
		t.Fatalf("got %q", got)
	}
}

func TestFixedStrategyIgnoresFrame(t *testing.T) {
	f := FixedStrategy("trades")
	if got := f(wire.Header{Source: wire.SourceCoinbaseCollector}, nil); got != "trades" {
		t.Fatalf("got %q", got)
	}
}

func TestTopicRegistrySubscribeUnsubscribe(t *testing.T) {
	r := NewTopicRegistry()
	r.Subscribe("trades", 1)
	r.Subscribe("trades", 2)
	r.Subscribe("quotes", 1)

	subs := r.Subscribers("trades")
	if len(subs) != 2 {
		t.Fatalf("len(subscribers) = %d, want 2", len(subs))
	}

	r.Unsubscribe(1)
	subs = r.Subscribers("trades")
	if len(subs) != 1 || subs[0] != 2 {
		t.Fatalf("after unsubscribe: %v", subs)
	}
	if len(r.Subscribers("quotes")) != 0 {
		t.Fatalf("quotes should be empty after unsubscribing its only member")
	}
}

func TestSingleShardRegistryOwnsEverything(t *testing.T) {
	r := NewTopicRegistry()
	if !r.OwnsTopic("anything") {
		t.Fatal("single-shard registry must own every topic")
	}
}

func TestShardedRegistryPartitionsTopics(t *testing.T) {
	shards := []string{"a", "b", "c"}
	registries := make(map[string]*TopicRegistry, len(shards))
	for _, id := range shards {
		registries[id] = NewShardedTopicRegistry(id, shards)
	}

	topics := []string{"binance", "coinbase", "kraken", "uniswap_v2", "uniswap_v3", "sushiswap"}
	for _, topic := range topics {
		owners := 0
		for _, id := range shards {
			if registries[id].OwnsTopic(topic) {
				owners++
			}
		}
		if owners != 1 {
			t.Fatalf("topic %q owned by %d shards, want exactly 1", topic, owners)
		}
	}
}
