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

// Package relay implements the domain-partitioned relay server (C4):
// a Unix-domain listener per relay domain, a topic registry, and
// broadcast fanout with lagged-consumer drop.
package relay

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// DomainConfig is one relay domain's socket path and validation policy
// knobs, loaded from the [domains.<name>] table of the TOML config.
// Grounded on folbricht-routedns's nested listener/resolver TOML shape.
type DomainConfig struct {
	SocketPath         string `toml:"socket_path"`
	Checksum           bool   `toml:"checksum"`
	Strict             bool   `toml:"strict"`
	Audit              bool   `toml:"audit"`
	MaxMessageSize     uint32 `toml:"max_message_size"`
	MaxSequenceGap     uint64 `toml:"max_sequence_gap"`
	SequenceWindowSize int    `toml:"sequence_window_size"`
	BroadcastCapacity  int    `toml:"broadcast_capacity"`
}

// Config is the top-level relay TOML document.
type Config struct {
	Domains map[string]DomainConfig `toml:"domains"`
}

// DefaultConfig mirrors spec.md §6's default socket paths.
func DefaultConfig() Config {
	return Config{
		Domains: map[string]DomainConfig{
			"market_data": {SocketPath: "/tmp/torq/market_data.sock", MaxMessageSize: 2048, MaxSequenceGap: 100, SequenceWindowSize: 256, BroadcastCapacity: 10000},
			"signals":     {SocketPath: "/tmp/torq/signals.sock", Checksum: true, MaxMessageSize: 8192, MaxSequenceGap: 100, SequenceWindowSize: 256, BroadcastCapacity: 10000},
			"execution":   {SocketPath: "/tmp/torq/execution.sock", Checksum: true, Strict: true, Audit: true, MaxMessageSize: 16384, MaxSequenceGap: 100, SequenceWindowSize: 256, BroadcastCapacity: 10000},
			"system":      {SocketPath: "/tmp/torq/system.sock", Checksum: true, MaxMessageSize: 4096, MaxSequenceGap: 100, SequenceWindowSize: 256, BroadcastCapacity: 10000},
		},
	}
}

// LoadConfig reads and decodes a relay TOML config file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("relay: decode config %s: %w", path, err)
	}
	return cfg, nil
}
