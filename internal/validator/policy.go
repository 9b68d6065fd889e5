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

// Package validator implements the per-domain message validator (C3):
// type/size/policy checks and per-source sequence gap tracking.
package validator

import (
	"os"
	"strconv"
	"time"

	"torq/internal/wire"
)

// Policy is one relay domain's validation configuration.
type Policy struct {
	Domain              wire.RelayDomain
	Checksum            bool
	Audit               bool
	Strict              bool
	MaxMessageSize      uint32
	EnforceTimestamp    bool
	FutureToleranceNs   uint64
	PastToleranceNs     uint64
	MaxSequenceGap      uint64
	SequenceWindowSize  int
}

// DefaultPolicies returns the four production default policies from
// spec.md §4.3.
func DefaultPolicies() map[wire.RelayDomain]Policy {
	return map[wire.RelayDomain]Policy{
		wire.DomainMarketData: {
			Domain:             wire.DomainMarketData,
			Checksum:           false,
			MaxMessageSize:     2 * 1024,
			MaxSequenceGap:     100,
			SequenceWindowSize: 256,
		},
		wire.DomainSignal: {
			Domain:             wire.DomainSignal,
			Checksum:           true,
			MaxMessageSize:     8 * 1024,
			MaxSequenceGap:     100,
			SequenceWindowSize: 256,
		},
		wire.DomainExecution: {
			Domain:             wire.DomainExecution,
			Checksum:           true,
			Strict:             true,
			Audit:              true,
			MaxMessageSize:     16 * 1024,
			EnforceTimestamp:   true,
			FutureToleranceNs:  2 * uint64(time.Second),
			PastToleranceNs:    30 * uint64(time.Second),
			MaxSequenceGap:     100,
			SequenceWindowSize: 256,
		},
		wire.DomainSystem: {
			Domain:             wire.DomainSystem,
			Checksum:           true,
			MaxMessageSize:     4 * 1024,
			MaxSequenceGap:     100,
			SequenceWindowSize: 256,
		},
	}
}

// envOverrideName matches spec.md §6's illustrative TORQ_MAX_MESSAGE_SIZE_MARKET
// style: TORQ_MAX_MESSAGE_SIZE_<DOMAIN>.
func envOverrideName(d wire.RelayDomain) string {
	return "TORQ_MAX_MESSAGE_SIZE_" + domainEnvSuffix(d)
}

func domainEnvSuffix(d wire.RelayDomain) string {
	switch d {
	case wire.DomainMarketData:
		return "MARKET"
	case wire.DomainSignal:
		return "SIGNAL"
	case wire.DomainExecution:
		return "EXECUTION"
	case wire.DomainSystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// ApplyEnvOverrides mutates policies in place from any TORQ_MAX_MESSAGE_SIZE_*
// environment variables present, following the teacher's flag-then-env
// override construction order (cmd/ratelimiter-api/main.go).
func ApplyEnvOverrides(policies map[wire.RelayDomain]Policy) {
	for domain, p := range policies {
		name := envOverrideName(domain)
		val, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			continue
		}
		p.MaxMessageSize = uint32(n)
		policies[domain] = p
	}
}
