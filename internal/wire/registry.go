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

import "fmt"

// TLVKind distinguishes the two on-wire framings a type can be registered
// under. Standard types (1-254) pay a 2-byte header; extended types use the
// 255 escape marker and a 2-byte little-endian length for payloads that
// don't fit in a single byte.
type TLVKind uint8

const (
	KindStandard TLVKind = iota
	KindExtended
)

// TLVDescriptor is the static, immutable description of one registered TLV
// type: its framing kind, its fixed on-wire size (0 means variable-length),
// and which relay domains it is permitted to travel on.
type TLVDescriptor struct {
	Type      uint8
	Name      string
	Kind      TLVKind
	FixedSize int
	Domains   uint8 // bitmask of 1<<RelayDomain
}

func domainBit(d RelayDomain) uint8 { return 1 << uint8(d) }

// AllowsDomain reports whether this type may be carried on d.
func (t TLVDescriptor) AllowsDomain(d RelayDomain) bool {
	return t.Domains&domainBit(d) != 0
}

// Registry is a direct-indexed dispatch table over the 256 possible TLV
// type bytes. A hashed open-addressed table (the technique the teacher's
// SShard uses for its KeyID/BucketID dispatch) was considered, but the key
// space here is a single byte, so direct indexing is both simpler and
// strictly faster than any hash-probing scheme: there is nothing to hash.
type Registry struct {
	slots [256]*TLVDescriptor
}

// NewRegistry returns a Registry pre-populated with every TLV record type
// defined in records.go.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range standardDescriptors {
		d := standardDescriptors[i]
		r.slots[d.Type] = &standardDescriptors[i]
	}
	return r
}

// Lookup returns the descriptor for typ, or an error if the type is
// unregistered or not permitted on domain.
func (r *Registry) Lookup(domain RelayDomain, typ uint8) (*TLVDescriptor, error) {
	d := r.slots[typ]
	if d == nil {
		return nil, fmt.Errorf("%w: type %d", ErrUnknownType, typ)
	}
	if !d.AllowsDomain(domain) {
		return nil, fmt.Errorf("%w: type %d (%s) on domain %s", ErrTypeOutOfRange, typ, d.Name, domain)
	}
	return d, nil
}

// Register adds or overwrites a descriptor. Used by tests and by vendor
// extensions (types 200-254) that a deployment wants to declare at startup.
func (r *Registry) Register(d TLVDescriptor) {
	r.slots[d.Type] = &d
}
