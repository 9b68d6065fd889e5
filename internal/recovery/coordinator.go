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

package recovery

import (
	"sync"

	"torq/internal/wire"
)

// Factory builds a fresh per-source Manager on first use.
type Factory func(source wire.Source) *Manager

// Coordinator lazily creates and caches one Manager per source.
// Grounded on internal/ratelimiter/core/store.go's Store.GetOrCreate:
// a fast-path Load before paying the allocation cost of a new Manager,
// and a LoadOrStore to resolve the race where two goroutines observe a
// gap for the same never-before-seen source concurrently.
type Coordinator struct {
	managers sync.Map // wire.Source -> *Manager
	factory  Factory
}

// NewCoordinator returns a coordinator that builds managers with factory.
func NewCoordinator(factory Factory) *Coordinator {
	return &Coordinator{factory: factory}
}

// ManagerFor returns the Manager for source, creating it on first use.
func (c *Coordinator) ManagerFor(source wire.Source) *Manager {
	if v, ok := c.managers.Load(source); ok {
		return v.(*Manager)
	}
	m := c.factory(source)
	actual, _ := c.managers.LoadOrStore(source, m)
	return actual.(*Manager)
}
