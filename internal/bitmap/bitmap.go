// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bitmap implements a payload-field pre-filter: for a given field
// value, a bitset over point slot indices marks which points match, so a
// filtered search can skip scoring points that can never qualify. It is
// consulted best-effort, never authoritative on its own.
package bitmap

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// Index maps "field=value" pairs to the set of point slots matching them.
// Slots are assigned densely by first-seen order of PointId, independent
// of any particular segment's own slot numbering.
type Index struct {
	mu      sync.RWMutex
	slotOf  map[vectortypes.PointId]uint
	nextSlot uint
	sets    map[string]*bitset.BitSet
}

// New creates an empty bitmap index.
func New() *Index {
	return &Index{
		slotOf: make(map[vectortypes.PointId]uint),
		sets:   make(map[string]*bitset.BitSet),
	}
}

func fieldKey(field, value string) string { return field + "\x00" + value }

func (idx *Index) slotFor(id vectortypes.PointId) uint {
	if s, ok := idx.slotOf[id]; ok {
		return s
	}
	s := idx.nextSlot
	idx.slotOf[id] = s
	idx.nextSlot++
	return s
}

// Set records that id's payload has field == value.
func (idx *Index) Set(id vectortypes.PointId, field, value string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	slot := idx.slotFor(id)
	key := fieldKey(field, value)
	bs, ok := idx.sets[key]
	if !ok {
		bs = bitset.New(64)
		idx.sets[key] = bs
	}
	bs.Set(slot)
}

// Unset removes any (field, value) -> id association for id; used when a
// point's payload is overwritten with a different field value.
func (idx *Index) Unset(id vectortypes.PointId, field, value string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	slot, ok := idx.slotOf[id]
	if !ok {
		return
	}
	if bs, ok := idx.sets[fieldKey(field, value)]; ok {
		bs.Clear(slot)
	}
}

// Matches reports whether id has field == value recorded.
func (idx *Index) Matches(id vectortypes.PointId, field, value string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	slot, ok := idx.slotOf[id]
	if !ok {
		return false
	}
	bs, ok := idx.sets[fieldKey(field, value)]
	if !ok {
		return false
	}
	return bs.Test(slot)
}

// FilterFunc returns a predicate closing over (field, value) suitable for
// passing to a search path that accepts a point-id allow-list.
func (idx *Index) FilterFunc(field, value string) func(vectortypes.PointId) bool {
	return func(id vectortypes.PointId) bool {
		return idx.Matches(id, field, value)
	}
}
