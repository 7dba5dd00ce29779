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

package storage

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// PointMemoryPool is a fixed-capacity slab of Point slots backing one
// ActiveSegment. Slot occupancy is tracked in a bitset rather than by
// scanning the slice, and freed slots are recycled off a free-list so
// churn (delete then insert) does not grow the slab.
type PointMemoryPool struct {
	mu        sync.Mutex
	slots     []*Point
	occupied  *bitset.BitSet
	free      []int
	tinyMapCap int
}

// NewPointMemoryPool allocates a pool holding up to capacity points, each
// with a named-vector TinyMap bounded to tinyMapCap entries.
func NewPointMemoryPool(capacity, tinyMapCap int) *PointMemoryPool {
	return &PointMemoryPool{
		slots:      make([]*Point, capacity),
		occupied:   bitset.New(uint(capacity)),
		tinyMapCap: tinyMapCap,
	}
}

// Capacity returns the pool's fixed slot count.
func (p *PointMemoryPool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// TotalAllocated returns the number of currently occupied slots.
func (p *PointMemoryPool) TotalAllocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.occupied.Count())
}

// FreeSlots returns the number of slots available for Allocate.
func (p *PointMemoryPool) FreeSlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - int(p.occupied.Count())
}

// Allocate claims a slot for id, preferring a recycled slot from the
// free-list over extending into untouched slab space, and returns the new
// Point. It fails with merr.ErrPoolFull once every slot is occupied.
func (p *PointMemoryPool) Allocate(id vectortypes.PointId) (*Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var idx int
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		next, ok := p.occupied.NextClear(0)
		if !ok || int(next) >= len(p.slots) {
			return nil, merr.ErrPoolFull
		}
		idx = int(next)
	}

	pt := NewPoint(id, p.tinyMapCap)
	p.slots[idx] = pt
	p.occupied.Set(uint(idx))
	return pt, nil
}

// Deallocate releases the slot at idx back to the free-list. Callers are
// responsible for tracking which slot index a given point occupies
// (ActiveSegment keeps a PointId -> slot index map for this purpose).
func (p *PointMemoryPool) Deallocate(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.slots) || !p.occupied.Test(uint(idx)) {
		return
	}
	p.slots[idx] = nil
	p.occupied.Clear(uint(idx))
	p.free = append(p.free, idx)
}

// At returns the point at slot idx, or nil if the slot is free.
func (p *PointMemoryPool) At(idx int) *Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.slots) {
		return nil
	}
	return p.slots[idx]
}

// AllPoints returns every currently occupied point, in slot order. Used by
// segment promotion to hand the whole active set to the HNSW builder.
func (p *PointMemoryPool) AllPoints() []*Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Point, 0, p.occupied.Count())
	for i, e := p.occupied.NextSet(0); e; i, e = p.occupied.NextSet(i + 1) {
		out = append(out, p.slots[i])
	}
	return out
}

// Clear releases every slot, resetting the pool to empty.
func (p *PointMemoryPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		p.slots[i] = nil
	}
	p.occupied.ClearAll()
	p.free = p.free[:0]
}
