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

package segment

import (
	"context"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jerryli99/vectordb/internal/log"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/metrics"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// bloomExpectedItems and bloomFalsePositiveRate size the per-segment
// existence filter used to short-circuit point-exists checks without
// scanning every immutable segment's point id list.
const (
	bloomExpectedItems     = 100_000
	bloomFalsePositiveRate = 0.01
)

// SegmentHolder stores and manages access to the segments of a single
// collection without making higher-level decisions (that's Collection's
// job). It owns exactly one ActiveSegment plus any number of
// ImmutableSegments produced by promotion, and fans a query out across
// all of them.
type SegmentHolder struct {
	// mu serializes promotion against readers: a search takes RLock, a
	// promotion takes Lock, so no searcher ever observes the active
	// segment mid-swap. ActiveSegment's own mutex only protects one
	// segment; this lock protects the holder's view of which segments
	// currently exist.
	mu         sync.RWMutex
	active     *ActiveSegment
	immutables []*ImmutableSegment
	existence  map[vectortypes.SegmentId]*bloom.BloomFilter

	schema          Schema
	indexSpec       paramtable.IndexSpec
	activeCapacity  int
	collectionLabel string
}

// NewSegmentHolder creates a holder with a fresh, empty ActiveSegment.
func NewSegmentHolder(collectionLabel string, activeCapacity int, schema Schema, indexSpec paramtable.IndexSpec) *SegmentHolder {
	return &SegmentHolder{
		active:          NewActiveSegment(activeCapacity, schema, indexSpec),
		existence:       make(map[vectortypes.SegmentId]*bloom.BloomFilter),
		schema:          schema,
		indexSpec:       indexSpec,
		activeCapacity:  activeCapacity,
		collectionLabel: collectionLabel,
	}
}

// InsertPoint routes an insert to the active segment. Callers (Collection)
// are responsible for triggering MaybePromote afterward.
func (h *SegmentHolder) InsertPoint(id vectortypes.PointId, vectors map[vectortypes.VectorName]vectortypes.Vector) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active.InsertPoint(id, vectors)
}

// ShouldPromote reports whether the active segment has crossed its index
// threshold and is ready to freeze.
func (h *SegmentHolder) ShouldPromote() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active.ShouldIndex()
}

// IsActiveFull reports whether the active segment has reached hard
// capacity; callers should reject further inserts or force a promotion
// at this point.
func (h *SegmentHolder) IsActiveFull() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active.IsFull()
}

// Promote freezes the current active segment into a new ImmutableSegment
// and installs a fresh ActiveSegment in its place, atomically with respect
// to concurrent searches and inserts.
func (h *SegmentHolder) Promote() (vectortypes.SegmentId, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	points, err := h.active.ConvertToImmutable()
	if err != nil {
		return vectortypes.SegmentId{}, err
	}

	segID := vectortypes.GenerateSegmentId()
	imm, err := BuildImmutableSegment(segID, points, h.schema, h.indexSpec)
	if err != nil {
		return vectortypes.SegmentId{}, merr.Wrapf(err, "build immutable segment %s", segID)
	}

	filter := bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate)
	for _, p := range points {
		filter.Add(p.Id.Bytes())
	}

	h.immutables = append(h.immutables, imm)
	h.existence[segID] = filter
	h.active = NewActiveSegment(h.activeCapacity, h.schema, h.indexSpec)

	metrics.PromotionTotal.WithLabelValues(h.collectionLabel).Inc()
	log.Info("promoted active segment", zap.String("segment", segID.String()), zap.Int("points", len(points)))
	return segID, nil
}

// MaybePromote promotes if the threshold has been crossed; it is the
// convenience call sites use after every insert.
func (h *SegmentHolder) MaybePromote() (bool, error) {
	if !h.ShouldPromote() {
		return false, nil
	}
	if _, err := h.Promote(); err != nil {
		return false, err
	}
	return true, nil
}

// PointExists reports whether id is present in any immutable segment's
// bloom filter or the active segment's pool. A true result can rarely be
// a false positive (bloom filter); a false result is always exact.
func (h *SegmentHolder) PointExists(id vectortypes.PointId) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, p := range h.active.AllPoints() {
		if p.Id.Equal(id) {
			return true
		}
	}
	key := id.Bytes()
	for _, filter := range h.existence {
		if filter.Test(key) {
			return true
		}
	}
	return false
}

// SearchTopK fans a query out across the active segment and every
// immutable segment concurrently, then merges per-query results by score
// (descending) with ties broken by ascending point id, keeping only the
// top k overall.
func (h *SegmentHolder) SearchTopK(ctx context.Context, vectorName vectortypes.VectorName, queries []vectortypes.Vector, k int) vectortypes.QueryResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	type partial struct {
		result vectortypes.QueryResult
		err    error
	}
	parts := make([]vectortypes.QueryResult, 1+len(h.immutables))

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		parts[0] = h.active.SearchTopK(vectorName, queries, k)
		return nil
	})
	for i, seg := range h.immutables {
		i, seg := i, seg
		g.Go(func() error {
			batches := make([]vectortypes.QueryBatchResult, len(queries))
			for qi, q := range queries {
				hits, err := seg.Search(vectorName, q, k)
				if err != nil {
					if merr.IsAny(err, merr.ErrSchemaUnknownVector, merr.ErrSchemaDimMismatch) {
						parts[1+i] = vectortypes.QueryResult{Status: err, Results: make([]vectortypes.QueryBatchResult, len(queries))}
						return nil
					}
					return err
				}
				batches[qi] = vectortypes.QueryBatchResult{Hits: hits}
			}
			parts[1+i] = vectortypes.QueryResult{Results: batches}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		results := make([]vectortypes.QueryBatchResult, len(queries))
		return vectortypes.QueryResult{Status: merr.Wrap(err, "segment fan-out search"), Results: results}
	}

	// A dimension/schema error from the active segment is authoritative
	// (every segment shares the same schema), so surface it directly.
	if parts[0].Status != nil {
		return parts[0]
	}

	merged := make([]vectortypes.QueryBatchResult, len(queries))
	for qi := range queries {
		var all []vectortypes.ScoredId
		for _, p := range parts {
			if qi < len(p.Results) {
				all = append(all, p.Results[qi].Hits...)
			}
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].Score != all[j].Score {
				return all[i].Score > all[j].Score
			}
			return all[i].Id.Less(all[j].Id)
		})
		if len(all) > k {
			all = all[:k]
		}
		merged[qi] = vectortypes.QueryBatchResult{Hits: all}
	}

	return vectortypes.QueryResult{Status: nil, Results: merged}
}

// ImmutableSegments returns the holder's frozen segments, for callers that
// need to persist or inspect them directly (e.g. WAL checkpointing).
func (h *SegmentHolder) ImmutableSegments() []*ImmutableSegment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*ImmutableSegment, len(h.immutables))
	copy(out, h.immutables)
	return out
}

// LoadImmutableSegment installs a previously persisted segment (rebuilt
// via ReadFromDisk) into the holder, rebuilding its existence filter from
// the segment's own point ids. Used at collection startup to reload
// segments the WAL itself no longer carries the inserts for.
func (h *SegmentHolder) LoadImmutableSegment(imm *ImmutableSegment) {
	h.mu.Lock()
	defer h.mu.Unlock()

	filter := bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate)
	for _, id := range imm.PointIDs() {
		filter.Add(id.Bytes())
	}
	h.immutables = append(h.immutables, imm)
	h.existence[imm.ID()] = filter
}

// ActiveSegmentSnapshot returns the current mutable segment (used by
// Collection to size the WAL truncation when it persists segments).
func (h *SegmentHolder) ActiveSegmentSnapshot() *ActiveSegment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}
