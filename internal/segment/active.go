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

// Package segment implements the two-tier segment lifecycle: a mutable
// ActiveSegment accepting inserts, and a frozen, HNSW-indexed
// ImmutableSegment produced from it once the insertion threshold is
// reached.
package segment

import (
	"math"
	"sort"
	"sync"

	"github.com/jerryli99/vectordb/internal/distance"
	"github.com/jerryli99/vectordb/internal/log"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/storage"
	"github.com/jerryli99/vectordb/internal/vectortypes"
	"go.uber.org/zap"
)

// Schema is the per-collection named-vector schema an ActiveSegment scores
// against; it is the Go analogue of CollectionInfo.vec_specs.
type Schema map[vectortypes.VectorName]vectortypes.VectorSpec

// ActiveSegment is the mutable, brute-force-searched tier: every insert
// lands here until it fills or crosses the index threshold, at which point
// convertToImmutable hands its points to the HNSW builder.
type ActiveSegment struct {
	mu          sync.Mutex
	pool        *storage.PointMemoryPool
	schema      Schema
	indexSpec   paramtable.IndexSpec
	maxCapacity int
	// slotOf lets Deallocate-style removal find a point's pool slot by id;
	// ActiveSegment never removes individual points on its own, but
	// InsertPoint needs it to undo a partial multi-vector insert.
	slotOf map[vectortypes.PointId]int
}

// NewActiveSegment allocates an empty segment bounded to maxCapacity
// points, scored against schema using indexSpec's build/search knobs.
func NewActiveSegment(maxCapacity int, schema Schema, indexSpec paramtable.IndexSpec) *ActiveSegment {
	return &ActiveSegment{
		pool:        storage.NewPointMemoryPool(maxCapacity, 8),
		schema:      schema,
		indexSpec:   indexSpec,
		maxCapacity: maxCapacity,
		slotOf:      make(map[vectortypes.PointId]int),
	}
}

// InsertPoint adds a point with one or more named vectors in a single
// atomic step: either every vector attaches or the point is rolled back
// and an error is returned.
func (s *ActiveSegment) InsertPoint(id vectortypes.PointId, vectors map[vectortypes.VectorName]vectortypes.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt, err := s.pool.Allocate(id)
	if err != nil {
		return merr.Wrap(err, "insert point")
	}
	s.slotOf[id] = s.findSlot(id)

	for name, v := range vectors {
		if !pt.AddVector(name, v) {
			s.rollback(id)
			return merr.ErrSchemaTooManyVectors
		}
	}

	return nil
}

// findSlot locates id's slot by scanning the pool; the pool does not track
// id -> slot itself since it is agnostic to what a Point's id means.
func (s *ActiveSegment) findSlot(id vectortypes.PointId) int {
	for i, p := range s.pool.AllPoints() {
		if p.Id.Equal(id) {
			return i
		}
	}
	return -1
}

func (s *ActiveSegment) rollback(id vectortypes.PointId) {
	if idx, ok := s.slotOf[id]; ok {
		s.pool.Deallocate(idx)
		delete(s.slotOf, id)
	}
}

// ShouldIndex reports whether the point count has crossed the configured
// build threshold.
func (s *ActiveSegment) ShouldIndex() bool {
	return s.PointCount() >= s.indexSpec.IndexThreshold
}

// IsFull reports whether the segment has reached its hard capacity.
func (s *ActiveSegment) IsFull() bool {
	return s.PointCount() >= s.maxCapacity
}

// PointCount returns the number of points currently held.
func (s *ActiveSegment) PointCount() int {
	return s.pool.TotalAllocated()
}

// MaxCapacity returns the segment's configured capacity.
func (s *ActiveSegment) MaxCapacity() int { return s.maxCapacity }

// AllPoints returns every point currently in the segment.
func (s *ActiveSegment) AllPoints() []*storage.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.AllPoints()
}

// ConvertToImmutable copies out every point (the original's documented
// "copy to keep it safe and simple" choice) and clears the pool, returning
// the snapshot for the caller to hand to BuildImmutableSegment.
func (s *ActiveSegment) ConvertToImmutable() ([]*storage.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.pool.AllPoints()
	if len(points) == 0 {
		return nil, merr.Wrap(merr.ErrIndexBuildFailed, "no points to convert")
	}

	snapshot := make([]*storage.Point, len(points))
	copy(snapshot, points)

	s.pool.Clear()
	s.slotOf = make(map[vectortypes.PointId]int)
	return snapshot, nil
}

// SearchTopK brute-force scores every point holding vectorName against
// each query vector, returning the top k hits per query ordered by
// descending score with ties broken by ascending point id. COSINE
// queries and stored vectors are normalized before scoring so results
// agree with ImmutableSegment's normalize-then-score convention.
func (s *ActiveSegment) SearchTopK(vectorName vectortypes.VectorName, queries []vectortypes.Vector, k int) vectortypes.QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := func(status error) vectortypes.QueryResult {
		results := make([]vectortypes.QueryBatchResult, len(queries))
		return vectortypes.QueryResult{Status: status, Results: results}
	}

	spec, ok := s.schema[vectorName]
	if !ok {
		return empty(merr.Wrapf(merr.ErrSchemaUnknownVector, "vector name %q", vectorName))
	}
	for i, q := range queries {
		if len(q) != spec.Dim {
			return empty(merr.Wrapf(merr.ErrSchemaDimMismatch, "query %d has dim %d, expected %d", i, len(q), spec.Dim))
		}
	}

	points := s.pool.AllPoints()
	if len(points) == 0 || len(queries) == 0 {
		return empty(nil)
	}

	var validIDs []vectortypes.PointId
	var validVecs []vectortypes.Vector
	for _, p := range points {
		v, has := p.GetVector(vectorName)
		if !has || len(v) == 0 {
			continue
		}
		validIDs = append(validIDs, p.Id)
		validVecs = append(validVecs, v)
	}
	if len(validVecs) == 0 {
		return empty(nil)
	}

	metric := distance.Metric(spec.Metric)
	scoreVecs := validVecs
	if spec.Metric == vectortypes.MetricCosine {
		scoreVecs = make([]vectortypes.Vector, len(validVecs))
		for i, v := range validVecs {
			scoreVecs[i] = distance.Normalized(v)
		}
	}

	results := make([]vectortypes.QueryBatchResult, 0, len(queries))
	for _, q := range queries {
		qs := q
		if spec.Metric == vectortypes.MetricCosine {
			qs = distance.Normalized(q)
		}
		scored := make([]vectortypes.ScoredId, 0, len(scoreVecs))
		for i, v := range scoreVecs {
			raw := distance.Raw(metric, qs, v)
			score := distance.Score(metric, raw)
			score = float32(math.Round(float64(score)*10000) / 10000)
			scored = append(scored, vectortypes.ScoredId{Id: validIDs[i], Score: score})
		}
		sort.Slice(scored, func(i, j int) bool {
			if scored[i].Score != scored[j].Score {
				return scored[i].Score > scored[j].Score
			}
			return scored[i].Id.Less(scored[j].Id)
		})
		if len(scored) > k {
			scored = scored[:k]
		}
		results = append(results, vectortypes.QueryBatchResult{Hits: scored})
	}

	log.Debug("active segment search", zap.String("vector", vectorName), zap.Int("points", len(points)), zap.Int("queries", len(queries)))
	return vectortypes.QueryResult{Status: nil, Results: results}
}
