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

// Package hnsw implements a Hierarchical Navigable Small World graph: the
// ANN index every ImmutableSegment builds one of per named vector. No
// example repo in the retrieved pack ships an HNSW graph library for Go,
// so the layered-graph construction and greedy search below are written
// from the published algorithm rather than grounded on a dependency; see
// DESIGN.md for that call.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/jerryli99/vectordb/internal/distance"
)

// Config holds the construction knobs that stay fixed for the lifetime
// of one ImmutableSegment's index.
type Config struct {
	M              int // max neighbors per node per layer (MEdges)
	EfConstruction int
	EfSearch       int
	Metric         distance.Metric
	Seed           int64
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 64
	}
	return c
}

type node struct {
	vector    []float32
	neighbors [][]uint32 // per layer
}

// Index is a single HNSW graph over one named vector's float32 space.
// Not safe for concurrent Add/Search; ImmutableSegment calls Add only while
// building, so the finished graph is read-only and Searches may run
// concurrently.
type Index struct {
	cfg       Config
	rng       *rand.Rand
	nodes     []node
	ids       []uint32 // slot -> caller-supplied external id (slice index into caller's id table)
	entry     int32
	maxLevel  int
	levelMult float64
}

// New creates an empty index. Points are added with Add, then searched
// with Search; there is no incremental delete, matching ImmutableSegment's
// build-once-then-freeze lifecycle.
func New(cfg Config) *Index {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &Index{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(seed)),
		entry:     -1,
		levelMult: 1 / math.Log(float64(cfg.M)),
	}
}

// Len returns the number of vectors currently indexed.
func (idx *Index) Len() int { return len(idx.nodes) }

func (idx *Index) randomLevel() int {
	r := idx.rng.Float64()
	if r <= 0 {
		r = 1e-12
	}
	level := int(math.Floor(-math.Log(r) * idx.levelMult))
	if level > 32 {
		level = 32
	}
	return level
}

func (idx *Index) score(a, b []float32) float32 {
	return distance.Score(idx.cfg.Metric, distance.Raw(idx.cfg.Metric, a, b))
}

// Add inserts vector under externalID, returning the internal slot. The
// vector is not copied; callers (ImmutableSegment.Build) own its lifetime.
func (idx *Index) Add(externalID uint32, vector []float32) int {
	level := idx.randomLevel()
	slot := len(idx.nodes)
	n := node{vector: vector, neighbors: make([][]uint32, level+1)}
	idx.nodes = append(idx.nodes, n)
	idx.ids = append(idx.ids, externalID)

	if idx.entry < 0 {
		idx.entry = int32(slot)
		idx.maxLevel = level
		return slot
	}

	cur := idx.entry
	for l := idx.maxLevel; l > level; l-- {
		cur = idx.greedyClosest(cur, vector, l)
	}

	for l := min(level, idx.maxLevel); l >= 0; l-- {
		candidates := idx.searchLayer(vector, cur, idx.cfg.EfConstruction, l)
		neighbors := idx.selectNeighbors(candidates, idx.cfg.M)
		idx.nodes[slot].neighbors[l] = neighbors
		for _, nb := range neighbors {
			idx.connect(int(nb), uint32(slot), l)
		}
		if len(candidates) > 0 {
			cur = int32(candidates[0].slot)
		}
	}

	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entry = int32(slot)
	}
	return slot
}

// connect adds neighbor to slot's adjacency at layer l, trimming back to M
// by distance if the node overflows.
func (idx *Index) connect(slot int, neighbor uint32, l int) {
	n := &idx.nodes[slot]
	if l >= len(n.neighbors) {
		grown := make([][]uint32, l+1)
		copy(grown, n.neighbors)
		n.neighbors = grown
	}
	n.neighbors[l] = append(n.neighbors[l], neighbor)
	if len(n.neighbors[l]) <= idx.cfg.M {
		return
	}
	type scored struct {
		id    uint32
		score float32
	}
	scoredNb := make([]scored, len(n.neighbors[l]))
	for i, nb := range n.neighbors[l] {
		scoredNb[i] = scored{id: nb, score: idx.score(n.vector, idx.nodes[nb].vector)}
	}
	sortDesc := func(a, b scored) bool { return a.score > b.score }
	insertionSortScored(scoredNb, sortDesc)
	keep := scoredNb[:idx.cfg.M]
	trimmed := make([]uint32, len(keep))
	for i, s := range keep {
		trimmed[i] = s.id
	}
	n.neighbors[l] = trimmed
}

func insertionSortScored[T any](s []T, less func(a, b T) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func (idx *Index) greedyClosest(from int32, target []float32, layer int) int32 {
	best := from
	bestScore := idx.score(idx.nodes[best].vector, target)
	improved := true
	for improved {
		improved = false
		for _, nb := range idx.nodes[best].neighbors[layer] {
			s := idx.score(idx.nodes[nb].vector, target)
			if s > bestScore {
				bestScore = s
				best = int32(nb)
				improved = true
			}
		}
	}
	return best
}

type candidate struct {
	slot  int
	score float32
}

type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// searchLayer runs the standard HNSW beam search from entry, returning up
// to ef candidates sorted by descending score (best first).
func (idx *Index) searchLayer(target []float32, entry int32, ef int, layer int) []candidate {
	visited := make(map[int32]bool)
	visited[entry] = true

	entryScore := idx.score(idx.nodes[entry].vector, target)
	candidates := &maxHeap{{slot: int(entry), score: entryScore}}
	heap.Init(candidates)
	results := &minHeap{{slot: int(entry), score: entryScore}}
	heap.Init(results)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)
		worst := (*results)[0]
		if c.score < worst.score && results.Len() >= ef {
			break
		}
		if layer >= len(idx.nodes[c.slot].neighbors) {
			continue
		}
		for _, nbID := range idx.nodes[c.slot].neighbors[layer] {
			if visited[int32(nbID)] {
				continue
			}
			visited[int32(nbID)] = true
			s := idx.score(idx.nodes[nbID].vector, target)
			worst = (*results)[0]
			if results.Len() < ef || s > worst.score {
				heap.Push(candidates, candidate{slot: int(nbID), score: s})
				heap.Push(results, candidate{slot: int(nbID), score: s})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	copy(out, *results)
	insertionSortScored(out, func(a, b candidate) bool { return a.score > b.score })
	return out
}

// selectNeighbors keeps the m highest-scoring candidates (simple heuristic;
// the RNG-based diversity heuristic from the paper is not implemented).
func (idx *Index) selectNeighbors(candidates []candidate, m int) []uint32 {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]uint32, len(candidates))
	for i, c := range candidates {
		out[i] = uint32(c.slot)
	}
	return out
}

// Hit is one search result: the caller-supplied external id and its
// higher-is-better score.
type Hit struct {
	ExternalID uint32
	Score      float32
}

// Search returns the top-k nearest vectors to query, using ef search-time
// candidates (defaulting to the configured EfSearch when ef <= 0).
func (idx *Index) Search(query []float32, k, ef int) []Hit {
	if idx.entry < 0 || k <= 0 {
		return nil
	}
	if ef <= 0 {
		ef = idx.cfg.EfSearch
	}
	if ef < k {
		ef = k
	}

	cur := idx.entry
	for l := idx.maxLevel; l > 0; l-- {
		cur = idx.greedyClosest(cur, query, l)
	}
	candidates := idx.searchLayer(query, cur, ef, 0)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = Hit{ExternalID: idx.ids[c.slot], Score: c.score}
	}
	return hits
}

// SetEf overrides the default search-time candidate list size for
// subsequent Search calls that pass ef<=0.
func (idx *Index) SetEf(ef int) { idx.cfg.EfSearch = ef }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
