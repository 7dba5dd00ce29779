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

// Package graph implements an auxiliary relationship graph: a record of
// explicit point-to-point relationships alongside the vector similarity
// the rest of the engine scores by (e.g. "derived from", "same source
// document"). It is off by default and only active for collections whose
// Info opts in, since most collections need only the similarity graph
// HNSW already builds implicitly.
package graph

import (
	"sync"

	"github.com/samber/lo"

	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// Graph is an adjacency list keyed by point id, storing directed edges
// with a relation label.
type Graph struct {
	mu    sync.RWMutex
	edges map[vectortypes.PointId]map[vectortypes.PointId]string
}

// New creates an empty graph. Collections that don't enable this
// capability simply never construct one.
func New() *Graph {
	return &Graph{edges: make(map[vectortypes.PointId]map[vectortypes.PointId]string)}
}

// Link records a directed edge from -> to labeled relation.
func (g *Graph) Link(from, to vectortypes.PointId, relation string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.edges[from] == nil {
		g.edges[from] = make(map[vectortypes.PointId]string)
	}
	g.edges[from][to] = relation
}

// Unlink removes the edge from -> to, if present.
func (g *Graph) Unlink(from, to vectortypes.PointId) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.edges[from]; ok {
		delete(m, to)
	}
}

// Neighbors returns every point from links to, optionally filtered to a
// single relation label (pass "" for all relations).
func (g *Graph) Neighbors(from vectortypes.PointId, relation string) []vectortypes.PointId {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m, ok := g.edges[from]
	if !ok {
		return nil
	}
	if relation == "" {
		return lo.Keys(m)
	}
	return lo.FilterMap(lo.Keys(m), func(id vectortypes.PointId, _ int) (vectortypes.PointId, bool) {
		return id, m[id] == relation
	})
}

// RemovePoint drops every edge touching id, in either direction; used
// when a point is deleted from the owning collection.
func (g *Graph) RemovePoint(id vectortypes.PointId) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, id)
	for _, m := range g.edges {
		delete(m, id)
	}
}
