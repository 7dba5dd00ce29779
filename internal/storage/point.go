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

// Package storage holds the point representation and the slab-allocated
// memory pool it lives in.
package storage

import (
	"github.com/jerryli99/vectordb/internal/tinymap"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// Point is one row of the active segment: an id plus up to
// paramtable.Config.MaxEntriesTinyMap named vectors. The named-vector map
// lives inline (TinyMap), so a point with a single default vector never
// touches the heap for its vector index.
type Point struct {
	Id      vectortypes.PointId
	Vectors *tinymap.Map[vectortypes.VectorName, vectortypes.Vector]
}

// NewPoint allocates a point with a TinyMap sized to cap named vectors.
func NewPoint(id vectortypes.PointId, cap int) *Point {
	return &Point{Id: id, Vectors: tinymap.New[vectortypes.VectorName, vectortypes.Vector](cap)}
}

// AddVector attaches (or replaces) the vector stored under name. It returns
// false if the point's TinyMap is already at capacity and name is new.
func (p *Point) AddVector(name vectortypes.VectorName, v vectortypes.Vector) bool {
	return p.Vectors.Insert(name, v)
}

// GetVector returns the named vector and whether it was present.
func (p *Point) GetVector(name vectortypes.VectorName) (vectortypes.Vector, bool) {
	return p.Vectors.Get(name)
}

// AllVectors returns every (name, vector) pair currently on the point.
func (p *Point) AllVectors() map[vectortypes.VectorName]vectortypes.Vector {
	out := make(map[vectortypes.VectorName]vectortypes.Vector, p.Vectors.Size())
	p.Vectors.Each(func(name vectortypes.VectorName, v vectortypes.Vector) bool {
		out[name] = v
		return true
	})
	return out
}

// NumVectors reports how many named vectors the point currently holds.
func (p *Point) NumVectors() int { return p.Vectors.Size() }
