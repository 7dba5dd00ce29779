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

package hnsw

import (
	"bytes"
	"encoding/gob"
	"math"
)

// wireNode is the gob-friendly projection of node; vectors are stored
// separately by ImmutableSegment (vectors_<name>.bin), so
// only the graph topology is serialized here.
type wireNode struct {
	Neighbors [][]uint32
}

type wireIndex struct {
	Cfg      Config
	IDs      []uint32
	Nodes    []wireNode
	Entry    int32
	MaxLevel int
}

// Serialize encodes the graph topology (neighbor lists, entry point,
// config) to bytes. Vectors themselves are not included; Deserialize
// expects the caller to re-attach them via Rehydrate.
func (idx *Index) Serialize() ([]byte, error) {
	w := wireIndex{
		Cfg:      idx.cfg,
		IDs:      idx.ids,
		Entry:    idx.entry,
		MaxLevel: idx.maxLevel,
		Nodes:    make([]wireNode, len(idx.nodes)),
	}
	for i, n := range idx.nodes {
		w.Nodes[i] = wireNode{Neighbors: n.neighbors}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a graph previously produced by Serialize. The
// returned index has nil vectors on every node; call Rehydrate with the
// same vectors supplied to Add, in the same order, before calling Search.
func Deserialize(data []byte) (*Index, error) {
	var w wireIndex
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, err
	}
	idx := &Index{
		cfg:       w.Cfg,
		ids:       w.IDs,
		entry:     w.Entry,
		maxLevel:  w.MaxLevel,
		levelMult: 1 / math.Log(float64(w.Cfg.M)),
		nodes:     make([]node, len(w.Nodes)),
	}
	for i, n := range w.Nodes {
		idx.nodes[i] = node{neighbors: n.Neighbors}
	}
	return idx, nil
}

// Rehydrate reattaches vectors to a deserialized graph's nodes, in the
// same slot order they were originally Add-ed in.
func (idx *Index) Rehydrate(vectors [][]float32) {
	for i := range idx.nodes {
		if i < len(vectors) {
			idx.nodes[i].vector = vectors[i]
		}
	}
}

// Vectors returns every node's vector in slot order, the inverse input
// Rehydrate expects. Used to persist a live index's vectors alongside its
// topology so a later Deserialize+Rehydrate round-trips exactly.
func (idx *Index) Vectors() [][]float32 {
	out := make([][]float32, len(idx.nodes))
	for i, n := range idx.nodes {
		out[i] = n.vector
	}
	return out
}
