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

// Package metaindex shards a collection's payload lookups by field name,
// one btree per field, so a query that filters on a single metadata field
// does not need to walk the whole payload store's combined key space.
package metaindex

import (
	"sync"

	"github.com/google/btree"

	"github.com/jerryli99/vectordb/internal/vectortypes"
)

type fieldEntry struct {
	value string
	id    vectortypes.PointId
}

func (e fieldEntry) Less(other btree.Item) bool {
	o := other.(fieldEntry)
	if e.value != o.value {
		return e.value < o.value
	}
	return e.id.Less(o.id)
}

// MetaIndex holds one ordered shard per indexed field name.
type MetaIndex struct {
	mu     sync.RWMutex
	shards map[string]*btree.BTree
}

// New creates an empty meta-index.
func New() *MetaIndex {
	return &MetaIndex{shards: make(map[string]*btree.BTree)}
}

// Index records that id's field has the given string value. Only
// string-valued fields are indexed; numeric/bool filtering is left to the
// bitmap pre-filter or a full payload scan.
func (m *MetaIndex) Index(field, value string, id vectortypes.PointId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shard, ok := m.shards[field]
	if !ok {
		shard = btree.New(32)
		m.shards[field] = shard
	}
	shard.ReplaceOrInsert(fieldEntry{value: value, id: id})
}

// Remove deletes the (field, value, id) association, used when a point's
// payload is overwritten or the point is dropped.
func (m *MetaIndex) Remove(field, value string, id vectortypes.PointId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if shard, ok := m.shards[field]; ok {
		shard.Delete(fieldEntry{value: value, id: id})
	}
}

// Lookup returns every point id whose field equals value.
func (m *MetaIndex) Lookup(field, value string) []vectortypes.PointId {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shard, ok := m.shards[field]
	if !ok {
		return nil
	}
	var out []vectortypes.PointId
	pivot := fieldEntry{value: value}
	shard.AscendGreaterOrEqual(pivot, func(item btree.Item) bool {
		e := item.(fieldEntry)
		if e.value != value {
			return false
		}
		out = append(out, e.id)
		return true
	})
	return out
}
