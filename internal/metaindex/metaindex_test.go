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

package metaindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jerryli99/vectordb/internal/vectortypes"
)

func TestIndexAndLookup(t *testing.T) {
	m := New()
	a := vectortypes.StringId("a")
	b := vectortypes.StringId("b")
	c := vectortypes.StringId("c")

	m.Index("category", "shoes", a)
	m.Index("category", "shoes", b)
	m.Index("category", "hats", c)

	got := m.Lookup("category", "shoes")
	assert.ElementsMatch(t, []vectortypes.PointId{a, b}, got)

	got = m.Lookup("category", "hats")
	assert.ElementsMatch(t, []vectortypes.PointId{c}, got)
}

func TestLookupUnknownFieldOrValue(t *testing.T) {
	m := New()
	assert.Empty(t, m.Lookup("missing", "x"))

	m.Index("category", "shoes", vectortypes.StringId("a"))
	assert.Empty(t, m.Lookup("category", "boots"))
}

func TestRemoveDropsAssociation(t *testing.T) {
	m := New()
	a := vectortypes.StringId("a")
	m.Index("category", "shoes", a)
	m.Remove("category", "shoes", a)
	assert.Empty(t, m.Lookup("category", "shoes"))
}

func TestLookupOrderedByPointIdWithinSameValue(t *testing.T) {
	m := New()
	m.Index("category", "shoes", vectortypes.Uint64Id(3))
	m.Index("category", "shoes", vectortypes.Uint64Id(1))
	m.Index("category", "shoes", vectortypes.Uint64Id(2))

	got := m.Lookup("category", "shoes")
	require := []vectortypes.PointId{vectortypes.Uint64Id(1), vectortypes.Uint64Id(2), vectortypes.Uint64Id(3)}
	assert.Equal(t, require, got)
}
