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

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jerryli99/vectordb/internal/vectortypes"
)

func TestLinkAndNeighbors(t *testing.T) {
	g := New()
	a := vectortypes.StringId("a")
	b := vectortypes.StringId("b")
	c := vectortypes.StringId("c")

	g.Link(a, b, "derived_from")
	g.Link(a, c, "same_doc")

	all := g.Neighbors(a, "")
	assert.ElementsMatch(t, []vectortypes.PointId{b, c}, all)

	filtered := g.Neighbors(a, "derived_from")
	assert.Equal(t, []vectortypes.PointId{b}, filtered)
}

func TestNeighborsOfUnknownPoint(t *testing.T) {
	g := New()
	assert.Nil(t, g.Neighbors(vectortypes.StringId("never"), ""))
}

func TestUnlinkRemovesEdge(t *testing.T) {
	g := New()
	a := vectortypes.StringId("a")
	b := vectortypes.StringId("b")
	g.Link(a, b, "rel")
	g.Unlink(a, b)
	assert.Empty(t, g.Neighbors(a, ""))
}

func TestRemovePointDropsBothDirections(t *testing.T) {
	g := New()
	a := vectortypes.StringId("a")
	b := vectortypes.StringId("b")
	g.Link(a, b, "rel")
	g.Link(b, a, "rel")

	g.RemovePoint(a)
	assert.Empty(t, g.Neighbors(a, ""))
	assert.Empty(t, g.Neighbors(b, ""))
}
