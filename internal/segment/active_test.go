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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

func testSchema() Schema {
	return Schema{
		"default": vectortypes.VectorSpec{Dim: 4, Metric: vectortypes.MetricL2},
	}
}

func testIndexSpec() paramtable.IndexSpec {
	return paramtable.IndexSpec{MEdges: 8, EfConstruction: 32, EfSearch: 16, IndexThreshold: 1000}
}

func TestInsertPointAndSearchTopK(t *testing.T) {
	seg := NewActiveSegment(10, testSchema(), testIndexSpec())

	require.NoError(t, seg.InsertPoint(vectortypes.StringId("a"), map[vectortypes.VectorName]vectortypes.Vector{
		"default": {1, 0, 0, 0},
	}))
	require.NoError(t, seg.InsertPoint(vectortypes.StringId("b"), map[vectortypes.VectorName]vectortypes.Vector{
		"default": {0, 1, 0, 0},
	}))
	assert.Equal(t, 2, seg.PointCount())

	result := seg.SearchTopK("default", []vectortypes.Vector{{1, 0, 0, 0}}, 2)
	require.NoError(t, result.Status)
	require.Len(t, result.Results, 1)
	hits := result.Results[0].Hits
	require.Len(t, hits, 2)
	assert.Equal(t, vectortypes.StringId("a"), hits[0].Id)
}

func TestSearchTopKUnknownVectorName(t *testing.T) {
	seg := NewActiveSegment(10, testSchema(), testIndexSpec())
	result := seg.SearchTopK("missing", []vectortypes.Vector{{1, 2, 3, 4}}, 2)
	assert.ErrorIs(t, result.Status, merr.ErrSchemaUnknownVector)
	require.Len(t, result.Results, 1)
}

func TestSearchTopKDimMismatch(t *testing.T) {
	seg := NewActiveSegment(10, testSchema(), testIndexSpec())
	result := seg.SearchTopK("default", []vectortypes.Vector{{1, 2}}, 2)
	assert.ErrorIs(t, result.Status, merr.ErrSchemaDimMismatch)
}

func TestInsertPointRollbackOnTooManyVectors(t *testing.T) {
	schema := Schema{
		"a": vectortypes.VectorSpec{Dim: 1, Metric: vectortypes.MetricL2},
	}
	seg := NewActiveSegment(10, schema, testIndexSpec())

	// the pool's TinyMap is capped at 8, but AddVector enforces the
	// per-point cap passed to storage.NewPoint (8 here), so force a failure
	// by exceeding the tinymap capacity directly via many names.
	vectors := map[vectortypes.VectorName]vectortypes.Vector{}
	for i := 0; i < 9; i++ {
		vectors[vectortypes.VectorName(string(rune('a'+i)))] = vectortypes.Vector{1}
	}
	err := seg.InsertPoint(vectortypes.StringId("x"), vectors)
	assert.ErrorIs(t, err, merr.ErrSchemaTooManyVectors)
	assert.Equal(t, 0, seg.PointCount(), "failed insert must roll back the allocated slot")
}

func TestIsFullAndShouldIndex(t *testing.T) {
	spec := testIndexSpec()
	spec.IndexThreshold = 2
	seg := NewActiveSegment(2, testSchema(), spec)

	seg.InsertPoint(vectortypes.StringId("a"), map[vectortypes.VectorName]vectortypes.Vector{"default": {1, 0, 0, 0}})
	assert.False(t, seg.IsFull())
	assert.False(t, seg.ShouldIndex())

	seg.InsertPoint(vectortypes.StringId("b"), map[vectortypes.VectorName]vectortypes.Vector{"default": {0, 1, 0, 0}})
	assert.True(t, seg.IsFull())
	assert.True(t, seg.ShouldIndex())
}

func TestConvertToImmutableClearsSegment(t *testing.T) {
	seg := NewActiveSegment(10, testSchema(), testIndexSpec())
	seg.InsertPoint(vectortypes.StringId("a"), map[vectortypes.VectorName]vectortypes.Vector{"default": {1, 0, 0, 0}})

	points, err := seg.ConvertToImmutable()
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 0, seg.PointCount())
}

func TestConvertToImmutableEmptyErrors(t *testing.T) {
	seg := NewActiveSegment(10, testSchema(), testIndexSpec())
	_, err := seg.ConvertToImmutable()
	assert.ErrorIs(t, err, merr.ErrIndexBuildFailed)
}
