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

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/storage"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

func buildPoints(t *testing.T, n int) []*storage.Point {
	t.Helper()
	points := make([]*storage.Point, n)
	for i := 0; i < n; i++ {
		p := storage.NewPoint(vectortypes.Uint64Id(uint64(i)), 4)
		v := make(vectortypes.Vector, 4)
		v[i%4] = 1
		p.AddVector("default", v)
		points[i] = p
	}
	return points
}

func TestBuildImmutableSegmentAndSearch(t *testing.T) {
	points := buildPoints(t, 50)
	schema := testSchema()
	segID := vectortypes.GenerateSegmentId()

	seg, err := BuildImmutableSegment(segID, points, schema, testIndexSpec())
	require.NoError(t, err)
	assert.Equal(t, 50, seg.PointCount())
	assert.Equal(t, segID, seg.ID())

	target := points[7]
	v, _ := target.GetVector("default")
	hits, err := seg.Search("default", v, 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, target.Id, hits[0].Id)
}

func TestBuildImmutableSegmentEmptyErrors(t *testing.T) {
	_, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), nil, testSchema(), testIndexSpec())
	assert.ErrorIs(t, err, merr.ErrIndexBuildFailed)
}

func TestSearchUnknownVectorName(t *testing.T) {
	points := buildPoints(t, 5)
	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, testSchema(), testIndexSpec())
	require.NoError(t, err)

	_, err = seg.Search("missing", vectortypes.Vector{1, 2, 3, 4}, 3)
	assert.ErrorIs(t, err, merr.ErrSchemaUnknownVector)
}

func TestSearchDimMismatch(t *testing.T) {
	points := buildPoints(t, 5)
	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, testSchema(), testIndexSpec())
	require.NoError(t, err)

	_, err = seg.Search("default", vectortypes.Vector{1, 2}, 3)
	assert.ErrorIs(t, err, merr.ErrSchemaDimMismatch)
}

func TestShouldMerge(t *testing.T) {
	spec := testIndexSpec()
	spec.IndexThreshold = 100
	points := buildPoints(t, 50)
	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, testSchema(), spec)
	require.NoError(t, err)
	assert.True(t, seg.ShouldMerge(), "50 points is under 2x the 100 threshold")
}

func TestWriteToDiskWritesExpectedFiles(t *testing.T) {
	points := buildPoints(t, 20)
	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, testSchema(), testIndexSpec())
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, seg.WriteToDisk(fs, "/data"))

	dir := "/data/" + seg.ID().String()
	for _, name := range []string{"metadata.txt", "point_ids.bin", "vector_dims.bin", "index_default.hnsw"} {
		exists, err := afero.Exists(fs, dir+"/"+name)
		require.NoError(t, err)
		assert.True(t, exists, "expected %s to exist", name)
	}
}

func TestSearchMultiReturnsHitsPerName(t *testing.T) {
	schema := Schema{
		"default": vectortypes.VectorSpec{Dim: 4, Metric: vectortypes.MetricL2},
		"aux":     vectortypes.VectorSpec{Dim: 4, Metric: vectortypes.MetricL2},
	}
	points := make([]*storage.Point, 10)
	for i := 0; i < 10; i++ {
		p := storage.NewPoint(vectortypes.Uint64Id(uint64(i)), 4)
		v := make(vectortypes.Vector, 4)
		v[i%4] = 1
		p.AddVector("default", v)
		p.AddVector("aux", v)
		points[i] = p
	}

	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, schema, testIndexSpec())
	require.NoError(t, err)

	target := points[3]
	defaultVec, _ := target.GetVector("default")
	auxVec, _ := target.GetVector("aux")

	out, err := seg.SearchMulti(map[vectortypes.VectorName]vectortypes.Vector{
		"default": defaultVec,
		"aux":     auxVec,
	}, 1)
	require.NoError(t, err)
	require.Contains(t, out, vectortypes.VectorName("default"))
	require.Contains(t, out, vectortypes.VectorName("aux"))
	assert.Equal(t, target.Id, out["default"][0].Id)
	assert.Equal(t, target.Id, out["aux"][0].Id)
}

func TestSearchMultiPropagatesError(t *testing.T) {
	points := buildPoints(t, 5)
	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, testSchema(), testIndexSpec())
	require.NoError(t, err)

	_, err = seg.SearchMulti(map[vectortypes.VectorName]vectortypes.Vector{
		"missing": {1, 2, 3, 4},
	}, 1)
	assert.ErrorIs(t, err, merr.ErrSchemaUnknownVector)
}

func TestWriteToDiskThenReadFromDiskRoundTrips(t *testing.T) {
	schema := testSchema()
	points := buildPoints(t, 30)
	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, schema, testIndexSpec())
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, seg.WriteToDisk(fs, "/data"))

	reloaded, err := ReadFromDisk(fs, "/data", seg.ID(), schema)
	require.NoError(t, err)
	assert.Equal(t, seg.ID(), reloaded.ID())
	assert.Equal(t, seg.PointCount(), reloaded.PointCount())

	target := points[11]
	v, _ := target.GetVector("default")

	want, err := seg.Search("default", v, 5)
	require.NoError(t, err)
	got, err := reloaded.Search("default", v, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBuildImmutableSegmentCosineNormalizesVectors(t *testing.T) {
	schema := Schema{"default": vectortypes.VectorSpec{Dim: 4, Metric: vectortypes.MetricCosine}}
	points := buildPoints(t, 10)

	seg, err := BuildImmutableSegment(vectortypes.GenerateSegmentId(), points, schema, testIndexSpec())
	require.NoError(t, err)

	target := points[2]
	v, _ := target.GetVector("default")
	hits, err := seg.Search("default", v, 1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, target.Id, hits[0].Id)
}
