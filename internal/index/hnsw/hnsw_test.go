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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerryli99/vectordb/internal/distance"
)

func buildRandomIndex(t *testing.T, n, dim int, metric distance.Metric, seed int64) (*Index, [][]float32) {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	idx := New(Config{M: 8, EfConstruction: 32, EfSearch: 16, Metric: metric, Seed: seed})
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()*2 - 1
		}
		vectors[i] = v
		idx.Add(uint32(i), v)
	}
	return idx, vectors
}

func TestSearchFindsExactMatch(t *testing.T) {
	idx, vectors := buildRandomIndex(t, 200, 16, distance.MetricL2, 42)

	target := 57
	hits := idx.Search(vectors[target], 5, 0)
	require.NotEmpty(t, hits)
	assert.Equal(t, uint32(target), hits[0].ExternalID, "nearest neighbor of an indexed vector should be itself")
}

func TestSearchReturnsAtMostK(t *testing.T) {
	idx, vectors := buildRandomIndex(t, 50, 8, distance.MetricDot, 7)
	hits := idx.Search(vectors[0], 3, 0)
	assert.LessOrEqual(t, len(hits), 3)
}

func TestSearchEmptyIndexReturnsNil(t *testing.T) {
	idx := New(Config{Metric: distance.MetricL2})
	hits := idx.Search([]float32{1, 2, 3}, 5, 0)
	assert.Nil(t, hits)
}

func TestSearchResultsDescendingByScore(t *testing.T) {
	idx, vectors := buildRandomIndex(t, 100, 12, distance.MetricCosine, 99)
	hits := idx.Search(vectors[3], 10, 32)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestLenTracksInsertions(t *testing.T) {
	idx := New(Config{Metric: distance.MetricL2})
	assert.Equal(t, 0, idx.Len())
	idx.Add(0, []float32{1, 2})
	idx.Add(1, []float32{3, 4})
	assert.Equal(t, 2, idx.Len())
}

func TestSerializeDeserializeRehydrateRoundTrip(t *testing.T) {
	idx, vectors := buildRandomIndex(t, 80, 10, distance.MetricL2, 13)

	data, err := idx.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), restored.Len())

	restored.Rehydrate(vectors)

	target := 22
	hits := restored.Search(vectors[target], 5, 0)
	require.NotEmpty(t, hits)
	assert.Equal(t, uint32(target), hits[0].ExternalID)
}

func TestSetEfOverridesDefault(t *testing.T) {
	idx, vectors := buildRandomIndex(t, 30, 8, distance.MetricL2, 5)
	idx.SetEf(4)
	hits := idx.Search(vectors[0], 2, 0)
	assert.NotEmpty(t, hits)
}
