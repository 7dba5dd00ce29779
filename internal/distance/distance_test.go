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

package distance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVector(n int, r *rand.Rand) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func TestScalarAndSIMDAgreeAcrossLengths(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 7, 8, 9, 16, 17, 100} {
		a := randomVector(n, r)
		b := randomVector(n, r)

		assert.InDelta(t, DotScalar(a, b), DotSIMD(a, b), 1e-3, "dot mismatch at n=%d", n)
		assert.InDelta(t, L2SquaredScalar(a, b), L2SquaredSIMD(a, b), 1e-3, "l2 mismatch at n=%d", n)
	}
}

func TestRawDispatchesByMetric(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	b := []float32{9, 8, 7, 6, 5, 4, 3, 2, 1}

	assert.Equal(t, L2SquaredSIMD(a, b), Raw(MetricL2, a, b))
	assert.Equal(t, DotSIMD(a, b), Raw(MetricDot, a, b))
	assert.Equal(t, DotSIMD(a, b), Raw(MetricCosine, a, b))

	assert.Equal(t, L2SquaredScalar(a, b), RawScalar(MetricL2, a, b))
	assert.Equal(t, DotScalar(a, b), RawScalar(MetricDot, a, b))
}

func TestScoreNegatesOnlyL2(t *testing.T) {
	assert.Equal(t, float32(-5), Score(MetricL2, 5))
	assert.Equal(t, float32(5), Score(MetricDot, 5))
	assert.Equal(t, float32(5), Score(MetricCosine, 5))
}

func TestNormalizeUnitNorm(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 1.0, math.Sqrt(float64(DotScalar(v, v))), 1e-5)
}

func TestNormalizeZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNormalizedDoesNotMutateInput(t *testing.T) {
	v := []float32{3, 4}
	out := Normalized(v)
	require.Equal(t, []float32{3, 4}, v)
	assert.InDelta(t, 1.0, Norm(out), 1e-5)
}

func TestCosineOnNormalizedVectorsBoundedByOne(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	a := Normalized(randomVector(32, r))
	b := Normalized(randomVector(32, r))
	score := Score(MetricCosine, Raw(MetricCosine, a, b))
	assert.LessOrEqual(t, score, float32(1.0001))
	assert.GreaterOrEqual(t, score, float32(-1.0001))
}
