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

// Package distance implements the three metric kernels (L2, DOT, COSINE).
// Each has a scalar reference path and an 8-lane unrolled fast path; no ANN
// library in the pack ships SIMD kernels for Go, so this is stdlib
// arithmetic structured in lane-unrolled form instead.
package distance

import "math"

const lanes = 8

// DotScalar is the reference inner-product kernel. Accumulation happens in
// float64 to keep rounding error bounded, then is narrowed.
func DotScalar(a, b []float32) float32 {
	var acc float64
	for i := range a {
		acc += float64(a[i]) * float64(b[i])
	}
	return float32(acc)
}

// L2SquaredScalar is the reference squared-Euclidean-distance kernel.
func L2SquaredScalar(a, b []float32) float32 {
	var acc float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		acc += d * d
	}
	return float32(acc)
}

// DotSIMD processes 8-lane chunks with a loop-unrolled fused
// multiply-accumulate, horizontally reducing the 8 partial sums to one
// float32 at the end; the tail (len(a) % 8 elements) falls back to a
// scalar loop.
func DotSIMD(a, b []float32) float32 {
	n := len(a)
	full := n - n%lanes

	var acc [lanes]float32
	for i := 0; i < full; i += lanes {
		acc[0] += a[i+0] * b[i+0]
		acc[1] += a[i+1] * b[i+1]
		acc[2] += a[i+2] * b[i+2]
		acc[3] += a[i+3] * b[i+3]
		acc[4] += a[i+4] * b[i+4]
		acc[5] += a[i+5] * b[i+5]
		acc[6] += a[i+6] * b[i+6]
		acc[7] += a[i+7] * b[i+7]
	}
	sum := ((acc[0] + acc[1]) + (acc[2] + acc[3])) + ((acc[4] + acc[5]) + (acc[6] + acc[7]))

	var tail float64
	for i := full; i < n; i++ {
		tail += float64(a[i]) * float64(b[i])
	}
	return sum + float32(tail)
}

// L2SquaredSIMD mirrors DotSIMD's lane structure for squared distance.
func L2SquaredSIMD(a, b []float32) float32 {
	n := len(a)
	full := n - n%lanes

	var acc [lanes]float32
	for i := 0; i < full; i += lanes {
		d0 := a[i+0] - b[i+0]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		d4 := a[i+4] - b[i+4]
		d5 := a[i+5] - b[i+5]
		d6 := a[i+6] - b[i+6]
		d7 := a[i+7] - b[i+7]
		acc[0] += d0 * d0
		acc[1] += d1 * d1
		acc[2] += d2 * d2
		acc[3] += d3 * d3
		acc[4] += d4 * d4
		acc[5] += d5 * d5
		acc[6] += d6 * d6
		acc[7] += d7 * d7
	}
	sum := ((acc[0] + acc[1]) + (acc[2] + acc[3])) + ((acc[4] + acc[5]) + (acc[6] + acc[7]))

	var tail float64
	for i := full; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		tail += d * d
	}
	return sum + float32(tail)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(DotScalar(v, v))))
}

// Normalize scales v in place to unit L2 norm. A zero vector is left
// unchanged (there is no direction to normalize to).
func Normalize(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	inv := 1 / n
	for i := range v {
		v[i] *= inv
	}
}

// Normalized returns a freshly allocated unit-norm copy of v, used at
// HNSW index-build and query time for COSINE: the kernel layer below
// assumes its inputs are already unit-normalized.
func Normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	Normalize(out)
	return out
}

// Raw computes the metric's native distance/similarity value (not yet
// oriented to higher-is-better) using the SIMD fast path. COSINE assumes
// both inputs are already unit-normalized.
func Raw(metric Metric, a, b []float32) float32 {
	switch metric {
	case MetricL2:
		return L2SquaredSIMD(a, b)
	default: // Dot, Cosine
		return DotSIMD(a, b)
	}
}

// RawScalar is Raw's reference-path twin, used by tests asserting
// scalar/SIMD agreement.
func RawScalar(metric Metric, a, b []float32) float32 {
	switch metric {
	case MetricL2:
		return L2SquaredScalar(a, b)
	default:
		return DotScalar(a, b)
	}
}

// Score converts a raw metric value to the higher-is-better convention
// used everywhere above the kernel layer: L2 distances are negated,
// DOT/COSINE pass through unchanged.
func Score(metric Metric, raw float32) float32 {
	if metric == MetricL2 {
		return -raw
	}
	return raw
}

// Metric mirrors vectortypes.DistanceMetric without importing it, so this
// package stays leaf-level; callers pass vectortypes.DistanceMetric values
// directly since the underlying type is identical.
type Metric = uint8

const (
	MetricL2 Metric = iota
	MetricDot
	MetricCosine
)
