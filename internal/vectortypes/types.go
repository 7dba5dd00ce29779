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

// Package vectortypes holds the data-model types shared across the engine:
// PointId, Vector, VectorSpec, segment ids and the query result shapes.
// It imports no other internal package, so every internal package can
// import it without cycles.
package vectortypes

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
)

// VectorName addresses a named vector within a point (e.g. "image", "text").
type VectorName = string

// Vector is a dense float buffer.
type Vector = []float32

// PointIdKind discriminates the PointId tagged union: an explicit tagged
// sum over string and uint64 ids, with uniform hashing and byte
// serialization across both.
type PointIdKind uint8

const (
	PointIdString PointIdKind = iota
	PointIdUint64
)

// PointId is the externally visible identifier of a point. Exactly one of
// Str/Num is meaningful, selected by Kind.
type PointId struct {
	Kind PointIdKind
	Str  string
	Num  uint64
}

func StringId(s string) PointId { return PointId{Kind: PointIdString, Str: s} }
func Uint64Id(n uint64) PointId { return PointId{Kind: PointIdUint64, Num: n} }

// String renders the id for logging, map keys not required to be sortable,
// and error messages.
func (p PointId) String() string {
	switch p.Kind {
	case PointIdUint64:
		return fmt.Sprintf("%d", p.Num)
	default:
		return p.Str
	}
}

// Less gives PointId a total order, used to break score ties by ascending
// point id.
func (p PointId) Less(o PointId) bool {
	if p.Kind != o.Kind {
		return p.Kind < o.Kind
	}
	if p.Kind == PointIdUint64 {
		return p.Num < o.Num
	}
	return p.Str < o.Str
}

func (p PointId) Equal(o PointId) bool {
	return p.Kind == o.Kind && p.Str == o.Str && p.Num == o.Num
}

// Bytes serializes the id with an explicit discriminator byte, the form
// used by the WAL frame and the payload store key.
func (p PointId) Bytes() []byte {
	switch p.Kind {
	case PointIdUint64:
		buf := make([]byte, 9)
		buf[0] = byte(PointIdUint64)
		binary.BigEndian.PutUint64(buf[1:], p.Num)
		return buf
	default:
		buf := make([]byte, 1+len(p.Str))
		buf[0] = byte(PointIdString)
		copy(buf[1:], p.Str)
		return buf
	}
}

// ParsePointIdBytes inverts Bytes.
func ParsePointIdBytes(b []byte) (PointId, error) {
	if len(b) == 0 {
		return PointId{}, fmt.Errorf("empty point id bytes")
	}
	switch PointIdKind(b[0]) {
	case PointIdUint64:
		if len(b) != 9 {
			return PointId{}, fmt.Errorf("malformed uint64 point id: %d bytes", len(b))
		}
		return Uint64Id(binary.BigEndian.Uint64(b[1:])), nil
	case PointIdString:
		return StringId(string(b[1:])), nil
	default:
		return PointId{}, fmt.Errorf("unknown point id discriminator %d", b[0])
	}
}

// Hash provides a uniform 64-bit hash of the id, independent of which
// variant is populated.
func (p PointId) Hash() uint64 {
	return murmur3.Sum64(p.Bytes())
}

// DistanceMetric selects the scoring function for a named vector.
type DistanceMetric uint8

const (
	MetricL2 DistanceMetric = iota
	MetricDot
	MetricCosine
)

func ParseMetric(s string) (DistanceMetric, error) {
	switch s {
	case "l2", "L2":
		return MetricL2, nil
	case "dot", "DOT":
		return MetricDot, nil
	case "cosine", "COSINE":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", s)
	}
}

func (m DistanceMetric) String() string {
	switch m {
	case MetricL2:
		return "l2"
	case MetricDot:
		return "dot"
	case MetricCosine:
		return "cosine"
	default:
		return "unknown"
	}
}

// VectorSpec is the immutable per-name schema entry.
type VectorSpec struct {
	Dim    int
	Metric DistanceMetric
}

// ScoredId is a single hit: a point id with its higher-is-better score.
type ScoredId struct {
	Id    PointId
	Score float32
}

// QueryBatchResult holds the ordered hits for one input query vector.
type QueryBatchResult struct {
	Hits []ScoredId
}

// QueryResult aggregates the outcome of a top-k search across every input
// query vector in one request.
type QueryResult struct {
	Status       error
	TimeSeconds  float64
	Results      []QueryBatchResult
}

// DefaultVectorName is used when the client supplies a bare array instead
// of a {name: array} object.
const DefaultVectorName = "default"

// SegmentId identifies one ImmutableSegment, generated once at promotion
// time and stable for the segment's on-disk lifetime.
type SegmentId struct{ uuid.UUID }

// GenerateSegmentId mints a fresh random segment id.
func GenerateSegmentId() SegmentId { return SegmentId{uuid.New()} }

func (s SegmentId) String() string { return s.UUID.String() }

// CollectionId identifies one collection for internal bookkeeping (log
// fields, metrics labels); the collection name itself is what clients
// address by.
type CollectionId struct{ uuid.UUID }

func GenerateCollectionId() CollectionId { return CollectionId{uuid.New()} }

func (c CollectionId) String() string { return c.UUID.String() }
