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

// Package db is the top-level façade: collection lifecycle plus
// upsert/search request validation and routing into a collection.Container.
package db

import (
	"github.com/jerryli99/vectordb/internal/collection"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// CreateCollectionRequest is the decoded body of a PUT /collections/{name}.
type CreateCollectionRequest struct {
	Name          string                     `json:"name"`
	Vectors       map[string]VectorSpecInput `json:"vectors" binding:"required"`
	MEdges        int                        `json:"m_edges,omitempty"`
	EfConstr      int                        `json:"ef_construction,omitempty"`
	EfSearch      int                        `json:"ef_search,omitempty"`
	Threshold     int                        `json:"index_threshold,omitempty"`
	GraphEnabled  bool                       `json:"graph_enabled,omitempty"`
}

// VectorSpecInput is one named vector's schema entry as received over the
// wire, before the metric string is parsed.
type VectorSpecInput struct {
	Dim    int    `json:"dim" binding:"required"`
	Metric string `json:"metric" binding:"required"`
}

// ToInfo validates and converts the wire request into collection.Info,
// applying paramtable defaults for any index knob left at zero.
func (r CreateCollectionRequest) ToInfo(defaults func() (mEdges, efConstr, efSearch, threshold int)) (collection.Info, error) {
	if len(r.Vectors) == 0 {
		return collection.Info{}, merr.Wrap(merr.ErrMalformedJSON, "collection must declare at least one named vector")
	}
	if len(r.Vectors) > 8 {
		return collection.Info{}, merr.Wrap(merr.ErrSchemaTooManyVectors, "at most 8 named vectors per collection")
	}

	specs := make(map[vectortypes.VectorName]vectortypes.VectorSpec, len(r.Vectors))
	for name, v := range r.Vectors {
		if v.Dim <= 0 {
			return collection.Info{}, merr.Wrapf(merr.ErrSchemaDimMismatch, "vector %q must declare a positive dim", name)
		}
		metric, err := vectortypes.ParseMetric(v.Metric)
		if err != nil {
			return collection.Info{}, merr.Wrapf(merr.ErrMalformedJSON, "vector %q: %v", name, err)
		}
		specs[name] = vectortypes.VectorSpec{Dim: v.Dim, Metric: metric}
	}

	mEdges, efConstr, efSearch, threshold := defaults()
	if r.MEdges > 0 {
		mEdges = r.MEdges
	}
	if r.EfConstr > 0 {
		efConstr = r.EfConstr
	}
	if r.EfSearch > 0 {
		efSearch = r.EfSearch
	}
	if r.Threshold > 0 {
		threshold = r.Threshold
	}

	return collection.Info{
		Name:         r.Name,
		Id:           vectortypes.GenerateCollectionId(),
		VecSpecs:     specs,
		GraphEnabled: r.GraphEnabled,
		IndexSpec: paramtable.IndexSpec{
			MEdges:         mEdges,
			EfConstruction: efConstr,
			EfSearch:       efSearch,
			IndexThreshold: threshold,
		},
	}, nil
}

// UpsertRequest is one point to upsert: either a bare vector (applied to
// the DefaultVectorName) or a map of named vectors, plus an optional JSON
// payload.
type UpsertRequest struct {
	Id        PointIdInput             `json:"id" binding:"required"`
	Vector    []float32                `json:"vector,omitempty"`
	Vectors   map[string][]float32     `json:"vectors,omitempty"`
	Payload   map[string]interface{}   `json:"payload,omitempty"`
}

// PointIdInput carries a point id as received over the wire: the client
// sends either a JSON string or a JSON number, decoded by the handler
// before reaching this struct (see httpapi's decodePointId).
type PointIdInput = vectortypes.PointId

// NamedVectors returns the request's vectors keyed by name, defaulting a
// bare Vector to vectortypes.DefaultVectorName.
func (r UpsertRequest) NamedVectors() map[vectortypes.VectorName]vectortypes.Vector {
	if len(r.Vectors) > 0 {
		out := make(map[vectortypes.VectorName]vectortypes.Vector, len(r.Vectors))
		for name, v := range r.Vectors {
			out[name] = v
		}
		return out
	}
	return map[vectortypes.VectorName]vectortypes.Vector{vectortypes.DefaultVectorName: r.Vector}
}
