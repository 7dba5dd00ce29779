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

package db

import (
	"context"
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/jerryli99/vectordb/internal/collection"
	"github.com/jerryli99/vectordb/internal/log"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/metrics"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/vectortypes"
	"go.uber.org/zap"
)

// DB is the engine entrypoint: collection lifecycle plus the
// upsert/search/filter operations every client request goes through.
type DB struct {
	container *collection.Container
	cfg       paramtable.Config
}

// New wires a DB over fs, rooted at cfg.DataDir.
func New(fs afero.Fs, cfg paramtable.Config) *DB {
	return &DB{container: collection.NewContainer(fs, cfg), cfg: cfg}
}

func (d *DB) indexDefaults() (int, int, int, int) {
	return d.cfg.Index.MEdges, d.cfg.Index.EfConstruction, d.cfg.Index.EfSearch, d.cfg.Index.IndexThreshold
}

// AddCollection validates req and registers a new collection.
func (d *DB) AddCollection(req CreateCollectionRequest) error {
	info, err := req.ToInfo(d.indexDefaults)
	if err != nil {
		return err
	}
	if _, err := d.container.Create(info); err != nil {
		return err
	}
	log.Info("collection created", zap.String("collection", info.Name), zap.Int("num_vectors", len(info.VecSpecs)))
	return nil
}

// ListCollections returns every registered collection name.
func (d *DB) ListCollections() []string {
	return d.container.List()
}

// DeleteCollection removes a collection from the registry.
func (d *DB) DeleteCollection(name string) error {
	if err := d.container.Delete(name); err != nil {
		return err
	}
	log.Info("collection deleted", zap.String("collection", name))
	return nil
}

// UpsertPointToCollection validates req against the target collection's
// schema and applies it.
func (d *DB) UpsertPointToCollection(collectionName string, req UpsertRequest) error {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return err
	}

	var payloadJSON []byte
	if req.Payload != nil {
		payloadJSON, err = json.Marshal(req.Payload)
		if err != nil {
			return merr.Wrapf(merr.ErrMalformedJSON, "payload: %v", err)
		}
	}

	timer := prometheus.NewTimer(metrics.InsertLatencySeconds.WithLabelValues(collectionName))
	defer timer.ObserveDuration()

	return col.UpsertPoint(req.Id, req.NamedVectors(), payloadJSON)
}

// UpsertBatch applies a batch of upserts in order, stopping at the first
// error. The per-request point-count cap is enforced by the caller before
// this is reached.
func (d *DB) UpsertBatch(collectionName string, reqs []UpsertRequest) error {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		var payloadJSON []byte
		if req.Payload != nil {
			payloadJSON, err = json.Marshal(req.Payload)
			if err != nil {
				return merr.Wrapf(merr.ErrMalformedJSON, "payload for point %s: %v", req.Id, err)
			}
		}
		if err := col.UpsertPoint(req.Id, req.NamedVectors(), payloadJSON); err != nil {
			return merr.Wrapf(err, "upsert point %s", req.Id)
		}
	}
	return nil
}

// SearchTopKInCollection runs a top-k query against one named vector of a
// collection.
func (d *DB) SearchTopKInCollection(ctx context.Context, collectionName, vectorName string, queries []vectortypes.Vector, k int) (vectortypes.QueryResult, error) {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return vectortypes.QueryResult{}, err
	}
	if k <= 0 {
		return vectortypes.QueryResult{}, merr.Wrap(merr.ErrMalformedJSON, "k must be positive")
	}

	timer := prometheus.NewTimer(metrics.SearchLatencySeconds.WithLabelValues(collectionName))
	defer timer.ObserveDuration()

	result := col.SearchTopK(ctx, vectorName, queries, k)
	return result, nil
}

// FilterPayloads scans a collection's payload store for every payload
// whose fieldPath equals want.
func (d *DB) FilterPayloads(collectionName, fieldPath, want string) ([][]byte, error) {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return nil, err
	}
	return col.FilterPayloads(fieldPath, want), nil
}

// SearchTopKFilteredInCollection runs a top-k query narrowed to points
// whose payload has field == want.
func (d *DB) SearchTopKFilteredInCollection(ctx context.Context, collectionName, vectorName string, queries []vectortypes.Vector, k int, field, want string) (vectortypes.QueryResult, error) {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return vectortypes.QueryResult{}, err
	}
	if k <= 0 {
		return vectortypes.QueryResult{}, merr.Wrap(merr.ErrMalformedJSON, "k must be positive")
	}

	timer := prometheus.NewTimer(metrics.SearchLatencySeconds.WithLabelValues(collectionName))
	defer timer.ObserveDuration()

	return col.SearchTopKFiltered(ctx, vectortypes.VectorName(vectorName), queries, k, field, want), nil
}

// LinkPoints records a directed, labeled edge between two points in a
// collection's auxiliary relationship graph.
func (d *DB) LinkPoints(collectionName string, from, to vectortypes.PointId, relation string) error {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return err
	}
	return col.LinkPoints(from, to, relation)
}

// UnlinkPoints removes the from -> to edge, if present.
func (d *DB) UnlinkPoints(collectionName string, from, to vectortypes.PointId) error {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return err
	}
	return col.UnlinkPoints(from, to)
}

// Neighbors returns the points from links to in a collection's relationship
// graph, optionally filtered to a single relation label.
func (d *DB) Neighbors(collectionName string, from vectortypes.PointId, relation string) ([]vectortypes.PointId, error) {
	col, err := d.container.Get(collectionName)
	if err != nil {
		return nil, err
	}
	return col.Neighbors(from, relation)
}

// PersistAll checkpoints every collection to disk; wired to
// paramtable.Config.BackupInterval by cmd/vectordbd.
func (d *DB) PersistAll() error {
	return d.container.PersistAll()
}
