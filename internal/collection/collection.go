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

// Package collection binds one named collection's schema, segment holder,
// payload store and WAL together, and exposes the insert/search surface
// DB routes to.
package collection

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/jerryli99/vectordb/internal/bitmap"
	"github.com/jerryli99/vectordb/internal/graph"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/metaindex"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/payload"
	"github.com/jerryli99/vectordb/internal/segment"
	"github.com/jerryli99/vectordb/internal/vectortypes"
	"github.com/jerryli99/vectordb/internal/wal"
)

// filterCandidatePoolFactor widens the unfiltered search pool a filtered
// query draws its candidates from, since every hit rejected by the field
// filter has to be backfilled from somewhere before truncating to k.
const filterCandidatePoolFactor = 8

// Info is the immutable metadata describing a collection: its schema of
// named vectors plus the index construction knobs. GraphEnabled opts the
// collection into the auxiliary point-relationship graph; most collections
// leave it false and rely on vector similarity alone.
type Info struct {
	Name         string
	Id           vectortypes.CollectionId
	VecSpecs     map[vectortypes.VectorName]vectortypes.VectorSpec
	IndexSpec    paramtable.IndexSpec
	GraphEnabled bool
}

// Collection owns one segment holder, one payload store and one WAL. All
// three are kept behind a single RW lock: readers (search) take RLock,
// writers (upsert, promotion) take Lock, so a promotion can never race a
// search's view of the segment set.
type Collection struct {
	mu      sync.RWMutex
	info    Info
	holder  *segment.SegmentHolder
	payload *payload.Store
	log     *wal.WAL

	// meta and bits are best-effort payload-field indexes built from live
	// traffic: they narrow candidates for a filtered search but are never
	// trusted as the sole source of truth, and neither is rebuilt from the
	// payload store on reopen, so a restarted collection rebuilds them from
	// scratch as new upserts arrive.
	meta *metaindex.MetaIndex
	bits *bitmap.Index
	// graph is nil unless Info.GraphEnabled.
	graph *graph.Graph
}

// Open constructs (or reopens) a collection rooted at dataDir/<name>/,
// replaying its WAL and reloading its payload store.
func Open(fs afero.Fs, dataDir string, info Info, cfg paramtable.Config) (*Collection, error) {
	root := filepath.Join(dataDir, info.Name)
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, merr.Wrapf(err, "create collection dir %s", root)
	}

	store, err := payload.LoadFromDisk(fs, filepath.Join(root, "payload"), info.Name, int(cfg.PayloadCacheBytes/1024))
	if err != nil {
		return nil, merr.Wrapf(err, "load payload store for %s", info.Name)
	}

	w, err := wal.Open(fs, filepath.Join(root, "wal.log"))
	if err != nil {
		return nil, merr.Wrapf(err, "open wal for %s", info.Name)
	}

	schema := segment.Schema(info.VecSpecs)
	holder := segment.NewSegmentHolder(info.Name, cfg.MaxMemoryPoolPoints, schema, info.IndexSpec)

	segRoot := filepath.Join(root, "segments")
	if err := loadPersistedSegments(fs, segRoot, schema, holder); err != nil {
		return nil, merr.Wrapf(err, "load persisted segments for %s", info.Name)
	}

	c := &Collection{info: info, holder: holder, payload: store, log: w, meta: metaindex.New(), bits: bitmap.New()}
	if info.GraphEnabled {
		c.graph = graph.New()
	}
	if err := c.replayWAL(); err != nil {
		return nil, merr.Wrapf(err, "replay wal for %s", info.Name)
	}
	return c, nil
}

// loadPersistedSegments reloads every immutable segment previously
// written by PersistSegments, so a restart sees the same segment set a
// clean shutdown left behind instead of relying on the WAL (which is
// truncated once a segment is durable).
func loadPersistedSegments(fs afero.Fs, segRoot string, schema segment.Schema, holder *segment.SegmentHolder) error {
	entries, err := afero.ReadDir(fs, segRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		u, err := uuid.Parse(e.Name())
		if err != nil {
			continue
		}
		imm, err := segment.ReadFromDisk(fs, segRoot, vectortypes.SegmentId{UUID: u}, schema)
		if err != nil {
			return merr.Wrapf(err, "read segment %s", e.Name())
		}
		holder.LoadImmutableSegment(imm)
	}
	return nil
}

func (c *Collection) replayWAL() error {
	entries, err := c.log.Replay()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.CollectionName != c.info.Name || e.Type != wal.EntryInsert {
			continue
		}
		if err := c.holder.InsertPoint(e.PointId, e.Vectors); err != nil && !merr.Is(err, merr.ErrSegmentFull) {
			return err
		}
	}
	return nil
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.info.Name }

// Info returns the collection's immutable schema/metadata.
func (c *Collection) Info() Info { return c.info }

// UpsertPoint appends the insert to the WAL, applies it to the segment
// holder, optionally stores a JSON payload, and triggers promotion if the
// active segment has crossed its index threshold.
func (c *Collection) UpsertPoint(id vectortypes.PointId, vectors map[vectortypes.VectorName]vectortypes.Vector, payloadJSON []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, v := range vectors {
		spec, ok := c.info.VecSpecs[name]
		if !ok {
			return merr.Wrapf(merr.ErrSchemaUnknownVector, "vector name %q", name)
		}
		if len(v) != spec.Dim {
			return merr.Wrapf(merr.ErrSchemaDimMismatch, "vector %q has dim %d, expected %d", name, len(v), spec.Dim)
		}
	}

	if err := c.log.Append(wal.Entry{
		Type:           wal.EntryInsert,
		CollectionName: c.info.Name,
		PointId:        id,
		Vectors:        vectors,
	}); err != nil {
		return merr.Wrapf(merr.ErrWAL, "append: %v", err)
	}

	if err := c.holder.InsertPoint(id, vectors); err != nil {
		return err
	}

	if payloadJSON != nil {
		if err := c.payload.Save(id, payloadJSON); err != nil {
			// The vector landed but the payload didn't: surfaced to the
			// caller as a non-OK status rather than rolled back. There is
			// no cross-store transaction between the segment holder and
			// the payload store.
			return merr.Wrapf(merr.ErrPayloadStore, "vector %s stored, payload save failed: %v", id, err)
		}
		c.indexPayloadFields(id, payloadJSON)
	}

	if _, err := c.holder.MaybePromote(); err != nil {
		return merr.Wrapf(err, "promote after insert of %s", id)
	}
	return nil
}

// SearchTopK fans a query out across the collection's segments.
func (c *Collection) SearchTopK(ctx context.Context, vectorName vectortypes.VectorName, queries []vectortypes.Vector, k int) vectortypes.QueryResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.holder.SearchTopK(ctx, vectorName, queries, k)
}

// PointExists reports whether id is present anywhere in the collection.
func (c *Collection) PointExists(id vectortypes.PointId) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.holder.PointExists(id)
}

// Payload returns the stored JSON payload for id, if any.
func (c *Collection) Payload(id vectortypes.PointId) ([]byte, bool) {
	return c.payload.Load(id)
}

// FilterPayloads scans every stored payload and returns the raw JSON of
// each one whose fieldPath equals want.
func (c *Collection) FilterPayloads(fieldPath, want string) [][]byte {
	return c.payload.Filter(fieldPath, want)
}

// indexPayloadFields records every top-level string field of payloadJSON
// into the collection's best-effort bitmap and metaindex, so a later
// filtered search has a narrower candidate set to start from.
func (c *Collection) indexPayloadFields(id vectortypes.PointId, payloadJSON []byte) {
	gjson.ParseBytes(payloadJSON).ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			return true
		}
		field, val := key.String(), value.String()
		c.bits.Set(id, field, val)
		c.meta.Index(field, val, id)
		return true
	})
}

// SearchTopKFiltered runs a vector query and narrows the results to points
// whose payload has field == want, verified against the payload store (the
// bitmap pre-filter only ever shortcuts a confirmed match; it never causes
// one to be accepted without that check). Because the pre-filter is
// best-effort, a query pulls a wider candidate pool than k so there is
// still room to backfill after rejecting non-matching hits.
func (c *Collection) SearchTopKFiltered(ctx context.Context, vectorName vectortypes.VectorName, queries []vectortypes.Vector, k int, field, want string) vectortypes.QueryResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pool := k * filterCandidatePoolFactor
	result := c.holder.SearchTopK(ctx, vectorName, queries, pool)
	if result.Status != nil {
		return result
	}

	indexed := make(map[vectortypes.PointId]bool, 16)
	for _, id := range c.meta.Lookup(field, want) {
		indexed[id] = true
	}

	out := make([]vectortypes.QueryBatchResult, len(result.Results))
	for qi, batch := range result.Results {
		filtered := make([]vectortypes.ScoredId, 0, k)
		for _, hit := range batch.Hits {
			if len(filtered) >= k {
				break
			}
			if indexed[hit.Id] || c.bits.Matches(hit.Id, field, want) || c.payload.MatchesField(hit.Id, field, want) {
				filtered = append(filtered, hit)
			}
		}
		out[qi] = vectortypes.QueryBatchResult{Hits: filtered}
	}
	return vectortypes.QueryResult{Results: out}
}

// LinkPoints records a directed, labeled edge between two points in the
// collection's auxiliary relationship graph. Returns merr.ErrGraphDisabled
// if Info.GraphEnabled is false.
func (c *Collection) LinkPoints(from, to vectortypes.PointId, relation string) error {
	if c.graph == nil {
		return merr.ErrGraphDisabled
	}
	c.graph.Link(from, to, relation)
	return nil
}

// UnlinkPoints removes the from -> to edge, if present.
func (c *Collection) UnlinkPoints(from, to vectortypes.PointId) error {
	if c.graph == nil {
		return merr.ErrGraphDisabled
	}
	c.graph.Unlink(from, to)
	return nil
}

// Neighbors returns the points from links to, optionally filtered to a
// single relation label.
func (c *Collection) Neighbors(from vectortypes.PointId, relation string) ([]vectortypes.PointId, error) {
	if c.graph == nil {
		return nil, merr.ErrGraphDisabled
	}
	return c.graph.Neighbors(from, relation), nil
}

// PersistSegments writes every immutable segment to disk and checkpoints
// the payload store and WAL, intended to be called on a timer
// (paramtable.Config.BackupInterval).
func (c *Collection) PersistSegments(fs afero.Fs, dataDir string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	segRoot := filepath.Join(dataDir, c.info.Name, "segments")
	for _, seg := range c.holder.ImmutableSegments() {
		if err := seg.WriteToDisk(fs, segRoot); err != nil {
			return merr.Wrapf(err, "persist segment %s", seg.ID())
		}
	}
	if err := c.payload.Persist(); err != nil {
		return merr.Wrap(err, "persist payload store")
	}
	// Points still in the active segment are durable only in the WAL, and
	// theirs are its most recent entries, so those entries are kept.
	return c.log.Truncate(wal.TruncateKeepLastN, c.holder.ActiveSegmentSnapshot().PointCount())
}
