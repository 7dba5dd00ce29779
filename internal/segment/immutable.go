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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/spf13/afero"

	"github.com/jerryli99/vectordb/internal/distance"
	"github.com/jerryli99/vectordb/internal/index/hnsw"
	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/storage"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// onDiskFormatVersion is stamped into every persisted segment so a future
// reader can detect an incompatible layout before attempting to parse it.
var onDiskFormatVersion = semver.MustParse("1.0.0")

// ImmutableSegment is the frozen, HNSW-indexed tier. It holds one graph
// per named vector, built with the pure-Go hnsw package since no Faiss
// binding exists in the example pack.
type ImmutableSegment struct {
	id         vectortypes.SegmentId
	indexSpec  paramtable.IndexSpec
	schema     Schema
	pointIDs   []vectortypes.PointId
	vectorDims map[vectortypes.VectorName]int
	indexes    map[vectortypes.VectorName]*hnsw.Index
	// indexPointIDs[name][externalID] recovers the PointId behind an HNSW
	// hit for that name, since not every point carries every named vector
	// so a graph's external ids do not line up with the segment-wide
	// pointIDs slice.
	indexPointIDs map[vectortypes.VectorName][]vectortypes.PointId
	pointCount    int
}

// BuildImmutableSegment constructs HNSW graphs for every named vector
// present across points, one graph per name.
func BuildImmutableSegment(id vectortypes.SegmentId, points []*storage.Point, schema Schema, spec paramtable.IndexSpec) (*ImmutableSegment, error) {
	if len(points) == 0 {
		return nil, merr.Wrap(merr.ErrIndexBuildFailed, "no points to build index from")
	}

	seg := &ImmutableSegment{
		id:            id,
		indexSpec:     spec,
		schema:        schema,
		pointIDs:      make([]vectortypes.PointId, len(points)),
		vectorDims:    make(map[vectortypes.VectorName]int),
		indexes:       make(map[vectortypes.VectorName]*hnsw.Index),
		indexPointIDs: make(map[vectortypes.VectorName][]vectortypes.PointId),
	}
	for i, p := range points {
		seg.pointIDs[i] = p.Id
	}
	seg.pointCount = len(points)

	vectorData := make(map[vectortypes.VectorName][][]float32)
	for _, p := range points {
		for name, v := range p.AllVectors() {
			vectorData[name] = append(vectorData[name], v)
			seg.indexPointIDs[name] = append(seg.indexPointIDs[name], p.Id)
			if _, ok := seg.vectorDims[name]; !ok {
				seg.vectorDims[name] = len(v)
			}
		}
	}

	for name, vectors := range vectorData {
		vspec, ok := schema[name]
		if !ok {
			return nil, merr.Wrapf(merr.ErrSchemaUnknownVector, "vector name %q has no schema entry", name)
		}
		idx := hnsw.New(hnsw.Config{
			M:              spec.MEdges,
			EfConstruction: spec.EfConstruction,
			EfSearch:       spec.EfSearch,
			Metric:         uint8(vspec.Metric),
		})
		for externalID, v := range vectors {
			vv := v
			if vspec.Metric == vectortypes.MetricCosine {
				vv = cosineCopy(v)
			}
			idx.Add(uint32(externalID), vv)
		}
		seg.indexes[name] = idx
	}

	return seg, nil
}

func cosineCopy(v []float32) []float32 {
	return distance.Normalized(v)
}

// PointCount returns how many points are frozen into this segment.
func (s *ImmutableSegment) PointCount() int { return s.pointCount }

// PointIDs returns every point id frozen into this segment, used to
// rebuild the holder's existence filter when a persisted segment is
// reloaded at startup.
func (s *ImmutableSegment) PointIDs() []vectortypes.PointId { return s.pointIDs }

// ID returns the segment's identifier.
func (s *ImmutableSegment) ID() vectortypes.SegmentId { return s.id }

// ShouldMerge reports whether this segment is small enough that it should
// be folded back into a neighboring segment rather than kept standalone.
func (s *ImmutableSegment) ShouldMerge() bool {
	return s.pointCount < s.indexSpec.IndexThreshold*2
}

// Search runs a top-k query against the named vector's HNSW graph.
func (s *ImmutableSegment) Search(vectorName vectortypes.VectorName, query vectortypes.Vector, k int) ([]vectortypes.ScoredId, error) {
	idx, ok := s.indexes[vectorName]
	if !ok {
		return nil, merr.Wrapf(merr.ErrSchemaUnknownVector, "vector name %q", vectorName)
	}
	vspec := s.schema[vectorName]
	if len(query) != vspec.Dim {
		return nil, merr.Wrapf(merr.ErrSchemaDimMismatch, "query dim %d, expected %d", len(query), vspec.Dim)
	}
	q := query
	if vspec.Metric == vectortypes.MetricCosine {
		q = cosineCopy(query)
	}
	hits := idx.Search(q, k, s.indexSpec.EfSearch)
	ids := s.indexPointIDs[vectorName]
	out := make([]vectortypes.ScoredId, len(hits))
	for i, h := range hits {
		out[i] = vectortypes.ScoredId{Id: ids[h.ExternalID], Score: h.Score}
	}
	return out, nil
}

// SearchMulti runs Search against every named vector in queries, one
// query vector per name, returning each name's hits keyed by name. A
// schema/dimension error against any single name aborts the whole call.
func (s *ImmutableSegment) SearchMulti(queries map[vectortypes.VectorName]vectortypes.Vector, k int) (map[vectortypes.VectorName][]vectortypes.ScoredId, error) {
	out := make(map[vectortypes.VectorName][]vectortypes.ScoredId, len(queries))
	for name, q := range queries {
		hits, err := s.Search(name, q, k)
		if err != nil {
			return nil, err
		}
		out[name] = hits
	}
	return out, nil
}

// WriteToDisk persists the segment under root/<segmentID>/ using afero's
// filesystem abstraction, so tests can exercise this against an in-memory
// filesystem without touching the real disk.
func (s *ImmutableSegment) WriteToDisk(fs afero.Fs, root string) error {
	dir := filepath.Join(root, s.id.String())
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return merr.Wrapf(err, "create segment dir %s", dir)
	}

	meta, err := fs.Create(filepath.Join(dir, "metadata.txt"))
	if err != nil {
		return merr.Wrap(err, "create metadata.txt")
	}
	defer meta.Close()
	w := bufio.NewWriter(meta)
	fmt.Fprintf(w, "format_version: %s\n", onDiskFormatVersion.String())
	fmt.Fprintf(w, "point_count: %d\n", s.pointCount)
	fmt.Fprintf(w, "index_threshold: %d\n", s.indexSpec.IndexThreshold)
	fmt.Fprintf(w, "m_edges: %d\n", s.indexSpec.MEdges)
	fmt.Fprintf(w, "ef_construction: %d\n", s.indexSpec.EfConstruction)
	fmt.Fprintf(w, "ef_search: %d\n", s.indexSpec.EfSearch)
	if err := w.Flush(); err != nil {
		return merr.Wrap(err, "flush metadata.txt")
	}

	idFile, err := fs.Create(filepath.Join(dir, "point_ids.bin"))
	if err != nil {
		return merr.Wrap(err, "create point_ids.bin")
	}
	defer idFile.Close()
	for _, id := range s.pointIDs {
		b := id.Bytes()
		if err := binary.Write(idFile, binary.BigEndian, uint32(len(b))); err != nil {
			return merr.Wrap(err, "write point id length")
		}
		if _, err := idFile.Write(b); err != nil {
			return merr.Wrap(err, "write point id")
		}
	}

	dimFile, err := fs.Create(filepath.Join(dir, "vector_dims.bin"))
	if err != nil {
		return merr.Wrap(err, "create vector_dims.bin")
	}
	defer dimFile.Close()
	for name, dim := range s.vectorDims {
		nameBytes := []byte(name)
		binary.Write(dimFile, binary.BigEndian, uint32(len(nameBytes)))
		dimFile.Write(nameBytes)
		binary.Write(dimFile, binary.BigEndian, uint32(dim))
	}

	for name, idx := range s.indexes {
		data, err := idx.Serialize()
		if err != nil {
			return merr.Wrapf(err, "serialize index %s", name)
		}
		path := filepath.Join(dir, "index_"+name+".hnsw")
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			return merr.Wrapf(err, "write index %s", name)
		}

		vecPath := filepath.Join(dir, "vectors_"+name+".bin")
		vecFile, err := fs.Create(vecPath)
		if err != nil {
			return merr.Wrapf(err, "create vectors_%s.bin", name)
		}
		ids := s.indexPointIDs[name]
		vectors := idx.Vectors()
		for i, v := range vectors {
			idBytes := ids[i].Bytes()
			if err := binary.Write(vecFile, binary.BigEndian, uint32(len(idBytes))); err != nil {
				vecFile.Close()
				return merr.Wrapf(err, "write vector point id length for %s", name)
			}
			if _, err := vecFile.Write(idBytes); err != nil {
				vecFile.Close()
				return merr.Wrapf(err, "write vector point id for %s", name)
			}
			for _, f := range v {
				if err := binary.Write(vecFile, binary.BigEndian, math.Float32bits(f)); err != nil {
					vecFile.Close()
					return merr.Wrapf(err, "write vector component for %s", name)
				}
			}
		}
		if err := vecFile.Close(); err != nil {
			return merr.Wrapf(err, "close vectors_%s.bin", name)
		}
	}

	return nil
}

// ReadFromDisk inverts WriteToDisk, rebuilding an ImmutableSegment from
// the metadata/point_ids/vector_dims/index files under root/<segmentID>/.
// Each named vector's HNSW graph topology is restored via hnsw.Deserialize
// and its vectors re-attached via Rehydrate, in the same slot order they
// were written in.
func ReadFromDisk(fs afero.Fs, root string, id vectortypes.SegmentId, schema Schema) (*ImmutableSegment, error) {
	dir := filepath.Join(root, id.String())

	meta, err := readMetadata(fs, dir)
	if err != nil {
		return nil, merr.Wrapf(err, "read metadata for segment %s", id)
	}

	pointIDs, err := readPointIDs(fs, dir)
	if err != nil {
		return nil, merr.Wrapf(err, "read point ids for segment %s", id)
	}

	vectorDims, err := readVectorDims(fs, dir)
	if err != nil {
		return nil, merr.Wrapf(err, "read vector dims for segment %s", id)
	}

	seg := &ImmutableSegment{
		id:        id,
		indexSpec: meta.indexSpec,
		schema:    schema,
		pointIDs:  pointIDs,
		vectorDims: vectorDims,
		indexes:       make(map[vectortypes.VectorName]*hnsw.Index),
		indexPointIDs: make(map[vectortypes.VectorName][]vectortypes.PointId),
		pointCount:    meta.pointCount,
	}

	for name := range vectorDims {
		graphData, err := afero.ReadFile(fs, filepath.Join(dir, "index_"+name+".hnsw"))
		if err != nil {
			return nil, merr.Wrapf(err, "read index_%s.hnsw", name)
		}
		idx, err := hnsw.Deserialize(graphData)
		if err != nil {
			return nil, merr.Wrapf(err, "deserialize index %s", name)
		}

		ids, vectors, err := readVectorsFile(fs, dir, name, vectorDims[name])
		if err != nil {
			return nil, merr.Wrapf(err, "read vectors_%s.bin", name)
		}
		idx.Rehydrate(vectors)

		seg.indexes[name] = idx
		seg.indexPointIDs[name] = ids
	}

	return seg, nil
}

type segmentMetadata struct {
	pointCount int
	indexSpec  paramtable.IndexSpec
}

func readMetadata(fs afero.Fs, dir string) (segmentMetadata, error) {
	f, err := fs.Open(filepath.Join(dir, "metadata.txt"))
	if err != nil {
		return segmentMetadata{}, err
	}
	defer f.Close()

	var meta segmentMetadata
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ": ")
		if !ok {
			continue
		}
		switch key {
		case "format_version":
			v, err := semver.Parse(value)
			if err != nil {
				return segmentMetadata{}, merr.Wrapf(merr.ErrCorruptSegment, "bad format_version %q", value)
			}
			if v.Major != onDiskFormatVersion.Major {
				return segmentMetadata{}, merr.Wrapf(merr.ErrCorruptSegment, "incompatible format_version %s", value)
			}
		case "point_count":
			meta.pointCount, _ = strconv.Atoi(value)
		case "index_threshold":
			meta.indexSpec.IndexThreshold, _ = strconv.Atoi(value)
		case "m_edges":
			meta.indexSpec.MEdges, _ = strconv.Atoi(value)
		case "ef_construction":
			meta.indexSpec.EfConstruction, _ = strconv.Atoi(value)
		case "ef_search":
			meta.indexSpec.EfSearch, _ = strconv.Atoi(value)
		}
	}
	return meta, scanner.Err()
}

func readPointIDs(fs afero.Fs, dir string) ([]vectortypes.PointId, error) {
	f, err := fs.Open(filepath.Join(dir, "point_ids.bin"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []vectortypes.PointId
	for {
		id, ok, err := readLenPrefixedID(f)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, id)
	}
	return out, nil
}

func readVectorDims(fs afero.Fs, dir string) (map[vectortypes.VectorName]int, error) {
	f, err := fs.Open(filepath.Join(dir, "vector_dims.bin"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[vectortypes.VectorName]int)
	for {
		var nameLen uint32
		if err := binary.Read(f, binary.BigEndian, &nameLen); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(f, nameBytes); err != nil {
			return nil, err
		}
		var dim uint32
		if err := binary.Read(f, binary.BigEndian, &dim); err != nil {
			return nil, err
		}
		out[string(nameBytes)] = int(dim)
	}
	return out, nil
}

func readVectorsFile(fs afero.Fs, dir, name string, dim int) ([]vectortypes.PointId, [][]float32, error) {
	f, err := fs.Open(filepath.Join(dir, "vectors_"+name+".bin"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var ids []vectortypes.PointId
	var vectors [][]float32
	for {
		id, ok, err := readLenPrefixedID(f)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		v := make([]float32, dim)
		for i := 0; i < dim; i++ {
			var bits uint32
			if err := binary.Read(f, binary.BigEndian, &bits); err != nil {
				return nil, nil, err
			}
			v[i] = math.Float32frombits(bits)
		}
		ids = append(ids, id)
		vectors = append(vectors, v)
	}
	return ids, vectors, nil
}

func readLenPrefixedID(r io.Reader) (vectortypes.PointId, bool, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		if err == io.EOF {
			return vectortypes.PointId{}, false, nil
		}
		return vectortypes.PointId{}, false, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return vectortypes.PointId{}, false, err
	}
	id, err := vectortypes.ParsePointIdBytes(buf)
	if err != nil {
		return vectortypes.PointId{}, false, err
	}
	return id, true, nil
}
