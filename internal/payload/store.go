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

// Package payload stores the arbitrary JSON payload attached to each
// point. No RocksDB driver appears anywhere in the example pack, so the
// save/load/remove contract is backed by an ordered in-memory btree plus
// an afero persistence layer, the way the rest of the pack's storage code
// is built.
package payload

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/metrics"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// entry is the btree item: ordered by its serialized point-id key so
// range scans (not yet exposed above this package, but kept for future
// iteration-by-range callers) are possible.
type entry struct {
	key   string
	value []byte // raw JSON payload
}

func (e entry) Less(other btree.Item) bool {
	return e.key < other.(entry).key
}

// Store is the payload side-table keyed by PointId. MatchesField and
// Filter add the JSON-field extraction the query path's metadata
// pre-filter needs, on top of the plain save/load/remove contract.
type Store struct {
	mu    sync.RWMutex
	tree  *btree.BTree
	cache *lru.Cache[string, []byte]

	fs              afero.Fs
	root            string
	collectionLabel string
}

// NewStore creates an empty in-memory payload store with an LRU read
// cache of cacheSize entries sitting in front of the btree (the btree
// itself never evicts; the cache absorbs repeated reads of hot points).
func NewStore(fs afero.Fs, root, collectionLabel string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, merr.Wrap(err, "create payload cache")
	}
	return &Store{
		tree:            btree.New(32),
		cache:           cache,
		fs:              fs,
		root:            root,
		collectionLabel: collectionLabel,
	}, nil
}

func keyOf(id vectortypes.PointId) string {
	return string(id.Bytes())
}

// Save stores payload (must already be valid JSON) under id, replacing
// any prior value.
func (s *Store) Save(id vectortypes.PointId, payloadJSON []byte) error {
	if !json.Valid(payloadJSON) {
		return merr.Wrapf(merr.ErrMalformedJSON, "payload for point %s", id)
	}
	key := keyOf(id)

	s.mu.Lock()
	s.tree.ReplaceOrInsert(entry{key: key, value: payloadJSON})
	s.mu.Unlock()

	s.cache.Remove(key)
	return nil
}

// Load returns the stored payload for id, or (nil, false) if absent.
// Hits and misses are counted for the payload cache metric. A cache hit
// returns without consulting the btree; a value found in the btree on a
// cache miss is added to the cache.
func (s *Store) Load(id vectortypes.PointId) ([]byte, bool) {
	key := keyOf(id)

	if v, ok := s.cache.Get(key); ok {
		metrics.PayloadCacheHitTotal.WithLabelValues(s.collectionLabel, "hit").Inc()
		return v, true
	}

	s.mu.RLock()
	item := s.tree.Get(entry{key: key})
	s.mu.RUnlock()

	if item == nil {
		metrics.PayloadCacheHitTotal.WithLabelValues(s.collectionLabel, "miss").Inc()
		return nil, false
	}
	v := item.(entry).value
	s.cache.Add(key, v)
	metrics.PayloadCacheHitTotal.WithLabelValues(s.collectionLabel, "miss").Inc()
	return v, true
}

// Remove deletes id's payload, if any.
func (s *Store) Remove(id vectortypes.PointId) {
	key := keyOf(id)
	s.mu.Lock()
	s.tree.Delete(entry{key: key})
	s.mu.Unlock()
	s.cache.Remove(key)
}

// Len returns the number of payloads currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// MatchesField reports whether id's payload has fieldPath (gjson
// dotted-path syntax) equal to want, used by Collection.SearchTopKFiltered
// to check the hits of a vector search.
func (s *Store) MatchesField(id vectortypes.PointId, fieldPath string, want string) bool {
	v, ok := s.Load(id)
	if !ok {
		return false
	}
	return gjson.GetBytes(v, fieldPath).String() == want
}

// Filter scans every stored payload and returns the raw JSON of each one
// whose fieldPath equals want, in ascending key order.
func (s *Store) Filter(fieldPath, want string) [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out [][]byte
	s.tree.Ascend(func(item btree.Item) bool {
		e := item.(entry)
		if gjson.GetBytes(e.value, fieldPath).String() == want {
			out = append(out, e.value)
		}
		return true
	})
	return out
}

// Persist writes every payload to root/payloads.bin as a length-prefixed
// key/value stream, via the store's afero filesystem.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return merr.Wrapf(err, "create payload root %s", s.root)
	}
	path := filepath.Join(s.root, "payloads.bin")
	f, err := s.fs.Create(path)
	if err != nil {
		return merr.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	var writeErr error
	s.tree.Ascend(func(item btree.Item) bool {
		e := item.(entry)
		if writeErr = writeFrame(f, []byte(e.key)); writeErr != nil {
			return false
		}
		if writeErr = writeFrame(f, e.value); writeErr != nil {
			return false
		}
		return true
	})
	return writeErr
}

// LoadFromDisk loads a previously persisted store from root/payloads.bin,
// or returns an empty store if none exists yet.
func LoadFromDisk(fs afero.Fs, root, collectionLabel string, cacheSize int) (*Store, error) {
	s, err := NewStore(fs, root, collectionLabel, cacheSize)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, "payloads.bin")
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, merr.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	for {
		key, err := readFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, merr.Wrap(err, "read payload key frame")
		}
		value, err := readFrame(f)
		if err != nil {
			return nil, merr.Wrap(err, "read payload value frame")
		}
		s.tree.ReplaceOrInsert(entry{key: string(key), value: value})
	}
	return s, nil
}

func writeFrame(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
