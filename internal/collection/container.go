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

package collection

import (
	"sync"

	"github.com/spf13/afero"

	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/paramtable"
)

// Container is the top-level registry of collections, addressed by name.
// Each collection gets its own RW lock inside Collection itself; Container
// only protects the name -> *Collection map, so two requests against
// different collections never contend on this lock for long.
type Container struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	fs          afero.Fs
	dataDir     string
	cfg         paramtable.Config
}

// NewContainer creates an empty registry rooted at cfg.DataDir.
func NewContainer(fs afero.Fs, cfg paramtable.Config) *Container {
	return &Container{
		collections: make(map[string]*Collection),
		fs:          fs,
		dataDir:     cfg.DataDir,
		cfg:         cfg,
	}
}

// Create registers a new collection, failing if the name is already taken.
func (c *Container) Create(info Info) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.collections[info.Name]; exists {
		return nil, merr.Wrapf(merr.ErrCollectionExists, "collection %q", info.Name)
	}

	col, err := Open(c.fs, c.dataDir, info, c.cfg)
	if err != nil {
		return nil, err
	}
	c.collections[info.Name] = col
	return col, nil
}

// Get returns the named collection, or ErrCollectionNotFound.
func (c *Container) Get(name string) (*Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.collections[name]
	if !ok {
		return nil, merr.Wrapf(merr.ErrCollectionNotFound, "collection %q", name)
	}
	return col, nil
}

// List returns every registered collection name.
func (c *Container) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.collections))
	for name := range c.collections {
		out = append(out, name)
	}
	return out
}

// Delete unregisters a collection. Its on-disk data is left in place; a
// future garbage-collection pass over dataDir is the natural place to
// reclaim it.
func (c *Container) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.collections[name]; !ok {
		return merr.Wrapf(merr.ErrCollectionNotFound, "collection %q", name)
	}
	delete(c.collections, name)
	return nil
}

// PersistAll checkpoints every collection's segments, payload store and
// WAL; called on paramtable.Config.BackupInterval.
func (c *Container) PersistAll() error {
	c.mu.RLock()
	cols := make([]*Collection, 0, len(c.collections))
	for _, col := range c.collections {
		cols = append(cols, col)
	}
	c.mu.RUnlock()

	for _, col := range cols {
		if err := col.PersistSegments(c.fs, c.dataDir); err != nil {
			return merr.Wrapf(err, "persist collection %s", col.Name())
		}
	}
	return nil
}
