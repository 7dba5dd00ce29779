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
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/paramtable"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	cfg := paramtable.Default()
	cfg.DataDir = t.TempDir()
	cfg.MaxMemoryPoolPoints = 1000
	return NewContainer(afero.NewOsFs(), cfg)
}

func sampleInfo(name string) Info {
	return Info{
		Name: name,
		Id:   vectortypes.GenerateCollectionId(),
		VecSpecs: map[vectortypes.VectorName]vectortypes.VectorSpec{
			"default": {Dim: 4, Metric: vectortypes.MetricL2},
		},
		IndexSpec: paramtable.IndexSpec{MEdges: 8, EfConstruction: 32, EfSearch: 16, IndexThreshold: 1000},
	}
}

func TestCreateAndGet(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.Create(sampleInfo("widgets"))
	require.NoError(t, err)

	col, err := c.Get("widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets", col.Name())
}

func TestCreateDuplicateNameFails(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.Create(sampleInfo("widgets"))
	require.NoError(t, err)

	_, err = c.Create(sampleInfo("widgets"))
	assert.ErrorIs(t, err, merr.ErrCollectionExists)
}

func TestGetUnknownCollection(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.Get("missing")
	assert.ErrorIs(t, err, merr.ErrCollectionNotFound)
}

func TestListReturnsAllNames(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.Create(sampleInfo("a"))
	require.NoError(t, err)
	_, err = c.Create(sampleInfo("b"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, c.List())
}

func TestDeleteRemovesFromRegistry(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.Create(sampleInfo("widgets"))
	require.NoError(t, err)

	require.NoError(t, c.Delete("widgets"))
	_, err = c.Get("widgets")
	assert.ErrorIs(t, err, merr.ErrCollectionNotFound)
}

func TestDeleteUnknownCollectionFails(t *testing.T) {
	c := newTestContainer(t)
	err := c.Delete("missing")
	assert.ErrorIs(t, err, merr.ErrCollectionNotFound)
}

func TestPersistAllSucceedsWithNoCollections(t *testing.T) {
	c := newTestContainer(t)
	assert.NoError(t, c.PersistAll())
}
