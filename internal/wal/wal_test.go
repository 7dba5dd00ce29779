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

package wal

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// openTestWAL uses a real OS filesystem rooted at t.TempDir(), since
// Append's cross-process guard locks a real file at <path>.lock
// regardless of which afero.Fs backs the log file itself.
func openTestWAL(t *testing.T) *WAL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coll.wal")
	w, err := Open(afero.NewOsFs(), path)
	require.NoError(t, err)
	return w
}

func sampleEntry(id vectortypes.PointId) Entry {
	return Entry{
		Type:           EntryInsert,
		CollectionName: "coll",
		PointId:        id,
		Vectors: map[vectortypes.VectorName]vectortypes.Vector{
			"default": {1, 2, 3, 4},
		},
	}
}

func TestAppendAndReplayRoundTrip(t *testing.T) {
	w := openTestWAL(t)

	require.NoError(t, w.Append(sampleEntry(vectortypes.StringId("a"))))
	require.NoError(t, w.Append(sampleEntry(vectortypes.Uint64Id(7))))

	entries, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "coll", entries[0].CollectionName)
	assert.Equal(t, vectortypes.StringId("a"), entries[0].PointId)
	assert.Equal(t, vectortypes.Uint64Id(7), entries[1].PointId)
	assert.Equal(t, vectortypes.Vector{1, 2, 3, 4}, entries[1].Vectors["default"])
}

func TestReplayEmptyLogReturnsNoEntries(t *testing.T) {
	w := openTestWAL(t)
	entries, err := w.Replay()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplayStopsAtCorruptTrailingFrame(t *testing.T) {
	w := openTestWAL(t)
	require.NoError(t, w.Append(sampleEntry(vectortypes.StringId("good"))))

	fs := afero.NewOsFs()

	// append a truncated/garbage frame directly, bypassing Append's framing
	raw, err := afero.ReadFile(fs, w.path)
	require.NoError(t, err)
	garbage := append(append([]byte{}, raw...), []byte{0, 0, 0, 99, 1, 2, 3}...)
	require.NoError(t, afero.WriteFile(fs, w.path, garbage, 0o644))

	entries, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, entries, 1, "the valid entry before the corrupt frame must still be recovered")
	assert.Equal(t, vectortypes.StringId("good"), entries[0].PointId)
}

func TestTruncateFullEmptiesLog(t *testing.T) {
	w := openTestWAL(t)
	require.NoError(t, w.Append(sampleEntry(vectortypes.StringId("a"))))
	require.NoError(t, w.Truncate(TruncateFull, 0))

	entries, err := w.Replay()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTruncateKeepLastN(t *testing.T) {
	w := openTestWAL(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Append(sampleEntry(vectortypes.Uint64Id(uint64(i)))))
	}
	require.NoError(t, w.Truncate(TruncateKeepLastN, 2))

	entries, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, vectortypes.Uint64Id(3), entries[0].PointId)
	assert.Equal(t, vectortypes.Uint64Id(4), entries[1].PointId)
}

func TestMultipleEntriesPreserveVectorContent(t *testing.T) {
	w := openTestWAL(t)
	e := sampleEntry(vectortypes.StringId("multi"))
	e.Vectors["other"] = vectortypes.Vector{-1.5, 2.25}
	require.NoError(t, w.Append(e))

	entries, err := w.Replay()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, vectortypes.Vector{-1.5, 2.25}, entries[0].Vectors["other"])
}
