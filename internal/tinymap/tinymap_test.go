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

package tinymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertGetOverwrite(t *testing.T) {
	m := New[string, int](4)
	require.True(t, m.Insert("a", 1))
	require.True(t, m.Insert("b", 2))
	require.True(t, m.Insert("a", 10))

	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, m.Size())
}

func TestInsertFullRejectsNewKey(t *testing.T) {
	m := New[string, int](2)
	require.True(t, m.Insert("a", 1))
	require.True(t, m.Insert("b", 2))
	assert.False(t, m.Insert("c", 3))
	assert.Equal(t, 2, m.Size())

	// overwriting an existing key still works at capacity
	assert.True(t, m.Insert("a", 100))
}

func TestEraseCompacts(t *testing.T) {
	m := New[string, int](4)
	m.Insert("a", 1)
	m.Insert("b", 2)
	m.Insert("c", 3)

	require.True(t, m.Erase("a"))
	assert.Equal(t, 2, m.Size())
	assert.False(t, m.Contains("a"))
	assert.True(t, m.Contains("b"))
	assert.True(t, m.Contains("c"))

	assert.False(t, m.Erase("a"))
}

func TestClampsCapacityTo8(t *testing.T) {
	m := New[string, int](100)
	assert.Equal(t, 8, m.Cap())
	m2 := New[string, int](0)
	assert.Equal(t, 8, m2.Cap())
}

func TestEachStopsEarly(t *testing.T) {
	m := New[string, int](4)
	m.Insert("a", 1)
	m.Insert("b", 2)
	m.Insert("c", 3)

	seen := 0
	m.Each(func(k string, v int) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestKeysAndClone(t *testing.T) {
	m := New[string, int](4)
	m.Insert("a", 1)
	m.Insert("b", 2)

	keys := m.Keys()
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	clone := m.Clone()
	clone.Insert("c", 3)
	assert.Equal(t, 2, m.Size())
	assert.Equal(t, 3, clone.Size())
}

func TestClear(t *testing.T) {
	m := New[string, int](4)
	m.Insert("a", 1)
	m.Clear()
	assert.True(t, m.Empty())
	assert.Equal(t, 4, m.Cap())
}
