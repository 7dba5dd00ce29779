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

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerryli99/vectordb/internal/vectortypes"
)

func TestAddAndGetVector(t *testing.T) {
	p := NewPoint(vectortypes.StringId("a"), 2)
	assert.True(t, p.AddVector("image", []float32{1, 2}))
	assert.True(t, p.AddVector("text", []float32{3, 4}))
	assert.Equal(t, 2, p.NumVectors())

	v, ok := p.GetVector("image")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, v)
}

func TestAddVectorRejectsAtCapacity(t *testing.T) {
	p := NewPoint(vectortypes.StringId("a"), 1)
	assert.True(t, p.AddVector("image", []float32{1}))
	assert.False(t, p.AddVector("text", []float32{2}))
	assert.Equal(t, 1, p.NumVectors())
}

func TestAllVectors(t *testing.T) {
	p := NewPoint(vectortypes.StringId("a"), 4)
	p.AddVector("image", []float32{1})
	p.AddVector("text", []float32{2})

	all := p.AllVectors()
	assert.Len(t, all, 2)
	assert.Equal(t, []float32{1}, all["image"])
	assert.Equal(t, []float32{2}, all["text"])
}
