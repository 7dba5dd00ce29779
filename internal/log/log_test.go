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

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplaceGlobalsRestoresPrevious(t *testing.T) {
	before := get()

	core, logs := observer.New(zap.InfoLevel)
	restore := ReplaceGlobals(zap.New(core))

	Info("hello", zap.String("k", "v"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)

	restore()
	assert.Equal(t, before, get())
}

func TestWithAttachesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := ReplaceGlobals(zap.New(core))
	defer restore()

	child := With(zap.String("component", "wal"))
	child.Warn("replaying")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "replaying", entry.Message)
	assert.Equal(t, "wal", entry.ContextMap()["component"])
}

func TestLevelHelpersDoNotPanic(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	restore := ReplaceGlobals(zap.New(core))
	defer restore()

	assert.NotPanics(t, func() {
		Debug("d")
		Info("i")
		Warn("w")
		Error("e")
	})
}

func TestSyncDoesNotError(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	restore := ReplaceGlobals(zap.New(core))
	defer restore()

	assert.NoError(t, Sync())
}
