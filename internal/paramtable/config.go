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

// Package paramtable centralizes every tunable constant into a single
// Config value threaded through DB, Collection and SegmentHolder, rather
// than compiled-in literals scattered across the call sites that need them.
package paramtable

import (
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const envPrefix = "VECTORDB"

// IndexSpec mirrors the original HNSW build/search parameters.
type IndexSpec struct {
	MEdges         int
	EfConstruction int
	EfSearch       int
	IndexThreshold int
}

// Config is the single value threaded through DB, Collection and
// SegmentHolder.
type Config struct {
	MaxEntriesTinyMap   int
	MaxPointsPerRequest int
	MaxJSONRequestSize  int64
	MaxMemoryPoolPoints int
	PayloadCacheBytes   int64
	BackupInterval      time.Duration

	Index IndexSpec

	DataDir    string
	ListenAddr string
}

// Default returns the configuration baseline used absent any overrides.
func Default() Config {
	return Config{
		MaxEntriesTinyMap:   8,
		MaxPointsPerRequest: 1000,
		MaxJSONRequestSize:  32 * 1024 * 1024,
		MaxMemoryPoolPoints: 10000,
		PayloadCacheBytes:   128 * 1024 * 1024,
		BackupInterval:      5 * time.Hour,
		Index: IndexSpec{
			MEdges:         16,
			EfConstruction: 200,
			EfSearch:       64,
			IndexThreshold: 10000,
		},
		DataDir:    "./VectorDB",
		ListenAddr: ":6655",
	}
}

// Load layers an optional YAML file and environment variables (prefixed
// VECTORDB_) over the defaults, mirroring the teacher's BaseTable/viper
// bootstrap in internal/util/paramtable.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	overlay(&cfg, v)
	return cfg, nil
}

func overlay(cfg *Config, v *viper.Viper) {
	if v.IsSet("max_entries_tinymap") {
		cfg.MaxEntriesTinyMap = cast.ToInt(v.Get("max_entries_tinymap"))
	}
	if v.IsSet("max_points_per_request") {
		cfg.MaxPointsPerRequest = cast.ToInt(v.Get("max_points_per_request"))
	}
	if v.IsSet("max_json_request_size") {
		cfg.MaxJSONRequestSize = cast.ToInt64(v.Get("max_json_request_size"))
	}
	if v.IsSet("max_memorypool_points") {
		cfg.MaxMemoryPoolPoints = cast.ToInt(v.Get("max_memorypool_points"))
	}
	if v.IsSet("payload_cache_bytes") {
		cfg.PayloadCacheBytes = cast.ToInt64(v.Get("payload_cache_bytes"))
	}
	if v.IsSet("backup_interval") {
		cfg.BackupInterval = cast.ToDuration(v.Get("backup_interval"))
	}
	if v.IsSet("index.m_edges") {
		cfg.Index.MEdges = cast.ToInt(v.Get("index.m_edges"))
	}
	if v.IsSet("index.ef_construction") {
		cfg.Index.EfConstruction = cast.ToInt(v.Get("index.ef_construction"))
	}
	if v.IsSet("index.ef_search") {
		cfg.Index.EfSearch = cast.ToInt(v.Get("index.ef_search"))
	}
	if v.IsSet("index.index_threshold") {
		cfg.Index.IndexThreshold = cast.ToInt(v.Get("index.index_threshold"))
	}
	if v.IsSet("data_dir") {
		cfg.DataDir = cast.ToString(v.Get("data_dir"))
	}
	if v.IsSet("listen_addr") {
		cfg.ListenAddr = cast.ToString(v.Get("listen_addr"))
	}
}
