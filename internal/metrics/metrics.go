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

// Package metrics registers the Prometheus collectors for the engine,
// named the way the teacher's internal/metrics package names its
// collectors (component_verb_unit).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	InsertLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "vectordb_insert_latency_seconds",
			Help: "Latency of a single point insert, by collection.",
		},
		[]string{"collection"},
	)

	SearchLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "vectordb_search_latency_seconds",
			Help: "Latency of a top-k search fan-out, by collection.",
		},
		[]string{"collection"},
	)

	PromotionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectordb_promotion_total",
			Help: "Count of ActiveSegment -> ImmutableSegment promotions.",
		},
		[]string{"collection"},
	)

	WALFsyncLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "vectordb_wal_fsync_latency_seconds",
			Help: "Latency of a WAL append+fsync, by collection.",
		},
		[]string{"collection"},
	)

	PayloadCacheHitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vectordb_payload_cache_hit_total",
			Help: "Payload store block-cache hits vs misses.",
		},
		[]string{"collection", "result"},
	)

	ActiveSegmentPoints = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vectordb_active_segment_points",
			Help: "Current point count of the active segment, by collection.",
		},
		[]string{"collection"},
	)
)

func init() {
	prometheus.MustRegister(
		InsertLatencySeconds,
		SearchLatencySeconds,
		PromotionTotal,
		WALFsyncLatencySeconds,
		PayloadCacheHitTotal,
		ActiveSegmentPoints,
	)
}
