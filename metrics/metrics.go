// Copyright 2026 The Kvfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes kvfs's operating statistics — operation latency,
// cache hit/miss counts, and allocator churn — as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds kvfs's collectors. The engine accepts a Metrics through
// engine.Options but does not record anything into it.
type Metrics struct {
	OpDuration     *prometheus.HistogramVec
	OpErrors       *prometheus.CounterVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	BlocksFreed    prometheus.Counter
	BlocksReused   prometheus.Counter
	InodesFreed    prometheus.Counter
	InodesReused   prometheus.Counter
	OpenFiles      prometheus.Gauge
}

// New constructs a Metrics and registers its collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kvfs",
			Name:      "op_duration_seconds",
			Help:      "Latency of filesystem operations by name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		OpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "op_errors_total",
			Help:      "Count of filesystem operations that returned an error, by op and error kind.",
		}, []string{"op", "kind"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "cache_hits_total",
			Help:      "Count of cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "cache_misses_total",
			Help:      "Count of cache misses by cache name.",
		}, []string{"cache"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "cache_evictions_total",
			Help:      "Count of LRU evictions by cache name.",
		}, []string{"cache"}),
		BlocksFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "blocks_freed_total",
			Help:      "Count of data blocks released to the free-list.",
		}),
		BlocksReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "blocks_reused_total",
			Help:      "Count of data blocks acquired from the free-list rather than a fresh allocation.",
		}),
		InodesFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "inodes_freed_total",
			Help:      "Count of inode numbers released to the free-list.",
		}),
		InodesReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kvfs",
			Name:      "inodes_reused_total",
			Help:      "Count of inode numbers acquired from the free-list rather than a fresh allocation.",
		}),
		OpenFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kvfs",
			Name:      "open_files",
			Help:      "Number of currently open file descriptors.",
		}),
	}

	reg.MustRegister(
		m.OpDuration, m.OpErrors, m.CacheHits, m.CacheMisses, m.CacheEvictions,
		m.BlocksFreed, m.BlocksReused, m.InodesFreed, m.InodesReused, m.OpenFiles,
	)
	return m
}

// ObserveOp records how long op took and, when errKind is non-empty,
// increments OpErrors under that kind label.
func (m *Metrics) ObserveOp(op string, seconds float64, errKind string) {
	m.OpDuration.WithLabelValues(op).Observe(seconds)
	if errKind != "" {
		m.OpErrors.WithLabelValues(op, errKind).Inc()
	}
}

func (m *Metrics) RecordCacheHit(cache string)      { m.CacheHits.WithLabelValues(cache).Inc() }
func (m *Metrics) RecordCacheMiss(cache string)     { m.CacheMisses.WithLabelValues(cache).Inc() }
func (m *Metrics) RecordCacheEviction(cache string) { m.CacheEvictions.WithLabelValues(cache).Inc() }
