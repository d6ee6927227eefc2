package dex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repodex",
		Subsystem: "index",
		Name:      "operations_total",
		Help:      "Number of mutating index operations, by index kind and operation.",
	}, []string{"index", "op"})
	slotReuseMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repodex",
		Subsystem: "index",
		Name:      "slot_reuse_total",
		Help:      "Number of adds that reused a tombstoned slot instead of appending, by index kind.",
	}, []string{"index"})
	resizeMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repodex",
		Subsystem: "index",
		Name:      "resize_total",
		Help:      "Number of completed index file rewrites, by index kind.",
	}, []string{"index"})
	resizeSecondsMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "repodex",
		Subsystem: "index",
		Name:      "resize_seconds",
		Help:      "Distribution of time spent rewriting an index file during a resize, by index kind.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"index"})
)
