package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempo_memo_hits_total",
		Help: "The total number of memoizer calls served from the store",
	}, []string{"name"})

	missesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempo_memo_misses_total",
		Help: "The total number of memoizer calls that invoked the underlying loader",
	}, []string{"name"})

	evictionsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tempo_lru_evictions_total",
		Help: "The total number of entries evicted from LRU stores",
	})

	expirationsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempo_gate_expirations_total",
		Help: "The total number of whole-store invalidations triggered by elapsed gate windows",
	}, []string{"name"})

	snapshotFailuresMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tempo_snapshot_failures_total",
		Help: "The total number of non-fatal snapshot blob read/write failures",
	}, []string{"kind"})
)
