// Package metrics 検索エンジンのPrometheusメトリクス
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gymsearch"

var (
	// TileCacheLookups タイルキャッシュ参照の結果 (hit, miss, expired, error)
	TileCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_cache_lookups_total",
			Help:      "Tile cache lookups by result",
		},
		[]string{"source", "result"},
	)

	// TileCacheBatchSize 1回の検索でまとめて書き込んだキャッシュ件数
	TileCacheBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_cache_batch_size",
			Help:      "Number of tile cache entries written per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// ProviderCalls プロバイダ呼び出し回数
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Place provider calls by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// ProviderCallDuration プロバイダ呼び出しの所要時間（待ち時間を含む）
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of place provider calls including throttle wait",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// TileJobs ワーカーが処理したジョブ数
	TileJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_jobs_total",
			Help:      "Tile jobs processed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// SearchDuration 検索全体の所要時間
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of venue searches",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"timed_out"},
	)

	// SearchVenues 検索結果の件数
	SearchVenues = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_venues",
			Help:      "Number of venues returned per search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

// RecordCacheLookup キャッシュ参照を記録
func RecordCacheLookup(source, result string) {
	TileCacheLookups.WithLabelValues(source, result).Inc()
}

// RecordProviderCall プロバイダ呼び出しを記録
func RecordProviderCall(endpoint, status string, seconds float64) {
	ProviderCalls.WithLabelValues(endpoint, status).Inc()
	ProviderCallDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordTileJob ジョブ処理を記録
func RecordTileJob(kind, outcome string) {
	TileJobs.WithLabelValues(kind, outcome).Inc()
}

// RecordSearch 検索1回分を記録
func RecordSearch(seconds float64, venues int, timedOut bool) {
	label := "false"
	if timedOut {
		label = "true"
	}
	SearchDuration.WithLabelValues(label).Observe(seconds)
	SearchVenues.Observe(float64(venues))
}
