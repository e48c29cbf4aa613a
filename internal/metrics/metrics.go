// Package metrics exposes the recommendation engine's Prometheus
// instrumentation. Unlike a package of global promauto vars, every
// Collector owns its own prometheus.Registry so that more than one
// Recommender (as tests routinely create) can exist in a process
// without a duplicate-registration panic.
package metrics

import (
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every counter/gauge/histogram the recommendation
// pipeline reports, plus the running totals needed to compute the
// derived Snapshot fields (average score, throughput).
type Collector struct {
	registry *prometheus.Registry

	RecommendationsTotal   prometheus.Counter
	RecommendationDuration prometheus.Histogram
	ImagesProcessedTotal   *prometheus.CounterVec // label: "result" = "success"|"failure"
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	ArtistsExcludedTotal   prometheus.Counter
	IndexSize              prometheus.Gauge

	start time.Time

	scoreSum   float64
	scoreCount int64
}

// NewCollector builds a Collector registered against its own private
// registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		RecommendationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfoliomatch_recommendations_total",
			Help: "Total number of recommend() calls served.",
		}),
		RecommendationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfoliomatch_recommendation_duration_seconds",
			Help:    "Duration of recommend() calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		ImagesProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfoliomatch_images_processed_total",
			Help: "Total number of portfolio images fetched and encoded, by result.",
		}, []string{"result"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfoliomatch_cache_hits_total",
			Help: "Total number of embedding cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfoliomatch_cache_misses_total",
			Help: "Total number of embedding cache misses.",
		}),
		ArtistsExcludedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfoliomatch_artists_excluded_total",
			Help: "Total number of artists excluded from the index during ingestion due to zero usable images.",
		}),
		IndexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfoliomatch_index_size",
			Help: "Current number of artists held in the recommender's index.",
		}),
		start: startTime(),
	}
	reg.MustRegister(
		c.RecommendationsTotal,
		c.RecommendationDuration,
		c.ImagesProcessedTotal,
		c.CacheHitsTotal,
		c.CacheMissesTotal,
		c.ArtistsExcludedTotal,
		c.IndexSize,
	)
	return c
}

// startTime exists so tests can override process start accounting
// without calling time.Now() at package scope during init.
var startTime = time.Now

// Registry returns the private registry, e.g. for exposing
// /metrics from internal/httpapi.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordRecommendation records one recommend() call's latency.
func (c *Collector) RecordRecommendation(d time.Duration) {
	c.RecommendationsTotal.Inc()
	c.RecommendationDuration.Observe(d.Seconds())
}

// RecordImageProcessed records the outcome of fetching+encoding a
// single portfolio image.
func (c *Collector) RecordImageProcessed(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.ImagesProcessedTotal.WithLabelValues(result).Inc()
}

// RecordCacheHit records an embedding cache hit.
func (c *Collector) RecordCacheHit() { c.CacheHitsTotal.Inc() }

// RecordCacheMiss records an embedding cache miss.
func (c *Collector) RecordCacheMiss() { c.CacheMissesTotal.Inc() }

// RecordArtistExcluded records an artist dropped from the index during
// ingestion for lacking any usable embedding.
func (c *Collector) RecordArtistExcluded() { c.ArtistsExcludedTotal.Inc() }

// RecordScore folds a per-artist similarity score into the running
// average reported by Snapshot.
func (c *Collector) RecordScore(score float64) {
	c.scoreSum += score
	c.scoreCount++
}

// SetIndexSize updates the current artist count gauge.
func (c *Collector) SetIndexSize(n int) { c.IndexSize.Set(float64(n)) }

// Snapshot is a point-in-time view of the collector. It reports raw
// cache hit/miss and image success/failure counts; it does not carry a
// precomputed cache hit rate, processing success rate, or average
// recommendation latency.
type Snapshot struct {
	TotalRecommendations   int64
	AverageSimilarityScore float64
	CacheHits              int64
	CacheMisses            int64
	ImagesProcessedSuccess int64
	ImagesProcessedFailure int64
	ArtistsExcluded        int64
	IndexSize              int
	UptimeSeconds          float64
	RecommendationsPerSec  float64
}

// Snapshot gathers a point-in-time view across every metric for
// Recommender.Stats().
func (c *Collector) Snapshot() Snapshot {
	total := counterValue(c.RecommendationsTotal)
	uptime := time.Since(c.start).Seconds()
	var avgScore, throughput float64
	if c.scoreCount > 0 {
		avgScore = c.scoreSum / float64(c.scoreCount)
	}
	if uptime > 0 {
		throughput = total / uptime
	}
	return Snapshot{
		TotalRecommendations:   int64(total),
		AverageSimilarityScore: avgScore,
		CacheHits:              int64(counterValue(c.CacheHitsTotal)),
		CacheMisses:            int64(counterValue(c.CacheMissesTotal)),
		ImagesProcessedSuccess: int64(counterVecValue(c.ImagesProcessedTotal, "success")),
		ImagesProcessedFailure: int64(counterVecValue(c.ImagesProcessedTotal, "failure")),
		ArtistsExcluded:        int64(counterValue(c.ArtistsExcludedTotal)),
		IndexSize:              int(gaugeValue(c.IndexSize)),
		UptimeSeconds:          uptime,
		RecommendationsPerSec:  throughput,
	}
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func counterVecValue(v *prometheus.CounterVec, label string) float64 {
	c, err := v.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	return counterValue(c)
}
