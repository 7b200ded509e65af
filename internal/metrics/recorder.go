package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder keeps engine counters as atomics for /v1/stats and mirrors them
// into Prometheus collectors for /metrics
type Recorder struct {
	batches      atomic.Int64
	candidates   atomic.Int64
	queries      atomic.Int64
	cacheLookups atomic.Int64
	cacheHits    atomic.Int64
	fallbacks    atomic.Int64
	evidence     atomic.Int64
	relevanceSum atomic.Uint64 // float64 bits
	domains      atomic.Int64  // Unique domains summed over batches

	registry      *prometheus.Registry
	queriesTotal  *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
	fallbackTotal prometheus.Counter
	relevance     prometheus.Histogram
	batchesTotal  prometheus.Counter
	batchDuration prometheus.Histogram
}

// NewRecorder creates a recorder with its own Prometheus registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidex_queries_total",
			Help: "Search queries sent to a live provider.",
		}, []string{"provider"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidex_cache_lookups_total",
			Help: "Result cache lookups by outcome.",
		}, []string{"result"}),
		fallbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evidex_fallback_total",
			Help: "Queries answered by the fallback catalog.",
		}),
		relevance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evidex_evidence_relevance",
			Help:    "Relevance of returned evidence URLs.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evidex_batches_total",
			Help: "Completed batches.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evidex_batch_duration_seconds",
			Help:    "Wall time of completed batches.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}

	r.registry.MustRegister(
		r.queriesTotal,
		r.cacheTotal,
		r.fallbackTotal,
		r.relevance,
		r.batchesTotal,
		r.batchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// QueryIssued counts one live provider call
func (r *Recorder) QueryIssued(provider string) {
	r.queries.Add(1)
	r.queriesTotal.WithLabelValues(provider).Inc()
}

// CacheLookup counts one result cache lookup
func (r *Recorder) CacheLookup(hit bool) {
	r.cacheLookups.Add(1)
	result := "miss"
	if hit {
		r.cacheHits.Add(1)
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(result).Inc()
}

// FallbackUsed counts one query answered by the fallback catalog
func (r *Recorder) FallbackUsed() {
	r.fallbacks.Add(1)
	r.fallbackTotal.Inc()
}

// BatchCompleted records a finished batch
func (r *Recorder) BatchCompleted(result model.BatchResult, duration time.Duration) {
	r.batches.Add(1)
	r.candidates.Add(int64(len(result.Candidates)))
	r.domains.Add(int64(result.Metrics.UniqueDomainCount))
	r.batchesTotal.Inc()
	r.batchDuration.Observe(duration.Seconds())

	for _, c := range result.Candidates {
		for _, ev := range c.EvidenceURLs {
			r.evidence.Add(1)
			r.addRelevance(ev.RelevanceScore)
			r.relevance.Observe(ev.RelevanceScore)
		}
	}
}

func (r *Recorder) addRelevance(v float64) {
	for {
		old := r.relevanceSum.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if r.relevanceSum.CompareAndSwap(old, next) {
			return
		}
	}
}

// Snapshot returns the current engine stats
func (r *Recorder) Snapshot() model.EngineStats {
	stats := model.EngineStats{
		Batches:          r.batches.Load(),
		Candidates:       r.candidates.Load(),
		QueriesIssued:    r.queries.Load(),
		CacheLookups:     r.cacheLookups.Load(),
		EvidenceReturned: r.evidence.Load(),
	}

	if stats.CacheLookups > 0 {
		stats.CacheHitRate = ratio(r.cacheHits.Load(), stats.CacheLookups)
	}
	// Fallbacks over every query that needed an answer beyond the cache
	if answered := r.fallbacks.Load() + stats.QueriesIssued; answered > 0 {
		stats.FallbackRate = ratio(r.fallbacks.Load(), answered)
	}
	if stats.EvidenceReturned > 0 {
		mean := math.Float64frombits(r.relevanceSum.Load()) / float64(stats.EvidenceReturned)
		stats.AverageRelevance = math.Round(mean*1000) / 1000
		stats.UniqueDomainRate = ratio(r.domains.Load(), stats.EvidenceReturned)
	}
	return stats
}

// Handler serves the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying Prometheus registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func ratio(n, d int64) float64 {
	return math.Round(float64(n)/float64(d)*1000) / 1000
}
