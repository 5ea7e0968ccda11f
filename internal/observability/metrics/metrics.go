package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics exposes counters/histograms for calendar sync runs.
type SyncMetrics struct {
	runsTotal       *prometheus.CounterVec
	fetchTotal      *prometheus.CounterVec
	fetchLatency    *prometheus.HistogramVec
	classifiedTotal *prometheus.CounterVec
	kpiCacheTotal   *prometheus.CounterVec
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podology",
			Name:      "sync_runs_total",
			Help:      "Total full sync runs by outcome",
		}, []string{"status"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podology",
			Subsystem: "calendar",
			Name:      "fetch_total",
			Help:      "Total per-provider calendar fetches",
		}, []string{"provider", "status"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "podology",
			Subsystem: "calendar",
			Name:      "fetch_seconds",
			Help:      "Latency of per-provider calendar fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		classifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podology",
			Name:      "events_classified_total",
			Help:      "Calendar events by classification kind",
		}, []string{"kind"}),
		kpiCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podology",
			Name:      "kpi_cache_total",
			Help:      "KPI snapshot cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.fetchTotal, m.fetchLatency, m.classifiedTotal, m.kpiCacheTotal)
	return m
}

// ObserveFetch records one provider fetch. It satisfies pipeline.FetchObserver.
func (m *SyncMetrics) ObserveFetch(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetchTotal.WithLabelValues(provider, status).Inc()
	m.fetchLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveRun records a finished sync run; status is ok, partial or failed.
func (m *SyncMetrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *SyncMetrics) ObserveClassified(totals map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range totals {
		if n > 0 {
			m.classifiedTotal.WithLabelValues(kind).Add(float64(n))
		}
	}
}

func (m *SyncMetrics) ObserveKPICache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.kpiCacheTotal.WithLabelValues(result).Inc()
}
