package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "directord_workers_total",
			Help: "Total number of known workers by liveness state",
		},
		[]string{"state"},
	)

	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directord_jobs_total",
			Help: "Total number of jobs by verb and terminal outcome",
		},
		[]string{"verb", "outcome"},
	)

	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "directord_jobs_in_flight",
			Help: "Number of jobs accepted but not yet terminal",
		},
	)

	JobExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directord_job_execution_duration_seconds",
			Help:    "Per-worker job execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	JobRoundtripDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directord_job_roundtrip_duration_seconds",
			Help:    "Coordinator-observed roundtrip duration from dispatch to terminal control byte",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directord_cache_hits_total",
			Help: "Total number of fingerprint cache lookups by result",
		},
		[]string{"result"},
	)

	TransfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directord_transfers_total",
			Help: "Total number of chunked file transfers by outcome",
		},
		[]string{"outcome"},
	)

	TransferBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directord_transfer_bytes_total",
			Help: "Total number of bytes moved over the backend channel",
		},
	)

	BarrierWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directord_barrier_wait_duration_seconds",
			Help:    "Time spent blocked on a JOB_WAIT/QUERY_WAIT barrier",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	HeartbeatReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directord_heartbeat_reconnects_total",
			Help: "Total number of worker heartbeat channel reconnects",
		},
	)

	QueryFanoutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directord_query_fanout_total",
			Help: "Total number of QUERY results re-broadcast as synthetic ARG jobs",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobsInFlight)
	prometheus.MustRegister(JobExecutionDuration)
	prometheus.MustRegister(JobRoundtripDuration)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(TransfersTotal)
	prometheus.MustRegister(TransferBytesTotal)
	prometheus.MustRegister(BarrierWaitDuration)
	prometheus.MustRegister(HeartbeatReconnectsTotal)
	prometheus.MustRegister(QueryFanoutTotal)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against histograms.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
