package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics provides observability for the anchoring pipeline and the HTTP API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	QueueDepth    prometheus.Gauge
	QueueWait     prometheus.Histogram
	QueueRun      prometheus.Histogram
	QueueJobs     *prometheus.CounterVec
	Anchors       *prometheus.CounterVec
	IndexSkipped  *prometheus.CounterVec
	IndexDuration *prometheus.HistogramVec
	Mints         *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "househelp_tx_queue_depth",
			Help: "Ledger jobs waiting for the platform identity",
		}),
		QueueWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "househelp_tx_queue_wait_seconds",
			Help:    "Time a ledger job spent queued before running",
			Buckets: latencyBuckets,
		}),
		QueueRun: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "househelp_tx_queue_run_seconds",
			Help:    "Duration of a ledger job including submission",
			Buckets: latencyBuckets,
		}),
		QueueJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "househelp_tx_queue_jobs_total",
			Help: "Ledger jobs by outcome",
		}, []string{"outcome"}),
		Anchors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "househelp_anchors_total",
			Help: "Anchoring attempts by namespace and outcome",
		}, []string{"namespace", "outcome"}),
		IndexSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "househelp_index_skipped_total",
			Help: "Pointers or records skipped during index reconstruction",
		}, []string{"prefix"}),
		IndexDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "househelp_index_duration_seconds",
			Help:    "Duration of index reconstruction",
			Buckets: latencyBuckets,
		}, []string{"prefix"}),
		Mints: f.NewCounterVec(prometheus.CounterOpts{
			Name: "househelp_certificate_mints_total",
			Help: "Certificate mints by outcome",
		}, []string{"outcome"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "househelp_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: latencyBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) SetDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) ObserveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.QueueWait.Observe(d.Seconds())
}

func (m *Metrics) ObserveRun(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueueRun.Observe(d.Seconds())
	m.QueueJobs.WithLabelValues(outcome(err)).Inc()
}

// IncrementAnchor records an anchoring outcome.
func (m *Metrics) IncrementAnchor(namespace, result string) {
	if m == nil {
		return
	}
	m.Anchors.WithLabelValues(namespace, result).Inc()
}

// AddIndexSkipped records pointers or records the index could not use.
func (m *Metrics) AddIndexSkipped(prefix string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.IndexSkipped.WithLabelValues(prefix).Add(float64(n))
}

// ObserveIndex records the duration of a listing. Call with time.Now() at the start.
func (m *Metrics) ObserveIndex(prefix string, start time.Time) {
	if m == nil {
		return
	}
	m.IndexDuration.WithLabelValues(prefix).Observe(time.Since(start).Seconds())
}

// IncrementMint records a mint outcome.
func (m *Metrics) IncrementMint(err error) {
	if m == nil {
		return
	}
	m.Mints.WithLabelValues(outcome(err)).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
