// Package metrics records mirror run counters in a Prometheus registry.
//
// A mirror run is a batch job, so nothing is served: the registry is written
// once at the end of the run in the text exposition format, ready for the
// node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gitmirror"

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder holds the run metrics
type Recorder struct {
	registry *prometheus.Registry

	repositories  *prometheus.CounterVec
	branches      *prometheus.CounterVec
	cloneAttempts *prometheus.CounterVec
	apiRetries    *prometheus.CounterVec
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
}

// New creates a Recorder backed by registry. A nil registry gets a fresh
// one so runs never touch the global default registry.
func New(registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	r := &Recorder{
		registry: registry,
		repositories: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repositories_total",
				Help:      "Repositories processed, by result.",
			},
			[]string{"result"},
		),
		branches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "branches_total",
				Help:      "Branches processed in branch mode, by result.",
			},
			[]string{"result"},
		),
		cloneAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clone_attempts_total",
				Help:      "Clone attempts, by kind (root or branch) and result.",
			},
			[]string{"kind", "result"},
		),
		apiRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_retries_total",
				Help:      "Retried GitHub API requests, by operation.",
			},
			[]string{"operation"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last mirror run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last mirror run finished.",
		}),
	}

	registry.MustRegister(
		r.repositories,
		r.branches,
		r.cloneAttempts,
		r.apiRetries,
		r.runDuration,
		r.lastRun,
	)
	return r
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// RecordRepository counts one finished repository
func (r *Recorder) RecordRepository(ok bool) {
	r.repositories.WithLabelValues(result(ok)).Inc()
}

// RecordBranch counts one finished branch
func (r *Recorder) RecordBranch(ok bool) {
	r.branches.WithLabelValues(result(ok)).Inc()
}

// RecordCloneAttempt counts a single clone invocation
func (r *Recorder) RecordCloneAttempt(kind string, ok bool) {
	r.cloneAttempts.WithLabelValues(kind, result(ok)).Inc()
}

// ObserveAPIRetry counts a retried API request
func (r *Recorder) ObserveAPIRetry(operation string) {
	r.apiRetries.WithLabelValues(operation).Inc()
}

// RecordRun sets the duration and completion time of the run
func (r *Recorder) RecordRun(started, finished time.Time) {
	r.runDuration.Set(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes every metric to path atomically
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
