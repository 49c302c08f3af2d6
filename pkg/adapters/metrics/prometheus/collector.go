package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/audiostudio/conductor/pkg/domain"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	runsStarted       prometheus.Counter
	runsCompleted     *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	phaseDuration     *prometheus.HistogramVec
	pollTicks         prometheus.Counter
	persistenceErrors *prometheus.CounterVec
	activeRuns        prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector() *Collector {
	return &Collector{
		runsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_runs_started_total",
				Help: "Total number of pipeline executions started",
			},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_runs_completed_total",
				Help: "Total number of pipeline executions finished, by terminal status",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_run_duration_seconds",
				Help:    "Pipeline execution duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"status"},
		),
		phaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_phase_duration_seconds",
				Help:    "Execution phase duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"phase"},
		),
		pollTicks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "conductor_poll_ticks_total",
				Help: "Total number of remote job status polls",
			},
		),
		persistenceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_persistence_errors_total",
				Help: "Total number of best-effort persistence failures",
			},
			[]string{"operation"},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "conductor_active_runs",
				Help: "Number of currently active pipeline executions",
			},
		),
	}
}

// RecordRunStarted counts a pipeline execution start.
func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
}

// RecordRunCompleted counts a finished execution and records its duration.
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordPhase records how long an execution phase took.
func (c *Collector) RecordPhase(phase domain.ExecutionPhase, duration time.Duration) {
	c.phaseDuration.WithLabelValues(string(phase)).Observe(duration.Seconds())
}

// RecordPollTick counts one remote status poll.
func (c *Collector) RecordPollTick() {
	c.pollTicks.Inc()
}

// RecordPersistenceError counts a failed mirror write by operation name.
func (c *Collector) RecordPersistenceError(operation string) {
	c.persistenceErrors.WithLabelValues(operation).Inc()
}

// SetActiveRuns sets the number of executions currently in flight.
func (c *Collector) SetActiveRuns(n int) {
	c.activeRuns.Set(float64(n))
}
