package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes supervision metrics to Prometheus. It satisfies the
// supervisor's MetricsRecorder interface.
type Recorder struct {
	checks      *prometheus.CounterVec
	restarts    *prometheus.CounterVec
	activeLoops prometheus.Gauge
	running     prometheus.Gauge
}

// New creates a recorder and registers its collectors. A nil registerer
// uses the default Prometheus registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procwatch_liveness_checks_total",
				Help: "Total liveness checks performed, by target and observed state",
			},
			[]string{"target", "state"},
		),
		restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procwatch_restarts_total",
				Help: "Total restart attempts, by target and result",
			},
			[]string{"target", "result"},
		),
		activeLoops: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "procwatch_active_watch_loops",
				Help: "Number of currently active watch loops",
			},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "procwatch_supervisor_running",
				Help: "Whether the supervisor registry is running (1) or stopped (0)",
			},
		),
	}

	reg.MustRegister(r.checks)
	reg.MustRegister(r.restarts)
	reg.MustRegister(r.activeLoops)
	reg.MustRegister(r.running)

	return r
}

// RecordCheck counts one liveness poll
func (r *Recorder) RecordCheck(target string, running bool) {
	state := "stopped"
	if running {
		state = "running"
	}
	r.checks.WithLabelValues(target, state).Inc()
}

// RecordRestart counts one restart attempt
func (r *Recorder) RecordRestart(target string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	r.restarts.WithLabelValues(target, result).Inc()
}

// SetActiveLoops updates the active watch loop gauge
func (r *Recorder) SetActiveLoops(n int) {
	r.activeLoops.Set(float64(n))
}

// SetRunning updates the supervisor running gauge
func (r *Recorder) SetRunning(running bool) {
	if running {
		r.running.Set(1)
	} else {
		r.running.Set(0)
	}
}
