// Package metrics records deployment metrics and flushes them as a
// Prometheus textfile when the run ends.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dsdeploy"

// Recorder owns a private registry with the orchestrator's collectors.
// A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	phaseDuration   *prometheus.HistogramVec
	phaseFailures   *prometheus.CounterVec
	cleanupFailures *prometheus.CounterVec
	downloadBytes   prometheus.Counter
	sessionState    prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "phase",
				Name:      "duration_seconds",
				Help:      "Duration of provisioning phases in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 4, 10), // 100ms to ~7h
			},
			[]string{"phase"},
		),
		phaseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "phase",
				Name:      "failures_total",
				Help:      "Total number of failed provisioning phases",
			},
			[]string{"phase"},
		),
		cleanupFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cleanup",
				Name:      "step_failures_total",
				Help:      "Total number of failed cleanup steps by resource",
			},
			[]string{"step"},
		),
		downloadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "download_bytes_total",
				Help:      "Bytes of model snapshot downloaded",
			},
		),
		sessionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "phase",
				Help:      "Ordinal of the current session state (0=INIT, 9=DONE)",
			},
		),
	}

	r.registry.MustRegister(
		r.phaseDuration,
		r.phaseFailures,
		r.cleanupFailures,
		r.downloadBytes,
		r.sessionState,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObservePhase records a finished phase.
func (r *Recorder) ObservePhase(phase string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
	if err != nil {
		r.phaseFailures.WithLabelValues(phase).Inc()
	}
}

// CleanupStepFailed counts a failed teardown step.
func (r *Recorder) CleanupStepFailed(step string) {
	if r == nil {
		return
	}
	r.cleanupFailures.WithLabelValues(step).Inc()
}

// AddDownloadBytes adds n downloaded bytes.
func (r *Recorder) AddDownloadBytes(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.downloadBytes.Add(float64(n))
}

// SetState records the session state ordinal.
func (r *Recorder) SetState(ordinal int) {
	if r == nil {
		return
	}
	r.sessionState.Set(float64(ordinal))
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
