// Package metrics records run results as Prometheus metrics.
//
// A Recorder is a harness.Observer. After the run, WriteTextfile dumps the
// registry in the text exposition format, suitable for the node exporter's
// textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/testmain/internal/harness"
)

const (
	MetricsNamespace = "testmain"
)

// Recorder collects per-test metrics for one run into its own registry.
type Recorder struct {
	registry *prometheus.Registry

	testsTotal   *prometheus.CounterVec
	testDuration *prometheus.HistogramVec
	configErrors prometheus.Counter
	runFailed    prometheus.Gauge
}

// NewRecorder creates a recorder labelled with the program name and fs-type.
func NewRecorder(progName, fsType string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"prog": progName, "fs_type": fsType}

	return &Recorder{
		registry: reg,
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "tests_total",
			Help:        "Number of tests by verdict",
			ConstLabels: constLabels,
		}, []string{
			"verdict",
		}),
		testDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   MetricsNamespace,
			Name:        "test_duration_seconds",
			Help:        "Duration of invoked test bodies",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{
			"verdict",
		}),
		configErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "config_errors_total",
			Help:        "Number of table entries that could not be resolved",
			ConstLabels: constLabels,
		}),
		runFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Name:        "run_failed",
			Help:        "1 if the last run failed, 0 otherwise",
			ConstLabels: constLabels,
		}),
	}
}

// Observe implements harness.Observer. Excluded tests are not counted.
func (r *Recorder) Observe(res harness.Result) {
	if res.Excluded != harness.Included {
		return
	}
	verdict := string(res.Verdict)
	r.testsTotal.WithLabelValues(verdict).Inc()
	if res.Invoked {
		r.testDuration.WithLabelValues(verdict).Observe(res.Duration.Seconds())
	}
	if res.ConfigError {
		r.configErrors.Inc()
	}
}

// Finish records the overall outcome of the run.
func (r *Recorder) Finish(s *harness.Summary) {
	if s.Failed() {
		r.runFailed.Set(1)
		return
	}
	r.runFailed.Set(0)
}

// Registry exposes the recorder's registry, for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes every collected metric to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
