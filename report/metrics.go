package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry collects the metrics of one report. Each run gets its own
// registry so a textfile never mixes runs.
func (r *Report) Registry() *prometheus.Registry {
	labels := prometheus.Labels{"layered": r.Layered}

	filesScanned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "archspec_check_files_scanned",
		Help:        "Number of source files resolved by the last check",
		ConstLabels: labels,
	})
	filesChecked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "archspec_check_files_checked",
		Help:        "Number of source files inside a checked layer",
		ConstLabels: labels,
	})
	violations := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "archspec_check_violations",
		Help:        "Number of layer violations per source and target layer",
		ConstLabels: labels,
	}, []string{"source_layer", "target_layer"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "archspec_check_duration_seconds",
		Help:        "Duration of the last check in seconds",
		ConstLabels: labels,
	})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "archspec_check_last_run_timestamp_seconds",
		Help:        "Unix time the last check started",
		ConstLabels: labels,
	})
	conforms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "archspec_check_conforms",
		Help:        "1 if the last check found no violations, else 0",
		ConstLabels: labels,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(filesScanned, filesChecked, violations, duration, lastRun, conforms)

	filesScanned.Set(float64(r.FilesScanned))
	filesChecked.Set(float64(r.FilesChecked))
	for _, edge := range r.ByLayer() {
		violations.WithLabelValues(edge.Source, edge.Target).Set(float64(edge.Count))
	}
	duration.Set(r.Duration.Seconds())
	lastRun.Set(float64(r.StartedAt.Unix()))
	if r.Conforms() {
		conforms.Set(1)
	}

	return reg
}

// WriteMetrics writes the report metrics in the Prometheus text format to
// path, for node_exporter's textfile collector.
func (r *Report) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry()); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
