package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/temirov/githubsh/internal/workflow"
)

const (
	metricsNamespaceConstant      = "githubsh"
	metricsSubsystemConstant      = "stage"
	stageLabelConstant            = "stage"
	statusLabelConstant           = "status"
	writeMetricsOperationConstant = "write metrics"
	metricsDirectoryPermissions   = 0o755
	runsTotalNameConstant         = "runs_total"
	runsTotalHelpConstant         = "Stage invocations by outcome."
	lastDurationNameConstant      = "last_duration_seconds"
	lastDurationHelpConstant      = "Duration of the most recent invocation of the stage."
	lastSuccessNameConstant       = "last_success"
	lastSuccessHelpConstant       = "Whether the most recent invocation of the stage succeeded (1) or failed (0)."
	lastTimestampNameConstant     = "last_finished_timestamp_seconds"
	lastTimestampHelpConstant     = "Unix time at which the most recent invocation of the stage finished."
	lastWarningsNameConstant      = "last_warnings"
	lastWarningsHelpConstant      = "Side-effect warnings raised by the most recent invocation of the stage."
)

// RunTotalsSource supplies cumulative invocation counts.
type RunTotalsSource interface {
	Totals(executionContext context.Context) ([]RunTotal, error)
}

// MetricsRecorder writes Prometheus metrics for node_exporter's textfile collector.
// Each invocation rewrites the file; cumulative totals come from the optional RunTotalsSource.
type MetricsRecorder struct {
	path   string
	totals RunTotalsSource
}

// NewMetricsRecorder constructs a recorder writing to path.
func NewMetricsRecorder(path string, totals RunTotalsSource) (*MetricsRecorder, error) {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return nil, ErrMetricsFileRequired
	}
	return &MetricsRecorder{path: trimmedPath, totals: totals}, nil
}

// Record exports metrics describing report.
func (recorder *MetricsRecorder) Record(executionContext context.Context, report workflow.ExecutionReport) error {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespaceConstant,
		Subsystem: metricsSubsystemConstant,
		Name:      runsTotalNameConstant,
		Help:      runsTotalHelpConstant,
	}, []string{stageLabelConstant, statusLabelConstant})
	lastDuration := newStageGauge(lastDurationNameConstant, lastDurationHelpConstant)
	lastSuccess := newStageGauge(lastSuccessNameConstant, lastSuccessHelpConstant)
	lastTimestamp := newStageGauge(lastTimestampNameConstant, lastTimestampHelpConstant)
	lastWarnings := newStageGauge(lastWarningsNameConstant, lastWarningsHelpConstant)

	for _, collector := range []prometheus.Collector{runsTotal, lastDuration, lastSuccess, lastTimestamp, lastWarnings} {
		if registerError := registry.Register(collector); registerError != nil {
			return SinkError{Operation: writeMetricsOperationConstant, Target: recorder.path, Cause: registerError}
		}
	}

	stageLabel := strconv.Itoa(int(report.Stage))
	if recorder.totals != nil {
		totals, totalsError := recorder.totals.Totals(executionContext)
		if totalsError != nil {
			return SinkError{Operation: writeMetricsOperationConstant, Target: recorder.path, Cause: totalsError}
		}
		for _, total := range totals {
			runsTotal.WithLabelValues(strconv.Itoa(int(total.Stage)), string(total.Status)).Add(float64(total.Count))
		}
	} else {
		runsTotal.WithLabelValues(stageLabel, string(report.Status)).Inc()
	}

	lastDuration.WithLabelValues(stageLabel).Set(report.DurationSeconds)
	successValue := 0.0
	if report.Succeeded() {
		successValue = 1
	}
	lastSuccess.WithLabelValues(stageLabel).Set(successValue)
	lastTimestamp.WithLabelValues(stageLabel).Set(float64(report.FinishedAt.Unix()))
	lastWarnings.WithLabelValues(stageLabel).Set(float64(len(report.Warnings)))

	if mkdirError := os.MkdirAll(filepath.Dir(recorder.path), metricsDirectoryPermissions); mkdirError != nil {
		return SinkError{Operation: writeMetricsOperationConstant, Target: recorder.path, Cause: mkdirError}
	}
	if writeError := prometheus.WriteToTextfile(recorder.path, registry); writeError != nil {
		return SinkError{Operation: writeMetricsOperationConstant, Target: recorder.path, Cause: writeError}
	}
	return nil
}

func newStageGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespaceConstant,
		Subsystem: metricsSubsystemConstant,
		Name:      name,
		Help:      help,
	}, []string{stageLabelConstant})
}
