package paratest

import (
	"github.com/ethereum-optimism/infra/op-paratest/metrics"
	"github.com/ethereum-optimism/infra/op-paratest/runner"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(runID string, result *runner.RunnerResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the test results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(runID string, result *runner.RunnerResult) {
	metrics.RecordRunSummary(
		runID,
		string(result.Status),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Workers,
		result.Duration,
	)

	for _, id := range result.SortedTestIDs() {
		testResult := result.Tests[id]
		metrics.RecordTestResult(
			runID,
			testResult.Metadata.Package,
			testResult.Metadata.GetName(),
			testResult.WorkerID,
			testResult.Status,
			testResult.Duration,
		)
	}
}
