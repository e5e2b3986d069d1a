package paratest

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-paratest/runner"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// gaugeValue reads a run-scoped gauge or counter from the process-wide
// metrics registry, matching on the run_id label.
func gaugeValue(t *testing.T, name, runID string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "run_id" && label.GetValue() == runID {
					if metric.GetGauge() != nil {
						return metric.GetGauge().GetValue()
					}
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("no %s sample for run %s", name, runID)
	return 0
}

func reporterResult(runID string, status types.TestStatus, stats runner.ResultStats) *runner.RunnerResult {
	meta := types.TestMetadata{
		ID:       "example.com/m/a::TestOne",
		Package:  "example.com/m/a",
		FuncName: "TestOne",
	}
	return &runner.RunnerResult{
		RunID:    runID,
		Status:   status,
		Duration: 100 * time.Millisecond,
		Stats:    stats,
		Workers:  2,
		Tests: map[string]*types.TestResult{
			meta.ID: {Metadata: meta, Status: status, Duration: 40 * time.Millisecond, WorkerID: "gw0"},
		},
	}
}

func TestDefaultMetricsReporter_ReportResults(t *testing.T) {
	result := reporterResult("reporter-run-pass", types.TestStatusPass,
		runner.ResultStats{Total: 5, Passed: 5})

	NewDefaultMetricsReporter().ReportResults(result.RunID, result)

	assert.Equal(t, 5.0, gaugeValue(t, "paratest_run_tests_total", result.RunID))
	assert.Equal(t, 5.0, gaugeValue(t, "paratest_run_tests_passed", result.RunID))
	assert.Equal(t, 2.0, gaugeValue(t, "paratest_run_workers", result.RunID))
}

func TestDefaultMetricsReporter_ReportResults_FailedTests(t *testing.T) {
	result := reporterResult("reporter-run-fail", types.TestStatusFail,
		runner.ResultStats{Total: 10, Passed: 7, Failed: 3})

	NewDefaultMetricsReporter().ReportResults(result.RunID, result)

	assert.Equal(t, 10.0, gaugeValue(t, "paratest_run_tests_total", result.RunID))
	assert.Equal(t, 3.0, gaugeValue(t, "paratest_run_tests_failed", result.RunID))
}

func TestDefaultMetricsReporter_ReportResults_PerTest(t *testing.T) {
	result := reporterResult("reporter-run-tests", types.TestStatusPass,
		runner.ResultStats{Total: 1, Passed: 1})

	NewDefaultMetricsReporter().ReportResults(result.RunID, result)

	assert.Equal(t, 1.0, gaugeValue(t, "paratest_test_results_total", result.RunID),
		"each test result feeds the per-test counter")
}
