package paratest

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-paratest/logging"
	"github.com/ethereum-optimism/infra/op-paratest/runner"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

func formatterResult(t *testing.T) *runner.RunnerResult {
	t.Helper()
	result := &runner.RunnerResult{
		Tests:    make(map[string]*types.TestResult),
		Status:   types.TestStatusFail,
		Duration: 1200 * time.Millisecond,
		RunID:    "format-run",
		Workers:  2,
		Logs:     logging.NewAggregator(log.New()),
	}
	for _, tc := range []struct {
		funcName string
		status   types.TestStatus
		workerID string
	}{
		{"TestAlpha", types.TestStatusPass, "gw0"},
		{"TestBeta", types.TestStatusFail, "gw1"},
	} {
		metadata := types.TestMetadata{
			ID:       types.TestKey("example.com/pkg", tc.funcName),
			Package:  "example.com/pkg",
			FuncName: tc.funcName,
		}
		result.Tests[metadata.ID] = &types.TestResult{
			Metadata: metadata,
			Status:   tc.status,
			Duration: 100 * time.Millisecond,
			WorkerID: tc.workerID,
		}
	}
	result.Stats = runner.ResultStats{Total: 2, Passed: 1, Failed: 1}
	return result
}

func TestConsoleResultFormatter_FormatResults(t *testing.T) {
	formatter := NewConsoleResultFormatter(log.New(), "/tmp/does-not-matter")
	result := formatterResult(t)

	// Rendering goes to stdout; the contract under test is that a mixed
	// pass/fail run formats without error.
	err := formatter.FormatResults(result)
	require.NoError(t, err)
}

func TestSummaryLine_Failures(t *testing.T) {
	result := formatterResult(t)
	line := summaryLine(result)

	assert.Contains(t, line, "✗ fail")
	assert.Contains(t, line, "1/2 tests passed")
	assert.Contains(t, line, "1 failed")
	assert.Contains(t, line, "2 workers")
}

func TestSummaryBox(t *testing.T) {
	result := formatterResult(t)
	box := summaryBox(result)

	assert.Contains(t, box, "Run format-run")
	assert.Contains(t, box, summaryLine(result))
	assert.True(t, strings.HasPrefix(box, "┌"), "box should open with a top border")
	assert.True(t, strings.HasSuffix(strings.TrimRight(box, "\n"), "┘"), "box should close with a bottom border")
}

func TestGetResultString(t *testing.T) {
	assert.Equal(t, "✓ pass", getResultString(types.TestStatusPass))
	assert.Equal(t, "- skip", getResultString(types.TestStatusSkip))
	assert.Equal(t, "✗ fail", getResultString(types.TestStatusFail))
	assert.Equal(t, "✗ fail", getResultString(types.TestStatusError))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.2s", formatDuration(1200*time.Millisecond))
	assert.Equal(t, "0.0s", formatDuration(0))
}
