package reporting

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// createTestReportData builds a small two-package report used across the
// formatter tests.
func createTestReportData() *ReportData {
	testResults := []*types.TestResult{
		makeResult("example.com/m/a", "TestPassing", types.TestStatusPass, 100*time.Millisecond, "gw0"),
		func() *types.TestResult {
			r := makeResult("example.com/m/a", "TestFailing", types.TestStatusFail, 200*time.Millisecond, "gw1")
			r.Error = errors.New("assertion failed")
			return r
		}(),
		makeResult("example.com/m/b", "TestSkipped", types.TestStatusSkip, 0, "gw0"),
	}

	return NewReportBuilder().
		WithWallClock(1500 * time.Millisecond).
		WithWorkers(2).
		BuildFromTestResults(testResults, "test-run-123", "/repo/tests")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{750 * time.Millisecond, "750ms"},
		{time.Second, "1s"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatDuration(tt.duration))
	}
}

func TestGetStatusDisplay(t *testing.T) {
	tests := []struct {
		status        types.TestStatus
		expectedText  string
		expectedClass string
	}{
		{types.TestStatusPass, "PASS", "pass"},
		{types.TestStatusFail, "FAIL", "fail"},
		{types.TestStatusSkip, "SKIP", "skip"},
		{types.TestStatusError, "ERROR", "error"},
		{types.TestStatus("bogus"), "UNKNOWN", "unknown"},
	}

	for _, tt := range tests {
		display := getStatusDisplay(tt.status)
		assert.Equal(t, tt.expectedText, display.Text)
		assert.Equal(t, tt.expectedClass, display.Class)
	}
}

func TestHTMLFormatter(t *testing.T) {
	templateContent := `
<!DOCTYPE html>
<html>
<body>
<h1>Test Report: {{.RunID}}</h1>
<p>Duration: {{.DurationText}}</p>
<p>Workers: {{.Workers}}</p>
<div>Total: {{.Stats.Total}}, Passed: {{.Stats.Passed}}, Failed: {{.Stats.Failed}}</div>
{{if .HasFailures}}<div class="failures">Has Failures</div>{{end}}
{{range .Packages}}
<h2>{{.Name}} [{{getStatusText .Status}}]</h2>
{{range .Tests}}
<div class="test {{getStatusClass .Status}}">{{.Name}} ({{.Worker}}) - {{formatDuration .Duration}}</div>
{{end}}
{{end}}
</body>
</html>`

	formatter, err := NewHTMLFormatter(templateContent)
	require.NoError(t, err)

	result, err := formatter.Format(createTestReportData())
	require.NoError(t, err)

	assert.Contains(t, result, "Test Report: test-run-123")
	assert.Contains(t, result, "Duration: 1.5s")
	assert.Contains(t, result, "Workers: 2")
	assert.Contains(t, result, "Total: 3, Passed: 1, Failed: 1")
	assert.Contains(t, result, "Has Failures")
	assert.Contains(t, result, "example.com/m/a [FAIL]")
	assert.Contains(t, result, "example.com/m/b [SKIP]")
	assert.Contains(t, result, `<div class="test pass">TestPassing (gw0) - 100ms</div>`)
	assert.Contains(t, result, `<div class="test fail">TestFailing (gw1) - 200ms</div>`)
}

func TestHTMLFormatter_InvalidTemplate(t *testing.T) {
	invalidTemplate := `{{.InvalidField`
	_, err := NewHTMLFormatter(invalidTemplate)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse HTML template")
}

func TestTableFormatter(t *testing.T) {
	tests := []struct {
		name                string
		showIndividualTests bool
		expectedContent     []string
		notExpectedContent  []string
	}{
		{
			name:                "with individual tests",
			showIndividualTests: true,
			expectedContent: []string{
				"Package", "example.com/m/a", "example.com/m/b",
				"TestPassing", "TestFailing",
				"gw0", "gw1",
				"PASS", "FAIL",
				"TOTAL", "2 WORKERS",
			},
		},
		{
			name:                "without individual tests",
			showIndividualTests: false,
			expectedContent: []string{
				"Package", "example.com/m/a",
			},
			notExpectedContent: []string{
				"TestPassing", "TestFailing",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := NewTableFormatter("Test Results", tt.showIndividualTests)

			result, err := formatter.Format(createTestReportData())
			require.NoError(t, err)

			assert.Contains(t, result, "Test Results")
			for _, expected := range tt.expectedContent {
				assert.Contains(t, result, expected)
			}
			for _, notExpected := range tt.notExpectedContent {
				assert.NotContains(t, result, notExpected)
			}
		})
	}
}

func TestTableFormatter_TreePrefixes(t *testing.T) {
	formatter := NewTableFormatter("Test Results", true)

	result, err := formatter.Format(createTestReportData())
	require.NoError(t, err)

	// Tests render beneath their package with tree connectors
	assert.Contains(t, result, "├── TestFailing")
	assert.Contains(t, result, "└── TestPassing")
	assert.Contains(t, result, "└── TestSkipped")
}

func TestTableFormatter_EmptyResults(t *testing.T) {
	formatter := NewTableFormatter("Empty Test Results", true)

	data := NewReportBuilder().BuildFromTestResults(nil, "run-123", "")
	result, err := formatter.Format(data)
	require.NoError(t, err)

	assert.Contains(t, result, "Empty Test Results")
	assert.Contains(t, result, "TOTAL")
	assert.Contains(t, result, "SKIP")
}

func TestTextSummaryFormatter(t *testing.T) {
	tests := []struct {
		name           string
		includeDetails bool
	}{
		{name: "without details", includeDetails: false},
		{name: "with details", includeDetails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := NewTextSummaryFormatter(tt.includeDetails)

			result, err := formatter.Format(createTestReportData())
			require.NoError(t, err)

			assert.Contains(t, result, "TEST SUMMARY")
			assert.Contains(t, result, "Run ID: test-run-123")
			assert.Contains(t, result, "Duration: 1.5s")
			assert.Contains(t, result, "Workers: 2")
			assert.Contains(t, result, "Total:   3")
			assert.Contains(t, result, "Passed:  1")
			assert.Contains(t, result, "Failed:  1")
			assert.Contains(t, result, "Skipped: 1")
			assert.Contains(t, result, "Failed tests:")
			assert.Contains(t, result, "example.com/m/a.TestFailing")

			if tt.includeDetails {
				assert.Contains(t, result, "DETAILED RESULTS:")
				assert.Contains(t, result, "Package: example.com/m/a")
				assert.Contains(t, result, "[PASS] (gw0)")
			} else {
				assert.NotContains(t, result, "DETAILED RESULTS:")
			}
		})
	}
}

func TestTextSummaryFormatter_Timeouts(t *testing.T) {
	slow := makeResult("example.com/m/x", "TestSlow", types.TestStatusFail, 2*time.Second, "gw0")
	slow.TimedOut = true
	slow.Error = errors.New("test exceeded timeout of 2s")

	data := NewReportBuilder().BuildFromTestResults([]*types.TestResult{slow}, "run-1", "")

	result, err := NewTextSummaryFormatter(false).Format(data)
	require.NoError(t, err)

	assert.Contains(t, result, "WARNING: 1 TEST(S) TIMED OUT!")
	assert.Contains(t, result, "TIMED OUT TESTS:")
	assert.Contains(t, result, "example.com/m/x.TestSlow")
	assert.Contains(t, result, "Timeouts: 1")
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")

	writer := NewFileWriter(path)
	require.NoError(t, writer.Write("report content"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report content", string(content))
}

func TestReportGenerator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")

	generator := NewReportGenerator(
		NewReportBuilder().WithWorkers(2),
		NewTextSummaryFormatter(false),
		NewFileWriter(path),
	)

	testResults := []*types.TestResult{
		makeResult("example.com/m/a", "TestPassing", types.TestStatusPass, 100*time.Millisecond, "gw0"),
	}
	require.NoError(t, generator.GenerateFromTestResults(testResults, "run-9", "/repo/tests"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "TEST SUMMARY")
	assert.Contains(t, string(content), "Run ID: run-9")
	assert.Contains(t, string(content), "Total:   1")
}
