package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// jsonRunRecord is the wire shape of the results.json artifact
type jsonRunRecord struct {
	RunID      string           `json:"run_id"`
	TestDir    string           `json:"test_dir,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	DurationMS int64            `json:"duration_ms"`
	Workers    int              `json:"workers,omitempty"`
	Status     types.TestStatus `json:"status"`
	Stats      jsonRunStats     `json:"stats"`
	Tests      []jsonTestRecord `json:"tests"`
}

type jsonRunStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	Errored  int     `json:"errored"`
	Timeouts int     `json:"timeouts,omitempty"`
	PassRate float64 `json:"pass_rate"`
}

type jsonTestRecord struct {
	ID         string           `json:"id"`
	Package    string           `json:"package,omitempty"`
	Test       string           `json:"test"`
	Worker     string           `json:"worker,omitempty"`
	Status     types.TestStatus `json:"status"`
	DurationMS int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
	TimedOut   bool             `json:"timed_out,omitempty"`
}

// JSONResultsSink collects test results and writes a machine-readable
// results.json file when the run completes.
type JSONResultsSink struct {
	baseDir     string
	testDir     string
	testResults map[string][]*types.TestResult
}

var _ ResultSink = (*JSONResultsSink)(nil)

// NewJSONResultsSink creates a new JSON results sink
func NewJSONResultsSink(baseDir, testDir string) *JSONResultsSink {
	return &JSONResultsSink{
		baseDir:     baseDir,
		testDir:     testDir,
		testResults: make(map[string][]*types.TestResult),
	}
}

// Consume collects test results for later serialization
func (s *JSONResultsSink) Consume(result *types.TestResult, runID string) error {
	if s.testResults[runID] == nil {
		s.testResults[runID] = make([]*types.TestResult, 0)
	}
	s.testResults[runID] = append(s.testResults[runID], result)
	return nil
}

// Complete writes the results.json file for the run
func (s *JSONResultsSink) Complete(runID string) error {
	return s.CompleteWithTiming(runID, 0)
}

// CompleteWithTiming writes the results.json file, recording wallClockTime
// as the run duration when it is known.
func (s *JSONResultsSink) CompleteWithTiming(runID string, wallClockTime time.Duration) error {
	results, exists := s.testResults[runID]
	if !exists {
		results = make([]*types.TestResult, 0)
	}

	builder := NewReportBuilder()
	if wallClockTime > 0 {
		builder = builder.WithWallClock(wallClockTime)
	}
	data := builder.BuildFromTestResults(results, runID, s.testDir)

	record := jsonRunRecord{
		RunID:      data.RunID,
		TestDir:    data.TestDir,
		Timestamp:  data.Timestamp,
		DurationMS: data.Duration.Milliseconds(),
		Workers:    data.Workers,
		Status:     data.Overall(),
		Stats: jsonRunStats{
			Total:    data.Stats.Total,
			Passed:   data.Stats.Passed,
			Failed:   data.Stats.Failed,
			Skipped:  data.Stats.Skipped,
			Errored:  data.Stats.Errored,
			Timeouts: data.Stats.Timeouts,
			PassRate: data.Stats.PassRate,
		},
		Tests: make([]jsonTestRecord, 0, len(data.AllTests)),
	}

	for _, item := range data.AllTests {
		testRecord := jsonTestRecord{
			ID:         item.ID,
			Package:    item.Package,
			Test:       item.Name,
			Worker:     item.Worker,
			Status:     item.Status,
			DurationMS: item.Duration.Milliseconds(),
			TimedOut:   item.TimedOut,
		}
		if item.Error != nil {
			testRecord.Error = item.Error.Error()
		}
		record.Tests = append(record.Tests, testRecord)
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	outputDir := RunDirectory(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	resultsFile := filepath.Join(outputDir, JSONResultsFilename)
	if err := os.WriteFile(resultsFile, payload, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	return nil
}
