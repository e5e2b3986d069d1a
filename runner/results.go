package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// ResultRecord is the JSON form of one test result inside a worker report.
// Errors travel as strings since error values do not round-trip.
type ResultRecord struct {
	ID       string           `json:"id"`
	Package  string           `json:"package"`
	FuncName string           `json:"func_name"`
	Status   types.TestStatus `json:"status"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
	TimedOut bool             `json:"timed_out,omitempty"`
	Stdout   string           `json:"stdout,omitempty"`
}

// WorkerReport is what a worker process writes to its result file before
// exiting. The coordinator reads one per worker after the join.
type WorkerReport struct {
	WorkerID string         `json:"worker_id"`
	Results  []ResultRecord `json:"results"`
}

// NewResultRecord converts a test result to its wire form
func NewResultRecord(result *types.TestResult) ResultRecord {
	record := ResultRecord{
		ID:       result.Metadata.ID,
		Package:  result.Metadata.Package,
		FuncName: result.Metadata.FuncName,
		Status:   result.Status,
		Duration: result.Duration,
		TimedOut: result.TimedOut,
		Stdout:   result.Stdout,
	}
	if result.Error != nil {
		record.Error = result.Error.Error()
	}
	return record
}

// NewResultRecords converts a batch of results to wire form
func NewResultRecords(results []*types.TestResult) []ResultRecord {
	records := make([]ResultRecord, 0, len(results))
	for _, result := range results {
		records = append(records, NewResultRecord(result))
	}
	return records
}

// ToTestResult converts a wire record back into a test result
func (r ResultRecord) ToTestResult(workerID string) *types.TestResult {
	result := &types.TestResult{
		Metadata: types.TestMetadata{
			ID:       r.ID,
			Package:  r.Package,
			FuncName: r.FuncName,
		},
		Status:   r.Status,
		Duration: r.Duration,
		TimedOut: r.TimedOut,
		Stdout:   r.Stdout,
		WorkerID: workerID,
	}
	if r.Error != "" {
		result.Error = errors.New(r.Error)
	}
	return result
}

// WriteWorkerReport persists a worker's results to path
func WriteWorkerReport(path string, report *WorkerReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal worker report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create result directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write worker report: %w", err)
	}
	return nil
}

// ReadWorkerReport loads a worker's results from path
func ReadWorkerReport(path string) (*WorkerReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read worker report: %w", err)
	}
	var report WorkerReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse worker report %s: %w", path, err)
	}
	return &report, nil
}

// newErroredTestResult marks a test that could not produce a real result
func newErroredTestResult(metadata types.TestMetadata, err error) *types.TestResult {
	return &types.TestResult{
		Metadata: metadata,
		Status:   types.TestStatusError,
		Error:    err,
	}
}
