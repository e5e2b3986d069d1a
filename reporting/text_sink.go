package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// Artifact filenames inside a run directory
const (
	SummaryFilename     = "summary.log"
	JSONResultsFilename = "results.json"
	HTMLResultsFilename = "results.html"
	RunDirectoryPrefix  = "testrun-" // Standardized prefix for run directories
)

// ResultSink is an interface for different ways of consuming test results
type ResultSink interface {
	// Consume processes a single test result
	Consume(result *types.TestResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// RunDirectory returns the artifact directory for a run underneath baseDir
func RunDirectory(baseDir, runID string) string {
	return filepath.Join(baseDir, RunDirectoryPrefix+runID)
}

// TextSummarySink collects test results and writes a plain text summary
// file when the run completes.
type TextSummarySink struct {
	formatter   *TextSummaryFormatter
	baseDir     string
	testDir     string
	testResults map[string][]*types.TestResult
}

var _ ResultSink = (*TextSummarySink)(nil)

// NewTextSummarySink creates a new text summary sink
func NewTextSummarySink(baseDir, testDir string, includeDetails bool) *TextSummarySink {
	return &TextSummarySink{
		formatter:   NewTextSummaryFormatter(includeDetails),
		baseDir:     baseDir,
		testDir:     testDir,
		testResults: make(map[string][]*types.TestResult),
	}
}

// Consume collects test results for later summary generation
func (s *TextSummarySink) Consume(result *types.TestResult, runID string) error {
	if s.testResults[runID] == nil {
		s.testResults[runID] = make([]*types.TestResult, 0)
	}
	s.testResults[runID] = append(s.testResults[runID], result)
	return nil
}

// Complete generates the text summary file for the run
func (s *TextSummarySink) Complete(runID string) error {
	results, exists := s.testResults[runID]
	if !exists {
		results = make([]*types.TestResult, 0)
	}

	data := NewReportBuilder().BuildFromTestResults(results, runID, s.testDir)

	outputDir := RunDirectory(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content, err := s.formatter.Format(data)
	if err != nil {
		return fmt.Errorf("failed to format text summary: %w", err)
	}

	summaryFile := filepath.Join(outputDir, SummaryFilename)
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}

	return nil
}

// TableReporter provides functionality to generate console table output
type TableReporter struct {
	formatter *TableFormatter
}

// NewTableReporter creates a new table reporter
func NewTableReporter(title string, showIndividualTests bool) *TableReporter {
	return &TableReporter{
		formatter: NewTableFormatter(title, showIndividualTests),
	}
}

// GenerateTable renders a table report and returns the content as a string
func (tr *TableReporter) GenerateTable(data *ReportData) (string, error) {
	return tr.formatter.Format(data)
}

// GenerateTableFromTestResults builds a report from raw results and renders it
func (tr *TableReporter) GenerateTableFromTestResults(testResults []*types.TestResult, runID, testDir string) (string, error) {
	data := NewReportBuilder().BuildFromTestResults(testResults, runID, testDir)
	return tr.formatter.Format(data)
}

// PrintTable renders a table report to stdout
func (tr *TableReporter) PrintTable(data *ReportData) error {
	content, err := tr.GenerateTable(data)
	if err != nil {
		return err
	}

	_, err = fmt.Print(content)
	return err
}
