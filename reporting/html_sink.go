package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-paratest/templates"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// HTMLSink collects test results and writes a browsable results.html file
// when the run completes.
type HTMLSink struct {
	formatter   *HTMLFormatter
	baseDir     string
	testDir     string
	testResults map[string][]*types.TestResult
}

var _ ResultSink = (*HTMLSink)(nil)

// NewHTMLSink creates a new HTML sink using the embedded report template
func NewHTMLSink(baseDir, testDir string) (*HTMLSink, error) {
	templateContent, err := templates.ReportHTML()
	if err != nil {
		return nil, fmt.Errorf("failed to load HTML template: %w", err)
	}

	formatter, err := NewHTMLFormatter(templateContent)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTML formatter: %w", err)
	}

	return &HTMLSink{
		formatter:   formatter,
		baseDir:     baseDir,
		testDir:     testDir,
		testResults: make(map[string][]*types.TestResult),
	}, nil
}

// Consume collects test results for later HTML generation
func (s *HTMLSink) Consume(result *types.TestResult, runID string) error {
	if s.testResults[runID] == nil {
		s.testResults[runID] = make([]*types.TestResult, 0)
	}
	s.testResults[runID] = append(s.testResults[runID], result)
	return nil
}

// Complete generates the HTML summary file
func (s *HTMLSink) Complete(runID string) error {
	return s.CompleteWithTiming(runID, 0)
}

// CompleteWithTiming generates the HTML summary file, recording
// wallClockTime as the run duration when it is known.
func (s *HTMLSink) CompleteWithTiming(runID string, wallClockTime time.Duration) error {
	results, exists := s.testResults[runID]
	if !exists {
		results = make([]*types.TestResult, 0)
	}

	builder := NewReportBuilder()
	if wallClockTime > 0 {
		builder = builder.WithWallClock(wallClockTime)
	}
	data := builder.BuildFromTestResults(results, runID, s.testDir)

	htmlOutput, err := s.formatter.Format(data)
	if err != nil {
		return fmt.Errorf("failed to format HTML: %w", err)
	}

	outputDir := RunDirectory(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	htmlFile := filepath.Join(outputDir, HTMLResultsFilename)
	if err := os.WriteFile(htmlFile, []byte(htmlOutput), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}

	return nil
}
