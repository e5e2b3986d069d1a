package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-paratest/templates"
	"github.com/ethereum-optimism/infra/op-paratest/types"
	"github.com/ethereum-optimism/infra/op-paratest/ui"
)

// StatusDisplay represents display information for a test status
type StatusDisplay struct {
	Text  string // Human-readable status text
	Class string // CSS class or style identifier
}

// getStatusDisplay returns human-readable status text and CSS class
func getStatusDisplay(status types.TestStatus) StatusDisplay {
	switch status {
	case types.TestStatusPass:
		return StatusDisplay{Text: "PASS", Class: "pass"}
	case types.TestStatusFail:
		return StatusDisplay{Text: "FAIL", Class: "fail"}
	case types.TestStatusSkip:
		return StatusDisplay{Text: "SKIP", Class: "skip"}
	case types.TestStatusError:
		return StatusDisplay{Text: "ERROR", Class: "error"}
	default:
		return StatusDisplay{Text: "UNKNOWN", Class: "unknown"}
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// ReportFormatter defines the interface for different report output formats
type ReportFormatter interface {
	Format(data *ReportData) (string, error)
}

// ReportWriter defines the interface for writing reports to various destinations
type ReportWriter interface {
	Write(content string) error
}

// FileWriter writes reports to a file
type FileWriter struct {
	path string
}

// NewFileWriter creates a new file writer
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Write writes the content to the file
func (fw *FileWriter) Write(content string) error {
	return os.WriteFile(fw.path, []byte(content), 0644)
}

// StdoutWriter writes reports to stdout
type StdoutWriter struct{}

// NewStdoutWriter creates a new stdout writer
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{}
}

// Write writes the content to stdout
func (sw *StdoutWriter) Write(content string) error {
	_, err := fmt.Print(content)
	return err
}

// HTMLFormatter formats reports as HTML
type HTMLFormatter struct {
	template *template.Template
}

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(templateContent string) (*HTMLFormatter, error) {
	tmpl, err := template.New("report").Funcs(templates.GetTemplateFunc()).Parse(templateContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return &HTMLFormatter{
		template: tmpl,
	}, nil
}

// Format formats the report data as HTML
func (hf *HTMLFormatter) Format(data *ReportData) (string, error) {
	var buf bytes.Buffer
	if err := hf.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute HTML template: %w", err)
	}

	return buf.String(), nil
}

// TableFormatter formats reports as ASCII tables
type TableFormatter struct {
	showIndividualTests bool
	title               string
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(title string, showIndividualTests bool) *TableFormatter {
	return &TableFormatter{
		showIndividualTests: showIndividualTests,
		title:               title,
	}
}

// Format formats the report data as an ASCII table
func (tf *TableFormatter) Format(data *ReportData) (string, error) {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(tf.title)

	// Configure columns
	t.AppendHeader(table.Row{
		"Type", "ID", "Worker", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status",
	})

	// Set column configurations for better readability
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 200, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
	})

	// Add packages and their tests
	for _, pkg := range data.Packages {
		// Package row
		t.AppendRow(table.Row{
			"Package",
			pkg.Name,
			"",
			formatDuration(pkg.Duration),
			"-", // Don't count the package row as a test
			pkg.Stats.Passed,
			pkg.Stats.Failed,
			pkg.Stats.Skipped,
			tf.getResultString(pkg.Status),
		})

		if tf.showIndividualTests {
			for i, test := range pkg.Tests {
				prefix := ui.BranchPrefix(i == len(pkg.Tests)-1)

				t.AppendRow(table.Row{
					"Test",
					fmt.Sprintf("%s%s", prefix, test.Name),
					test.Worker,
					formatDuration(test.Duration),
					"1",
					tf.boolToInt(test.Status == types.TestStatusPass),
					tf.boolToInt(test.Status == types.TestStatusFail || test.Status == types.TestStatusError),
					tf.boolToInt(test.Status == types.TestStatusSkip),
					tf.getResultString(test.Status),
				})
			}
		}

		t.AppendSeparator()
	}

	// Update the table style based on overall result status
	overall := data.Overall()
	switch {
	case data.HasFailures:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case overall == types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	// Add summary footer
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		fmt.Sprintf("%d workers", data.Workers),
		formatDuration(data.Duration),
		data.Stats.Total,
		data.Stats.Passed,
		data.Stats.Failed,
		data.Stats.Skipped,
		tf.getResultString(overall),
	})

	t.Render()
	return buf.String(), nil
}

// getResultString converts a TestStatus to a display string
func (tf *TableFormatter) getResultString(status interface{}) string {
	switch v := status.(type) {
	case string:
		return strings.ToUpper(v)
	default:
		return strings.ToUpper(fmt.Sprintf("%v", v))
	}
}

// boolToInt converts a boolean to int for table display
func (tf *TableFormatter) boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// TextSummaryFormatter formats reports as plain text summaries
type TextSummaryFormatter struct {
	includeDetails bool
}

// NewTextSummaryFormatter creates a new text summary formatter
func NewTextSummaryFormatter(includeDetails bool) *TextSummaryFormatter {
	return &TextSummaryFormatter{
		includeDetails: includeDetails,
	}
}

// Format formats the report data as a text summary
func (tsf *TextSummaryFormatter) Format(data *ReportData) (string, error) {
	var summary strings.Builder

	fmt.Fprintf(&summary, "TEST SUMMARY\n")
	fmt.Fprintf(&summary, "============\n")
	fmt.Fprintf(&summary, "Run ID: %s\n", data.RunID)
	fmt.Fprintf(&summary, "Time: %s\n", data.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&summary, "Duration: %s\n", formatDuration(data.Duration))
	if data.Workers > 0 {
		fmt.Fprintf(&summary, "Workers: %d\n", data.Workers)
	}
	fmt.Fprintf(&summary, "\n")

	// Add timeout warning if there were any timeouts
	if data.HasTimeouts {
		fmt.Fprintf(&summary, "⚠️  WARNING: %d TEST(S) TIMED OUT! ⚠️\n\n", data.Stats.Timeouts)
	}

	fmt.Fprintf(&summary, "Results:\n")
	fmt.Fprintf(&summary, "  Total:   %d\n", data.Stats.Total)
	fmt.Fprintf(&summary, "  Passed:  %d\n", data.Stats.Passed)
	fmt.Fprintf(&summary, "  Failed:  %d\n", data.Stats.Failed)
	fmt.Fprintf(&summary, "  Skipped: %d\n", data.Stats.Skipped)
	fmt.Fprintf(&summary, "  Errors:  %d\n", data.Stats.Errored)
	if data.HasTimeouts {
		fmt.Fprintf(&summary, "  Timeouts: %d\n", data.Stats.Timeouts)
	}
	fmt.Fprintf(&summary, "\n")

	// Add timeout information prominently if there were timeouts
	if len(data.TimeoutTestNames) > 0 {
		fmt.Fprintf(&summary, "TIMED OUT TESTS:\n")
		fmt.Fprintf(&summary, "================\n")
		for _, test := range data.TimeoutTestNames {
			fmt.Fprintf(&summary, "  ⏰ %s\n", test)
		}
		fmt.Fprintf(&summary, "\n")
	}

	// Include a list of failed tests if there are any
	if len(data.FailedTestNames) > 0 {
		fmt.Fprintf(&summary, "Failed tests:\n")
		for _, test := range data.FailedTestNames {
			fmt.Fprintf(&summary, "  - %s\n", test)
		}
		fmt.Fprintf(&summary, "\n")
	}

	// Add detailed results if requested
	if tsf.includeDetails {
		fmt.Fprintf(&summary, "DETAILED RESULTS:\n")
		fmt.Fprintf(&summary, "=================\n")

		for _, pkg := range data.Packages {
			fmt.Fprintf(&summary, "Package: %s (%s) [%s]\n", pkg.Name, formatDuration(pkg.Duration), strings.ToUpper(string(pkg.Status)))

			for _, test := range pkg.Tests {
				statusDisplay := getStatusDisplay(test.Status)
				line := fmt.Sprintf("  - %s (%s) [%s]", test.Name, formatDuration(test.Duration), statusDisplay.Text)
				if test.Worker != "" {
					line += fmt.Sprintf(" (%s)", test.Worker)
				}
				fmt.Fprintf(&summary, "%s\n", line)
			}

			fmt.Fprintf(&summary, "\n")
		}
	}

	return summary.String(), nil
}

// ReportGenerator combines builder, formatter, and writer for easy report generation
type ReportGenerator struct {
	builder   *ReportBuilder
	formatter ReportFormatter
	writer    ReportWriter
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(builder *ReportBuilder, formatter ReportFormatter, writer ReportWriter) *ReportGenerator {
	return &ReportGenerator{
		builder:   builder,
		formatter: formatter,
		writer:    writer,
	}
}

// GenerateFromTestResults generates a report from test results
func (rg *ReportGenerator) GenerateFromTestResults(testResults []*types.TestResult, runID, testDir string) error {
	reportData := rg.builder.BuildFromTestResults(testResults, runID, testDir)
	return rg.GenerateReport(reportData)
}

// GenerateReport generates a report from pre-built report data
func (rg *ReportGenerator) GenerateReport(reportData *ReportData) error {
	content, err := rg.formatter.Format(reportData)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}

	if err := rg.writer.Write(content); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
