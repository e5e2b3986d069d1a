package paratest

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-paratest/reporting"
	"github.com/ethereum-optimism/infra/op-paratest/runner"
	"github.com/ethereum-optimism/infra/op-paratest/ui"
)

// summaryBoxWidth is the rendered width of the boxed run summary
const summaryBoxWidth = 100

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *runner.RunnerResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger  log.Logger
	testDir string
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger, testDir string) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger:  logger,
		testDir: testDir,
	}
}

// FormatResults renders the results table to stdout, followed by a summary
// line for the whole run.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunnerResult) error {
	f.logger.Info("Printing results...")

	title := fmt.Sprintf("Parallel Test Results (%s)", formatDuration(result.Duration))
	data := reporting.NewReportBuilder().BuildFromRunnerResult(result, f.testDir)

	reporter := reporting.NewTableReporter(title, true)
	if err := reporter.PrintTable(data); err != nil {
		return fmt.Errorf("failed to render results table: %w", err)
	}

	fmt.Print(summaryBox(result))
	return nil
}

// summaryBox frames the run summary so it stands out beneath the table
func summaryBox(result *runner.RunnerResult) string {
	var b strings.Builder
	b.WriteString(ui.BuildBoxHeader(fmt.Sprintf("Run %s", result.RunID), summaryBoxWidth))
	b.WriteString(ui.BuildBoxLine(summaryLine(result), summaryBoxWidth))
	b.WriteString(ui.BuildBoxFooter(summaryBoxWidth))
	return b.String()
}

// summaryLine condenses the run outcome into a single line
func summaryLine(result *runner.RunnerResult) string {
	return fmt.Sprintf("%s %d/%d tests passed in %s (%d failed, %d skipped, %d errored, %d workers)",
		getResultString(result.Status),
		result.Stats.Passed,
		result.Stats.Total,
		formatDuration(result.Duration),
		result.Stats.Failed,
		result.Stats.Skipped,
		result.Stats.Errored,
		result.Workers)
}
