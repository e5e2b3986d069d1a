package reporting

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum-optimism/infra/op-paratest/runner"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// ReportStats contains aggregated statistics for a test run
type ReportStats struct {
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	Errored  int
	Timeouts int
	PassRate float64
}

// ReportTestItem represents a single test outcome in the report
type ReportTestItem struct {
	// Identity
	ID      string // Unique identifier, package::function
	Name    string // Display name, the test function
	Package string // Package import path
	Worker  string // Worker process that ran the test

	// Status and Results
	Status   types.TestStatus
	Error    error // Error if failed
	Duration time.Duration
	TimedOut bool
}

// ReportPackage groups the report rows of one Go package
type ReportPackage struct {
	Name     string
	Status   types.TestStatus
	Duration time.Duration
	Stats    ReportStats
	Tests    []ReportTestItem
}

// ReportData contains all the structured data needed for any report format
type ReportData struct {
	// Run Information
	RunID        string
	TestDir      string
	Timestamp    time.Time
	Duration     time.Duration
	DurationText string
	Workers      int

	// Overall Statistics
	Stats        ReportStats
	PassRate     float64
	PassRateText string
	HasFailures  bool
	HasTimeouts  bool

	// Per-package grouping, ordered by package path
	Packages []ReportPackage

	// Flat Lists (for table-style outputs)
	AllTests     []ReportTestItem // All tests in flat list
	FailedTests  []ReportTestItem // Only failed tests
	TimeoutTests []ReportTestItem // Only timed out tests

	// Summary Lists
	FailedTestNames  []string
	TimeoutTestNames []string
}

// ReportBuilder constructs ReportData from test results
type ReportBuilder struct {
	wallClock time.Duration
	workers   int
}

// NewReportBuilder creates a new report builder
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{}
}

// WithWallClock sets the wall-clock duration of the run. Without it the
// report duration is the sum of the test durations, which overstates
// elapsed time when tests ran in parallel.
func (rb *ReportBuilder) WithWallClock(d time.Duration) *ReportBuilder {
	rb.wallClock = d
	return rb
}

// WithWorkers records how many worker processes the run used
func (rb *ReportBuilder) WithWorkers(n int) *ReportBuilder {
	rb.workers = n
	return rb
}

// BuildFromRunnerResult creates a ReportData from a full runner result
func (rb *ReportBuilder) BuildFromRunnerResult(result *runner.RunnerResult, testDir string) *ReportData {
	testResults := make([]*types.TestResult, 0, len(result.Tests))
	for _, id := range result.SortedTestIDs() {
		testResults = append(testResults, result.Tests[id])
	}
	return rb.WithWallClock(result.Duration).
		WithWorkers(result.Workers).
		BuildFromTestResults(testResults, result.RunID, testDir)
}

// BuildFromTestResults creates a ReportData from a collection of TestResults
func (rb *ReportBuilder) BuildFromTestResults(testResults []*types.TestResult, runID, testDir string) *ReportData {
	report := &ReportData{
		RunID:            runID,
		TestDir:          testDir,
		Timestamp:        time.Now(),
		Workers:          rb.workers,
		Packages:         make([]ReportPackage, 0),
		AllTests:         make([]ReportTestItem, 0, len(testResults)),
		FailedTests:      make([]ReportTestItem, 0),
		TimeoutTests:     make([]ReportTestItem, 0),
		FailedTestNames:  make([]string, 0),
		TimeoutTestNames: make([]string, 0),
	}

	// Deterministic report order regardless of which worker finished first
	sorted := make([]*types.TestResult, len(testResults))
	copy(sorted, testResults)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Metadata.Package != sorted[j].Metadata.Package {
			return sorted[i].Metadata.Package < sorted[j].Metadata.Package
		}
		return sorted[i].Metadata.GetName() < sorted[j].Metadata.GetName()
	})

	packageMap := make(map[string]*ReportPackage)
	packageOrder := make([]string, 0)

	var totalDuration time.Duration
	for _, testResult := range sorted {
		item := rb.createTestItem(testResult)

		report.AllTests = append(report.AllTests, item)
		totalDuration += testResult.Duration
		rb.updateStats(&report.Stats, item.Status, item.TimedOut)

		if item.Status == types.TestStatusFail || item.Status == types.TestStatusError {
			report.FailedTests = append(report.FailedTests, item)
			// Include package name in the summary lists so the names stay
			// unambiguous across packages
			fullName := item.Name
			if item.Package != "" {
				fullName = fmt.Sprintf("%s.%s", item.Package, item.Name)
			}
			if item.TimedOut {
				report.TimeoutTests = append(report.TimeoutTests, item)
				report.TimeoutTestNames = append(report.TimeoutTestNames, fullName)
			} else {
				report.FailedTestNames = append(report.FailedTestNames, fullName)
			}
		}

		pkg, exists := packageMap[item.Package]
		if !exists {
			pkg = &ReportPackage{
				Name:   item.Package,
				Status: types.TestStatusPass,
				Tests:  make([]ReportTestItem, 0),
			}
			packageMap[item.Package] = pkg
			packageOrder = append(packageOrder, item.Package)
		}
		pkg.Tests = append(pkg.Tests, item)
	}

	// Per-package statistics and statuses
	for _, name := range packageOrder {
		pkg := packageMap[name]
		for _, test := range pkg.Tests {
			rb.updateStats(&pkg.Stats, test.Status, test.TimedOut)
			pkg.Duration += test.Duration
		}
		pkg.Status = rb.determineStatus(pkg.Stats)
		report.Packages = append(report.Packages, *pkg)
	}

	report.Duration = totalDuration
	if rb.wallClock > 0 {
		report.Duration = rb.wallClock
	}
	report.DurationText = formatDuration(report.Duration)

	if report.Stats.Total > 0 {
		report.Stats.PassRate = float64(report.Stats.Passed) / float64(report.Stats.Total) * 100
		report.PassRate = report.Stats.PassRate
		report.PassRateText = fmt.Sprintf("%.1f", report.PassRate)
	}

	report.HasFailures = report.Stats.Failed+report.Stats.Errored > 0
	report.HasTimeouts = report.Stats.Timeouts > 0

	return report
}

// Overall reduces the run to a single status. A run fails when any test
// failed or errored, and counts as skipped when nothing actually ran.
func (report *ReportData) Overall() types.TestStatus {
	if report.HasFailures {
		return types.TestStatusFail
	}
	if report.Stats.Total == 0 || report.Stats.Total == report.Stats.Skipped {
		return types.TestStatusSkip
	}
	return types.TestStatusPass
}

// determineStatus determines the status of a group based on its statistics
func (rb *ReportBuilder) determineStatus(stats ReportStats) types.TestStatus {
	if stats.Failed > 0 || stats.Errored > 0 {
		return types.TestStatusFail
	}
	if stats.Skipped > 0 && stats.Passed == 0 {
		return types.TestStatusSkip
	}
	return types.TestStatusPass
}

// createTestItem creates a ReportTestItem from a TestResult
func (rb *ReportBuilder) createTestItem(testResult *types.TestResult) ReportTestItem {
	name := testResult.Metadata.GetName()
	if name == "" {
		name = testResult.Metadata.ID
	}

	return ReportTestItem{
		ID:       testResult.Metadata.ID,
		Name:     name,
		Package:  testResult.Metadata.Package,
		Worker:   testResult.WorkerID,
		Status:   testResult.Status,
		Error:    testResult.Error,
		Duration: testResult.Duration,
		TimedOut: testResult.TimedOut,
	}
}

// updateStats updates statistics counters
func (rb *ReportBuilder) updateStats(stats *ReportStats, status types.TestStatus, timedOut bool) {
	stats.Total++

	switch status {
	case types.TestStatusPass:
		stats.Passed++
	case types.TestStatusFail:
		stats.Failed++
	case types.TestStatusSkip:
		stats.Skipped++
	case types.TestStatusError:
		stats.Errored++
	}

	if timedOut {
		stats.Timeouts++
	}
}
