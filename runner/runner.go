package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-paratest/logging"
	"github.com/ethereum-optimism/infra/op-paratest/registry"
	"github.com/ethereum-optimism/infra/op-paratest/testlist"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// RunnerResult captures the complete test run results
type RunnerResult struct {
	Tests    map[string]*types.TestResult
	Status   types.TestStatus
	Duration time.Duration
	Stats    ResultStats
	RunID    string
	Workers  int

	// Logs holds the merged per-test log capture of the run.
	Logs *logging.Aggregator
}

// ResultStats tracks test statistics for a run
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Errored   int
	StartTime time.Time
	EndTime   time.Time
}

// TestRunner defines the interface for running a full parallel session
type TestRunner interface {
	RunAllTests(ctx context.Context) (*RunnerResult, error)
}

// Config holds configuration for creating a new runner
type Config struct {
	Registry  *registry.Registry
	TestDir   string
	Log       log.Logger
	GoBinary  string
	Workers   int
	Timeout   time.Duration
	ExtraArgs []string

	// SelfPath and CmdBuilder override how workers are spawned, for tests.
	SelfPath   string
	CmdBuilder CmdBuilder
}

// runner struct implements TestRunner
type runner struct {
	registry   *registry.Registry
	testDir    string
	log        log.Logger
	goBinary   string
	workers    int
	timeout    time.Duration
	extraArgs  []string
	selfPath   string
	cmdBuilder CmdBuilder
	runID      string
	tracer     trace.Tracer
}

var _ TestRunner = (*runner)(nil)

// NewTestRunner creates a new test runner instance
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.TestDir == "" {
		return nil, fmt.Errorf("test directory is required")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers cannot be negative")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.GoBinary == "" {
		cfg.GoBinary = DefaultGoBinary
	}
	if cfg.Workers > MaxReasonableWorkers {
		cfg.Log.Warn("Very high worker count requested", "workers", cfg.Workers,
			"recommendation", "Consider using lower values to avoid resource exhaustion")
	}

	cfg.Log.Debug("NewTestRunner()", "testDir", cfg.TestDir, "workers", cfg.Workers,
		"goBinary", cfg.GoBinary, "timeout", cfg.Timeout)

	return &runner{
		registry:   cfg.Registry,
		testDir:    cfg.TestDir,
		log:        cfg.Log,
		goBinary:   cfg.GoBinary,
		workers:    cfg.Workers,
		timeout:    cfg.Timeout,
		extraArgs:  cfg.ExtraArgs,
		selfPath:   cfg.SelfPath,
		cmdBuilder: cfg.CmdBuilder,
		tracer:     otel.Tracer("test runner"),
	}, nil
}

// RunAllTests implements the TestRunner interface. Discovery runs fresh on
// every call so periodic runs pick up test changes.
func (r *runner) RunAllTests(ctx context.Context) (*RunnerResult, error) {
	r.runID = uuid.New().String()
	defer func() {
		r.runID = ""
	}()

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("test run %s", r.runID))
	defer span.End()

	start := time.Now()
	r.log.Info("Starting parallel test run", "runID", r.runID, "testDir", r.testDir)

	tests, err := r.discoverTests()
	if err != nil {
		return nil, err
	}

	result := &RunnerResult{
		Tests: make(map[string]*types.TestResult),
		Stats: ResultStats{StartTime: start},
		RunID: r.runID,
		Logs:  logging.NewAggregator(r.log),
	}

	if len(tests) > 0 {
		if err := r.executeShards(ctx, tests, result); err != nil {
			return nil, err
		}
	} else {
		r.log.Warn("No tests selected, nothing to run", "testDir", r.testDir)
	}

	result.Duration = time.Since(start)
	result.Status = determineRunnerStatus(result)
	result.Stats.EndTime = time.Now()

	r.log.Info("Parallel test run complete",
		"runID", r.runID,
		"status", result.Status,
		"duration", result.Duration,
		"total", result.Stats.Total,
		"passed", result.Stats.Passed,
		"failed", result.Stats.Failed,
		"skipped", result.Stats.Skipped,
		"errored", result.Stats.Errored)

	return result, nil
}

// executeShards distributes tests over worker processes and merges their
// outcomes into result.
func (r *runner) executeShards(ctx context.Context, tests []types.TestMetadata, result *RunnerResult) error {
	workers := WorkerCount(r.effectiveWorkers(), len(tests))
	shards := BuildShards(tests, workers)
	result.Workers = len(shards)

	coordinator, err := NewCoordinator(CoordinatorConfig{
		Log:        r.log,
		TestDir:    r.testDir,
		GoBinary:   r.goBinary,
		Timeout:    r.timeout,
		ExtraArgs:  r.extraArgs,
		SelfPath:   r.selfPath,
		CmdBuilder: r.cmdBuilder,
	}, result.Logs)
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	r.log.Info("Sharded tests across workers", "tests", len(tests), "workers", len(shards))

	merged, err := coordinator.Run(ctx, r.runID, shards)
	if err != nil {
		return err
	}

	for _, test := range tests {
		testResult, ok := merged[test.ID]
		if !ok {
			testResult = newErroredTestResult(test,
				fmt.Errorf("no worker reported a result for this test"))
		}
		result.Tests[test.ID] = testResult
		result.Stats.addResult(testResult)
	}
	// Tests that ran without being selected, e.g. spawned dynamically.
	for id, testResult := range merged {
		if _, ok := result.Tests[id]; !ok {
			result.Tests[id] = testResult
			result.Stats.addResult(testResult)
		}
	}
	return nil
}

// discoverTests walks the module under test and applies the run plan
func (r *runner) discoverTests() ([]types.TestMetadata, error) {
	discovered, err := testlist.Discover(r.testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tests in %s: %w", r.testDir, err)
	}

	selected := r.registry.Filter(discovered)
	r.log.Info("Discovered tests", "found", len(discovered), "selected", len(selected))
	return selected, nil
}

// effectiveWorkers resolves the requested worker count: the explicit
// setting wins, then the run plan, then auto.
func (r *runner) effectiveWorkers() int {
	if r.workers > 0 {
		return r.workers
	}
	return r.registry.Workers()
}

// addResult folds one test outcome into the stats
func (s *ResultStats) addResult(result *types.TestResult) {
	s.Total++
	switch result.Status {
	case types.TestStatusPass:
		s.Passed++
	case types.TestStatusFail:
		s.Failed++
	case types.TestStatusSkip:
		s.Skipped++
	case types.TestStatusError:
		s.Errored++
	}
}

// determineRunnerStatus determines the overall status of the test run
func determineRunnerStatus(result *RunnerResult) types.TestStatus {
	if result.Stats.Failed > 0 || result.Stats.Errored > 0 {
		return types.TestStatusFail
	}
	if result.Stats.Total == 0 || result.Stats.Total == result.Stats.Skipped {
		return types.TestStatusSkip
	}
	return types.TestStatusPass
}

// SortedTestIDs returns the run's test IDs in display order
func (r *RunnerResult) SortedTestIDs() []string {
	ids := make([]string, 0, len(r.Tests))
	for id := range r.Tests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
