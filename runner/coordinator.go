package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-paratest/logging"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// CoordinatorConfig configures the coordinator side of a parallel run
type CoordinatorConfig struct {
	Log       log.Logger
	TestDir   string
	GoBinary  string
	Timeout   time.Duration
	ExtraArgs []string

	// SelfPath is the binary spawned as workers; defaults to the current
	// executable.
	SelfPath string
	// CmdBuilder overrides subprocess construction, for tests.
	CmdBuilder CmdBuilder
}

// Coordinator spawns one worker subprocess per shard, joins them all, and
// merges their result files. Log snapshots are merged by the aggregator's
// session-finish hook once every worker has exited.
type Coordinator struct {
	log        log.Logger
	cfg        CoordinatorConfig
	aggregator *logging.Aggregator
	hooks      logging.SessionHooks
	tracer     trace.Tracer
}

// workerOutcome carries one worker's results back from its supervising
// goroutine.
type workerOutcome struct {
	shard   Shard
	results []*types.TestResult
}

// NewCoordinator creates a new coordinator sharing the given aggregator
func NewCoordinator(cfg CoordinatorConfig, aggregator *logging.Aggregator) (*Coordinator, error) {
	if cfg.TestDir == "" {
		return nil, fmt.Errorf("test directory is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.SelfPath == "" {
		selfPath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve own executable: %w", err)
		}
		cfg.SelfPath = selfPath
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
			return exec.CommandContext(ctx, name, arg...), func() {}
		}
	}

	return &Coordinator{
		log:        cfg.Log,
		cfg:        cfg,
		aggregator: aggregator,
		hooks:      aggregator,
		tracer:     otel.Tracer("test coordinator"),
	}, nil
}

// Run launches one worker per shard and blocks until every worker has
// exited. It returns a result for every test of every shard; a worker
// that fails to report yields errored results instead of failing the run.
func (c *Coordinator) Run(ctx context.Context, runID string, shards []Shard) (map[string]*types.TestResult, error) {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("parallel run %s", runID))
	defer span.End()

	// The shared root carries the run identity, so snapshot directories
	// from distinct runs can never collide on worker IDs.
	sharedRoot := filepath.Join(os.TempDir(), "op-paratest-"+runID)
	if err := os.MkdirAll(sharedRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create shared log directory: %w", err)
	}
	if err := c.hooks.OnConfigure(sharedRoot); err != nil {
		_ = os.RemoveAll(sharedRoot)
		return nil, fmt.Errorf("failed to register log aggregation: %w", err)
	}
	// Merges the worker snapshots into the aggregator and removes the
	// shared root. Runs only after the join below, so no snapshot is read
	// while a worker could still be writing.
	defer func() {
		if err := c.hooks.OnSessionFinish(); err != nil {
			c.log.Warn("Failed to finalize log aggregation", "err", err)
		}
	}()

	resultDir, err := os.MkdirTemp("", "op-paratest-results-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(resultDir)
	}()

	c.log.Info("Starting parallel test execution", "workers", len(shards), "runID", runID)

	outcomes := make(chan workerOutcome, len(shards))
	var wg sync.WaitGroup
	for _, shard := range shards {
		wg.Add(1)
		go func(shard Shard) {
			defer wg.Done()
			outcomes <- c.runWorker(ctx, shard, sharedRoot, resultDir)
		}(shard)
	}
	wg.Wait()
	close(outcomes)

	merged := make(map[string]*types.TestResult)
	for outcome := range outcomes {
		for _, result := range outcome.results {
			merged[result.Metadata.ID] = result
		}
	}

	if ctx.Err() != nil {
		return merged, fmt.Errorf("parallel run interrupted: %w", ctx.Err())
	}
	return merged, nil
}

// runWorker supervises one worker subprocess from spawn to result file
func (c *Coordinator) runWorker(ctx context.Context, shard Shard, sharedRoot, resultDir string) workerOutcome {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("worker %s", shard.WorkerID))
	defer span.End()

	resultFile := filepath.Join(resultDir, shard.WorkerID+".json")

	payload, err := json.Marshal(shard)
	if err != nil {
		return c.fallout(shard, fmt.Errorf("failed to encode shard assignment: %w", err))
	}

	args := c.buildWorkerArgs(shard, sharedRoot, resultFile)
	cmd, cleanup := c.cfg.CmdBuilder(ctx, c.cfg.SelfPath, args...)
	defer cleanup()

	stdoutTail := newTailBuffer(workerOutputTailBytes)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = stdoutTail
	// Worker logs go to stderr and stream through as they happen.
	cmd.Stderr = os.Stderr
	cmd.Env = telemetry.InstrumentEnvironment(ctx, os.Environ())

	c.log.Info("Spawning worker", "worker", shard.WorkerID, "tests", len(shard.Tests))
	c.log.Debug("Worker command", "worker", shard.WorkerID, "command", cmd.String())

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	report, readErr := ReadWorkerReport(resultFile)
	if readErr != nil {
		err := fmt.Errorf("worker %s produced no usable result file: %w", shard.WorkerID, readErr)
		if runErr != nil {
			err = fmt.Errorf("worker %s failed: %w", shard.WorkerID, runErr)
		}
		c.log.Error("Worker produced no results, marking its tests as errored",
			"worker", shard.WorkerID,
			"duration", duration,
			"err", err,
			"stdout", stdoutTail.String())
		return c.fallout(shard, err)
	}

	if runErr != nil && !isTestFailureExit(runErr) {
		c.log.Error("Worker exited abnormally", "worker", shard.WorkerID, "err", runErr)
	}
	c.log.Info("Worker finished", "worker", shard.WorkerID, "duration", duration)

	return workerOutcome{shard: shard, results: resultsFromReport(report, shard)}
}

// buildWorkerArgs assembles the spawn arguments for one worker
func (c *Coordinator) buildWorkerArgs(shard Shard, sharedRoot, resultFile string) []string {
	args := []string{WorkerCommand,
		"--test-dir", c.cfg.TestDir,
		"--shared-dir", sharedRoot,
		"--worker-id", shard.WorkerID,
		"--result-file", resultFile,
	}
	if c.cfg.GoBinary != "" {
		args = append(args, "--go-binary", c.cfg.GoBinary)
	}
	if c.cfg.Timeout > 0 {
		args = append(args, "--timeout", c.cfg.Timeout.String())
	}
	if len(c.cfg.ExtraArgs) > 0 {
		args = append(args, "--")
		args = append(args, c.cfg.ExtraArgs...)
	}
	return args
}

// resultsFromReport converts a worker report, synthesizing errored results
// for shard tests the report is missing.
func resultsFromReport(report *WorkerReport, shard Shard) []*types.TestResult {
	records := make(map[string]ResultRecord, len(report.Results))
	order := make([]string, 0, len(report.Results))
	for _, record := range report.Results {
		records[record.ID] = record
		order = append(order, record.ID)
	}

	seen := make(map[string]bool, len(shard.Tests))
	results := make([]*types.TestResult, 0, len(shard.Tests))
	for _, test := range shard.Tests {
		seen[test.ID] = true
		if record, ok := records[test.ID]; ok {
			results = append(results, record.ToTestResult(report.WorkerID))
			continue
		}
		results = append(results, newErroredTestResult(test,
			fmt.Errorf("worker %s reported no result for this test", report.WorkerID)))
	}
	for _, id := range order {
		if !seen[id] {
			results = append(results, records[id].ToTestResult(report.WorkerID))
		}
	}

	return results
}

// fallout marks every test of a shard as errored
func (c *Coordinator) fallout(shard Shard, err error) workerOutcome {
	results := make([]*types.TestResult, 0, len(shard.Tests))
	for _, test := range shard.Tests {
		result := newErroredTestResult(test, err)
		result.WorkerID = shard.WorkerID
		results = append(results, result)
	}
	return workerOutcome{shard: shard, results: results}
}

// isTestFailureExit reports whether err is the normal exit of a worker
// whose tests failed, as opposed to a crashed or misconfigured worker.
func isTestFailureExit(err error) bool {
	exitErr := &exec.ExitError{}
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 1
}
