package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-paratest/logging"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// ErrTestFailures signals that a session completed but at least one test
// failed or errored. Callers map it to the test-failure exit code.
var ErrTestFailures = errors.New("one or more tests failed")

// WorkerConfig configures one worker-process session
type WorkerConfig struct {
	Log        log.Logger
	TestDir    string
	GoBinary   string
	Timeout    time.Duration
	SharedDir  string
	WorkerID   string
	ResultFile string
	ExtraArgs  []string

	// Stdin supplies the shard assignment; defaults to os.Stdin.
	Stdin io.Reader
	// CmdBuilder overrides how go test commands are constructed, for tests.
	CmdBuilder CmdBuilder
}

// WorkerSession is the worker half of a parallel run. It executes the
// shard it is handed on stdin, captures per-test log output into the
// shared directory, and writes its result file for the coordinator.
type WorkerSession struct {
	log        log.Logger
	cfg        WorkerConfig
	aggregator *logging.Aggregator
	hooks      logging.SessionHooks
	executor   TestExecutor
}

// NewWorkerSession creates a worker session from its spawn configuration
func NewWorkerSession(cfg WorkerConfig) (*WorkerSession, error) {
	if cfg.TestDir == "" {
		return nil, fmt.Errorf("test directory is required")
	}
	if cfg.SharedDir == "" {
		return nil, fmt.Errorf("shared directory is required")
	}
	if cfg.WorkerID == "" {
		return nil, fmt.Errorf("worker id is required")
	}
	if cfg.ResultFile == "" {
		return nil, fmt.Errorf("result file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}

	aggregator := logging.NewAggregator(cfg.Log)
	parser := NewOutputParser(cfg.Log, newAggregatorSink(aggregator))

	executor, err := NewTestExecutor(ExecutorConfig{
		Log:        cfg.Log,
		TestDir:    cfg.TestDir,
		GoBinary:   cfg.GoBinary,
		Timeout:    cfg.Timeout,
		ExtraArgs:  cfg.ExtraArgs,
		CmdBuilder: cfg.CmdBuilder,
		Parser:     parser,
	})
	if err != nil {
		return nil, err
	}

	return &WorkerSession{
		log:        cfg.Log.New("worker", cfg.WorkerID),
		cfg:        cfg,
		aggregator: aggregator,
		hooks:      aggregator,
		executor:   executor,
	}, nil
}

// Aggregator exposes the session's log aggregator
func (s *WorkerSession) Aggregator() *logging.Aggregator {
	return s.aggregator
}

// Run executes the whole worker session. It returns ErrTestFailures when
// tests failed, any other error when the session itself could not run.
func (s *WorkerSession) Run(ctx context.Context) error {
	shard, err := readShard(s.cfg.Stdin)
	if err != nil {
		return fmt.Errorf("failed to decode shard assignment: %w", err)
	}
	if shard.WorkerID != "" && shard.WorkerID != s.cfg.WorkerID {
		return fmt.Errorf("shard assignment addressed to %q, not %q", shard.WorkerID, s.cfg.WorkerID)
	}

	if err := s.hooks.OnWorkerSetup(s.cfg.SharedDir, s.cfg.WorkerID); err != nil {
		return fmt.Errorf("failed to register log aggregation: %w", err)
	}

	s.log.Info("Worker session starting", "tests", len(shard.Tests))

	var results []*types.TestResult
	for _, group := range groupByPackage(shard.Tests) {
		pkg := group[0].Package

		groupResults, err := s.executor.ExecuteGroup(ctx, pkg, group)
		if err != nil {
			s.log.Error("Test group failed to run", "package", pkg, "err", err)
			for _, test := range group {
				s.hooks.OnTestReportFinal(test.ID, true)
				results = append(results, newErroredTestResult(test, err))
			}
			continue
		}
		results = append(results, groupResults...)
	}

	for _, result := range results {
		result.WorkerID = s.cfg.WorkerID
	}

	// The logs are already on disk from the per-test syncs; a failure here
	// only loses the final resync, not the results.
	if err := s.hooks.OnSessionFinish(); err != nil {
		s.log.Warn("Failed to sync final test logs", "err", err)
	}

	report := &WorkerReport{WorkerID: s.cfg.WorkerID, Results: NewResultRecords(results)}
	if err := WriteWorkerReport(s.cfg.ResultFile, report); err != nil {
		return err
	}

	failed := 0
	for _, result := range results {
		if result.Status == types.TestStatusFail || result.Status == types.TestStatusError {
			failed++
		}
	}
	s.log.Info("Worker session finished", "tests", len(results), "failed", failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d tests failed: %w", failed, len(results), ErrTestFailures)
	}
	return nil
}

// readShard decodes the shard assignment from the coordinator
func readShard(r io.Reader) (Shard, error) {
	var shard Shard
	err := json.NewDecoder(r).Decode(&shard)
	return shard, err
}

var _ OutputSink = (*aggregatorSink)(nil)

// aggregatorSink routes the parsed test lifecycle into the log aggregator:
// output lines become leveled entries attributed to the running test, and
// terminal events mark failures and trigger the per-test sync.
type aggregatorSink struct {
	aggregator *logging.Aggregator
	hooks      logging.SessionHooks
}

func newAggregatorSink(aggregator *logging.Aggregator) *aggregatorSink {
	return &aggregatorSink{aggregator: aggregator, hooks: aggregator}
}

func (s *aggregatorSink) TestStarted(test types.TestMetadata) {
	s.aggregator.SetCurrentTest(test.ID)
}

func (s *aggregatorSink) TestOutput(test types.TestMetadata, line string) {
	message, level, keep := logging.ClassifyOutput(line)
	if !keep {
		return
	}
	s.aggregator.SetCurrentTest(test.ID)
	s.aggregator.Log(level, message)
}

func (s *aggregatorSink) TestFinished(result *types.TestResult) {
	s.aggregator.ClearCurrentTest()
	failed := result.Status == types.TestStatusFail || result.Status == types.TestStatusError
	s.hooks.OnTestReportFinal(result.Metadata.ID, failed)
}
