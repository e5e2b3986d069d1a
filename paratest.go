package paratest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum-optimism/infra/op-paratest/exitcodes"
	"github.com/ethereum-optimism/infra/op-paratest/registry"
	"github.com/ethereum-optimism/infra/op-paratest/reporting"
	"github.com/ethereum-optimism/infra/op-paratest/runner"
	"github.com/ethereum-optimism/infra/op-paratest/types"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// paratest implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &paratest{}

// paratest is the coordinator-side service: it drives parallel test runs,
// aggregates worker log snapshots and publishes the results.
type paratest struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	runner    runner.TestRunner
	scheduler TestScheduler
	formatter ResultFormatter
	reporter  MetricsReporter
	sinks     []reporting.ResultSink
	result    *runner.RunnerResult

	statusRecorder   func(status string) // Optional hook feeding the health endpoint
	shutdownCallback func(error)         // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*paratest, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating op-paratest with config",
		"testDir", config.TestDir,
		"plan", config.PlanFile,
		"workers", config.Workers,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:            config.Log,
		PlanFile:       config.PlanFile,
		DefaultTimeout: config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	// Create runner with registry
	testRunner, err := runner.NewTestRunner(runner.Config{
		Registry:  reg,
		TestDir:   config.TestDir,
		Log:       config.Log,
		GoBinary:  config.GoBinary,
		Workers:   config.Workers,
		Timeout:   config.Timeout,
		ExtraArgs: config.ExtraArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}

	htmlSink, err := reporting.NewHTMLSink(config.LogDir, config.TestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTML sink: %w", err)
	}

	p := &paratest{
		ctx:       ctx,
		config:    config,
		version:   version,
		registry:  reg,
		runner:    testRunner,
		scheduler: NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log),
		formatter: NewConsoleResultFormatter(config.Log, config.TestDir),
		reporter:  NewDefaultMetricsReporter(),
		sinks: []reporting.ResultSink{
			reporting.NewTextSummarySink(config.LogDir, config.TestDir, true),
			reporting.NewJSONResultsSink(config.LogDir, config.TestDir),
			htmlSink,
		},
		shutdownCallback: shutdownCallback,
	}
	p.scheduler.RegisterCallback(p.runTests)

	config.Log.Info("paratest.New: created registry, test runner and scheduler")
	return p, nil
}

// Start runs the parallel test session, once or periodically at the
// configured interval. Start implements the cliapp.Lifecycle interface.
func (p *paratest) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			p.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	p.ctx = ctx

	if p.config.RunOnce {
		p.config.Log.Info("Starting op-paratest in run-once mode")
	} else {
		p.config.Log.Info("Starting op-paratest in continuous mode", "interval", p.config.RunInterval)
	}

	if err := p.scheduler.Start(ctx); err != nil {
		// This is a runtime error (not a test failure)
		p.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	// If in run-once mode, trigger shutdown and return
	if p.config.RunOnce {
		p.config.Log.Info("Tests completed, exiting (run-once mode)")

		// Check if any tests failed and return appropriate exit code
		if p.result != nil && p.result.Status == types.TestStatusFail {
			p.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			// Return exit code 1 for test failures (assertions failed)
			return NewTestFailureError(summaryLine(p.result))
		}

		// Only need to call this when we're in run-once mode and all tests passed
		go func() {
			p.shutdownCallback(nil)
		}()
		return nil // Success (exit code 0)
	}

	p.config.Log.Debug("op-paratest started successfully")
	return nil
}

// runTests runs a full parallel session and publishes the results
func (p *paratest) runTests() error {
	p.config.Log.Info("Running all tests...")
	result, err := p.runner.RunAllTests(p.ctx)
	if err != nil {
		// This is a runtime error (not a test failure)
		p.config.Log.Error("Runtime error running tests", "error", err)
		return NewRuntimeError(err)
	}
	p.result = result

	if err := p.formatter.FormatResults(result); err != nil {
		p.config.Log.Error("Error formatting results", "error", err)
	}

	// The merged per-test log report, filtered by outcome and verbosity.
	if err := result.Logs.PrintReport(p.config.NoCapture, p.config.ShowInfo); err != nil {
		p.config.Log.Error("Error printing test log report", "error", err)
	}

	p.writeArtifacts(result)
	p.reporter.ReportResults(result.RunID, result)
	if p.statusRecorder != nil {
		p.statusRecorder(string(result.Status))
	}

	p.config.Log.Info("Test run completed", "run_id", result.RunID, "status", result.Status)
	return nil
}

// writeArtifacts feeds every result through the configured sinks. Artifact
// failures are reported and do not fail the run.
func (p *paratest) writeArtifacts(result *runner.RunnerResult) {
	for _, sink := range p.sinks {
		for _, id := range result.SortedTestIDs() {
			if err := sink.Consume(result.Tests[id], result.RunID); err != nil {
				p.config.Log.Error("Error consuming test result", "test", id, "error", err)
			}
		}

		var err error
		if timed, ok := sink.(interface {
			CompleteWithTiming(runID string, wallClockTime time.Duration) error
		}); ok {
			err = timed.CompleteWithTiming(result.RunID, result.Duration)
		} else {
			err = sink.Complete(result.RunID)
		}
		if err != nil {
			p.config.Log.Error("Error writing run artifact", "error", err)
		}
	}

	p.config.Log.Info("Wrote run artifacts",
		"dir", reporting.RunDirectory(p.config.LogDir, result.RunID))
}

// Stop stops the op-paratest service.
// Stop implements the cliapp.Lifecycle interface.
func (p *paratest) Stop(ctx context.Context) error {
	p.config.Log.Info("Stopping op-paratest")

	if p.scheduler.Stopped() {
		p.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	if err := p.scheduler.Stop(); err != nil {
		return err
	}

	p.config.Log.Info("op-paratest stopped successfully")
	return nil
}

// Stopped returns true if the op-paratest service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (p *paratest) Stopped() bool {
	return p.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (p *paratest) WaitForShutdown(ctx context.Context) error {
	return p.scheduler.WaitForShutdown(ctx)
}

// Result returns the most recent run result, nil before the first run
func (p *paratest) Result() *runner.RunnerResult {
	return p.result
}

// WithRunStatusRecorder registers a hook invoked with the status of every
// completed run. The health endpoint uses it in continuous mode.
func (p *paratest) WithRunStatusRecorder(record func(status string)) {
	p.statusRecorder = record
}
