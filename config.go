package paratest

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-paratest/flags"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	TestDir     string        // Module directory to discover tests in
	PlanFile    string        // Optional YAML run plan selecting tests
	GoBinary    string        // Go binary used for test invocations
	Workers     int           // Number of worker processes (0 = auto-determine)
	RunInterval time.Duration // Interval between test runs
	RunOnce     bool          // Indicates if the service should exit after one test run
	Timeout     time.Duration // Timeout for one go test invocation, overrides the run plan
	LogDir      string        // Directory to store run artifacts
	ShowInfo    bool          // Include INFO-level messages in the test log report
	NoCapture   bool          // Show every buffered message regardless of level and outcome
	ExtraArgs   []string      // Arguments after "--", passed through to go test
	Log         log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	testDir := ctx.String(flags.TestDir.Name)
	if testDir == "" {
		return nil, errors.New("test directory is required")
	}
	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}

	// The plan file is optional, but an explicitly requested plan that does
	// not resolve is a configuration error, caught later by the registry.
	var absPlanFile string
	if planFile := ctx.String(flags.Plan.Name); planFile != "" {
		absPlanFile, err = filepath.Abs(planFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for plan file '%s': %w", planFile, err)
		}
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	workers := ctx.Int(flags.Workers.Name)
	if workers < 0 {
		return nil, fmt.Errorf("workers cannot be negative, got %d", workers)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		TestDir:     absTestDir,
		PlanFile:    absPlanFile,
		GoBinary:    ctx.String(flags.GoBinary.Name),
		Workers:     workers,
		RunInterval: runInterval,
		RunOnce:     runOnce,
		Timeout:     ctx.Duration(flags.Timeout.Name),
		LogDir:      logDir,
		ShowInfo:    ctx.Bool(flags.ShowInfo.Name),
		NoCapture:   ctx.Bool(flags.NoCapture.Name),
		ExtraArgs:   ctx.Args().Slice(),
		Log:         log,
	}, nil
}
