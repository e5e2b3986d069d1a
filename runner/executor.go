package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

var _ TestExecutor = (*goTestExecutor)(nil)

// TestExecutor runs groups of test functions that share a package through
// one go test invocation each, with timeout handling and result parsing.
type TestExecutor interface {
	// ExecuteGroup runs the given test functions of pkg and returns one
	// result per test. The returned error reports invocation failures
	// only; test failures live in the results.
	ExecuteGroup(ctx context.Context, pkg string, tests []types.TestMetadata) ([]*types.TestResult, error)
}

// CmdBuilder constructs the command for one test invocation. The returned
// cleanup runs after the command finishes.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// ExecutorConfig configures a goTestExecutor
type ExecutorConfig struct {
	Log        log.Logger
	TestDir    string
	GoBinary   string
	Timeout    time.Duration
	ExtraArgs  []string
	CmdBuilder CmdBuilder
	Parser     OutputParser
}

// goTestExecutor implements TestExecutor
type goTestExecutor struct {
	log        log.Logger
	testDir    string
	goBinary   string
	timeout    time.Duration
	extraArgs  []string
	cmdBuilder CmdBuilder
	parser     OutputParser
}

// NewTestExecutor creates a new test executor
func NewTestExecutor(cfg ExecutorConfig) (TestExecutor, error) {
	if cfg.TestDir == "" {
		return nil, fmt.Errorf("test directory cannot be empty")
	}
	if cfg.Parser == nil {
		return nil, fmt.Errorf("output parser cannot be nil")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.GoBinary == "" {
		cfg.GoBinary = DefaultGoBinary
	}
	if cfg.CmdBuilder == nil {
		cfg.CmdBuilder = dirCmdBuilder(cfg.TestDir)
	}

	return &goTestExecutor{
		log:        cfg.Log,
		testDir:    cfg.TestDir,
		goBinary:   cfg.GoBinary,
		timeout:    cfg.Timeout,
		extraArgs:  cfg.ExtraArgs,
		cmdBuilder: cfg.CmdBuilder,
		parser:     cfg.Parser,
	}, nil
}

// dirCmdBuilder returns a CmdBuilder anchored to the test directory
func dirCmdBuilder(dir string) CmdBuilder {
	return func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
		cmd := exec.CommandContext(ctx, name, arg...)
		cmd.Dir = dir
		return cmd, func() {}
	}
}

func (e *goTestExecutor) ExecuteGroup(ctx context.Context, pkg string, tests []types.TestMetadata) ([]*types.TestResult, error) {
	if len(tests) == 0 {
		return nil, nil
	}

	timeout := groupTimeout(tests, e.timeout)
	if timeout > 0 {
		var cancel func()
		// The go test -timeout below should fire first so failures carry
		// test-level detail; the extra 200ms lets it.
		ctx, cancel = context.WithTimeout(ctx, timeout+200*time.Millisecond)
		defer cancel()
	}

	args := e.buildGroupArgs(pkg, tests, timeout)
	cmd, cleanup := e.cmdBuilder(ctx, e.goBinary, args...)
	defer cleanup()

	stderrTail := newTailBuffer(testOutputTailBytes)
	cmd.Stderr = stderrTail
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	e.log.Info("Running test group", "package", pkg, "tests", len(tests))
	e.log.Debug("Running test command", "command", cmd.String(), "dir", cmd.Dir, "timeout", timeout)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start go test: %w", err)
	}

	results := e.parser.Parse(stdout, pkg, tests)
	runErr := cmd.Wait()
	duration := time.Since(start)

	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
	e.annotateResults(results, runErr, timedOut, timeout, stderrTail)

	e.log.Debug("Test group finished",
		"package", pkg,
		"duration", duration,
		"timedOut", timedOut,
		"runErr", runErr)

	return results, nil
}

// buildGroupArgs assembles the go test arguments for one package group
func (e *goTestExecutor) buildGroupArgs(pkg string, tests []types.TestMetadata, timeout time.Duration) []string {
	args := []string{TestCommand, JSONFlag, VerboseFlag, CountFlag, DisableCacheCount}

	if timeout > 0 {
		args = append(args, TimeoutFlag, timeout.String())
	}
	args = append(args, e.extraArgs...)
	args = append(args, pkg)
	args = append(args, RunFlag, runPattern(tests))

	return args
}

// runPattern builds the anchored -run expression selecting exactly the
// given test functions.
func runPattern(tests []types.TestMetadata) string {
	names := make([]string, 0, len(tests))
	for _, test := range tests {
		names = append(names, regexp.QuoteMeta(test.FuncName))
	}
	return fmt.Sprintf("^(%s)$", strings.Join(names, "|"))
}

// groupTimeout bounds one invocation. Every test of a group carries the
// same configured timeout, so the first entry decides; the executor's own
// timeout is the fallback.
func groupTimeout(tests []types.TestMetadata, fallback time.Duration) time.Duration {
	if len(tests) > 0 && tests[0].Timeout > 0 {
		return tests[0].Timeout
	}
	return fallback
}

// annotateResults upgrades synthesized no-result entries with what the
// process exit told us, and marks timeouts.
func (e *goTestExecutor) annotateResults(results []*types.TestResult, runErr error, timedOut bool, timeout time.Duration, stderrTail *tailBuffer) {
	stderr := strings.TrimSpace(stderrTail.String())

	for _, result := range results {
		if !errors.Is(result.Error, errNoResult) {
			continue
		}

		switch {
		case timedOut:
			result.Status = types.TestStatusFail
			result.TimedOut = true
			result.Error = fmt.Errorf("test exceeded timeout of %v", timeout)
		case runErr != nil:
			exitErr := &exec.ExitError{}
			if errors.As(runErr, &exitErr) && stderr != "" {
				// Typically a build failure reported on stderr.
				result.Error = fmt.Errorf("go test exited with code %d: %s", exitErr.ExitCode(), stderr)
			} else {
				result.Error = fmt.Errorf("failed to run go test: %w", runErr)
			}
		case stderr != "":
			result.Error = fmt.Errorf("%w\nstderr: %s", result.Error, stderr)
		}
	}
}
