package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-paratest/registry"
	"github.com/ethereum-optimism/infra/op-paratest/testlist"
	"github.com/ethereum-optimism/infra/op-paratest/types"
)

func writeFixtureModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	gomod := "module example.com/fixture\n\ngo 1.22\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0644))
	for rel, src := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	}
	return dir
}

func keepAllRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.NewRegistry(registry.Config{
		Log:            log.New(),
		DefaultTimeout: time.Minute,
	})
	require.NoError(t, err)
	return reg
}

// simulatedWorkers precomputes the shard each worker will be handed and
// returns a CmdBuilder that writes the matching report instead of spawning
// a real worker. statusFor decides each test's outcome.
func simulatedWorkers(t *testing.T, testDir string, workers int, statusFor func(test types.TestMetadata) *types.TestResult) CmdBuilder {
	t.Helper()
	discovered, err := testlist.Discover(testDir)
	require.NoError(t, err)

	reports := make(map[string]*WorkerReport)
	for _, shard := range BuildShards(discovered, workers) {
		results := make([]*types.TestResult, 0, len(shard.Tests))
		for _, test := range shard.Tests {
			results = append(results, statusFor(test))
		}
		reports[shard.WorkerID] = &WorkerReport{WorkerID: shard.WorkerID, Results: NewResultRecords(results)}
	}

	return func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
		workerID := flagValue(t, arg, "--worker-id")
		resultFile := flagValue(t, arg, "--result-file")
		require.NoError(t, WriteWorkerReport(resultFile, reports[workerID]))
		return exec.CommandContext(ctx, "true"), func() {}
	}
}

func TestNewTestRunner_Validation(t *testing.T) {
	reg := keepAllRegistry(t)

	_, err := NewTestRunner(Config{TestDir: "/tmp/tests"})
	require.Error(t, err)
	assert.Equal(t, "registry is required", err.Error())

	_, err = NewTestRunner(Config{Registry: reg})
	require.Error(t, err)
	assert.Equal(t, "test directory is required", err.Error())

	_, err = NewTestRunner(Config{Registry: reg, TestDir: "/tmp/tests", Workers: -1})
	require.Error(t, err)
	assert.Equal(t, "workers cannot be negative", err.Error())

	runner, err := NewTestRunner(Config{Registry: reg, TestDir: "/tmp/tests"})
	require.NoError(t, err)
	assert.NotNil(t, runner)
}

func TestRunAllTests(t *testing.T) {
	testDir := writeFixtureModule(t, map[string]string{
		"pkg1/alpha_test.go": `package pkg1

import "testing"

func TestAlpha(t *testing.T) {}

func TestBeta(t *testing.T) {}
`,
		"pkg2/gamma_test.go": `package pkg2

import "testing"

func TestGamma(t *testing.T) {}
`,
	})

	builder := simulatedWorkers(t, testDir, 2, func(test types.TestMetadata) *types.TestResult {
		result := &types.TestResult{Metadata: test, Status: types.TestStatusPass, Duration: 10 * time.Millisecond}
		if test.FuncName == "TestBeta" {
			result.Status = types.TestStatusFail
			result.Error = errors.New("beta assertion failed")
		}
		return result
	})

	r, err := NewTestRunner(Config{
		Registry:   keepAllRegistry(t),
		TestDir:    testDir,
		Log:        log.New(),
		Workers:    2,
		SelfPath:   "/bin/op-paratest",
		CmdBuilder: builder,
	})
	require.NoError(t, err)

	result, err := r.RunAllTests(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TestStatusFail, result.Status)
	assert.Equal(t, 3, result.Stats.Total)
	assert.Equal(t, 2, result.Stats.Passed)
	assert.Equal(t, 1, result.Stats.Failed)
	assert.Equal(t, 0, result.Stats.Errored)
	assert.Equal(t, 2, result.Workers)
	assert.NotEmpty(t, result.RunID)
	assert.NotNil(t, result.Logs)
	assert.Positive(t, result.Duration)
	assert.False(t, result.Stats.EndTime.Before(result.Stats.StartTime))

	assert.Equal(t, []string{
		"example.com/fixture/pkg1::TestAlpha",
		"example.com/fixture/pkg1::TestBeta",
		"example.com/fixture/pkg2::TestGamma",
	}, result.SortedTestIDs())

	beta := result.Tests["example.com/fixture/pkg1::TestBeta"]
	require.NotNil(t, beta)
	assert.Equal(t, types.TestStatusFail, beta.Status)
	require.Error(t, beta.Error)
	assert.Contains(t, beta.Error.Error(), "beta assertion failed")
	assert.NotEmpty(t, beta.WorkerID, "results should identify the worker that ran them")
}

func TestRunAllTests_AllPassing(t *testing.T) {
	testDir := writeFixtureModule(t, map[string]string{
		"pkg1/one_test.go": `package pkg1

import "testing"

func TestOne(t *testing.T) {}
`,
	})

	builder := simulatedWorkers(t, testDir, 1, func(test types.TestMetadata) *types.TestResult {
		return &types.TestResult{Metadata: test, Status: types.TestStatusPass, Duration: time.Millisecond}
	})

	r, err := NewTestRunner(Config{
		Registry:   keepAllRegistry(t),
		TestDir:    testDir,
		Log:        log.New(),
		SelfPath:   "/bin/op-paratest",
		CmdBuilder: builder,
	})
	require.NoError(t, err)

	result, err := r.RunAllTests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusPass, result.Status)
	assert.Equal(t, 1, result.Stats.Total)
	assert.Equal(t, 1, result.Workers)
}

func TestRunAllTests_NothingSelected(t *testing.T) {
	testDir := writeFixtureModule(t, map[string]string{
		"pkg1/code.go": "package pkg1\n",
	})

	r, err := NewTestRunner(Config{
		Registry: keepAllRegistry(t),
		TestDir:  testDir,
		Log:      log.New(),
		SelfPath: "/bin/op-paratest",
	})
	require.NoError(t, err)

	result, err := r.RunAllTests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.TestStatusSkip, result.Status)
	assert.Equal(t, 0, result.Stats.Total)
	assert.Equal(t, 0, result.Workers)
	assert.NotNil(t, result.Logs, "the log aggregator is available even for empty runs")
}

func TestRunAllTests_DiscoveryFailure(t *testing.T) {
	r, err := NewTestRunner(Config{
		Registry: keepAllRegistry(t),
		TestDir:  t.TempDir(),
		Log:      log.New(),
		SelfPath: "/bin/op-paratest",
	})
	require.NoError(t, err)

	_, err = r.RunAllTests(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover tests")
}

func TestRunAllTests_FreshRunID(t *testing.T) {
	testDir := writeFixtureModule(t, map[string]string{
		"pkg1/one_test.go": `package pkg1

import "testing"

func TestOne(t *testing.T) {}
`,
	})

	builder := simulatedWorkers(t, testDir, 1, func(test types.TestMetadata) *types.TestResult {
		return &types.TestResult{Metadata: test, Status: types.TestStatusPass}
	})

	r, err := NewTestRunner(Config{
		Registry:   keepAllRegistry(t),
		TestDir:    testDir,
		Log:        log.New(),
		SelfPath:   "/bin/op-paratest",
		CmdBuilder: builder,
	})
	require.NoError(t, err)

	first, err := r.RunAllTests(context.Background())
	require.NoError(t, err)
	second, err := r.RunAllTests(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID, "every run gets its own identity")
}

func TestStatusDetermination(t *testing.T) {
	tests := []struct {
		name     string
		stats    ResultStats
		expected types.TestStatus
	}{
		{
			name:     "all tests passed",
			stats:    ResultStats{Total: 2, Passed: 2},
			expected: types.TestStatusPass,
		},
		{
			name:     "failure fails the run",
			stats:    ResultStats{Total: 3, Passed: 1, Failed: 1, Skipped: 1},
			expected: types.TestStatusFail,
		},
		{
			name:     "errored test fails the run",
			stats:    ResultStats{Total: 2, Passed: 1, Errored: 1},
			expected: types.TestStatusFail,
		},
		{
			name:     "all tests skipped",
			stats:    ResultStats{Total: 2, Skipped: 2},
			expected: types.TestStatusSkip,
		},
		{
			name:     "empty run",
			stats:    ResultStats{},
			expected: types.TestStatusSkip,
		},
		{
			name:     "mixed pass and skip",
			stats:    ResultStats{Total: 2, Passed: 1, Skipped: 1},
			expected: types.TestStatusPass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &RunnerResult{Stats: tt.stats}
			assert.Equal(t, tt.expected, determineRunnerStatus(result))
		})
	}
}

func TestResultStatsAddResult(t *testing.T) {
	var stats ResultStats
	stats.addResult(&types.TestResult{Status: types.TestStatusPass})
	stats.addResult(&types.TestResult{Status: types.TestStatusFail})
	stats.addResult(&types.TestResult{Status: types.TestStatusSkip})
	stats.addResult(&types.TestResult{Status: types.TestStatusError})
	stats.addResult(&types.TestResult{Status: types.TestStatusPass})

	assert.Equal(t, ResultStats{Total: 5, Passed: 2, Failed: 1, Skipped: 1, Errored: 1}, stats)
}
