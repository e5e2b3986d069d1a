package runner

import "time"

// Test execution constants
const (
	// DefaultTestTimeout is the default timeout for one go test invocation
	DefaultTestTimeout = 10 * time.Minute

	// Default go binary name
	DefaultGoBinary = "go"

	// Test command arguments
	TestCommand = "test"
	JSONFlag    = "-json"
	VerboseFlag = "-v"
	TimeoutFlag = "-timeout"
	CountFlag   = "-count"
	RunFlag     = "-run"

	// Test count to disable caching
	DisableCacheCount = "1"

	// WorkerCommand is the subcommand worker processes are spawned with
	WorkerCommand = "worker"

	// MaxReasonableWorkers caps auto-determined worker counts to avoid resource exhaustion
	MaxReasonableWorkers = 32
)
