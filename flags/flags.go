package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "OP_PARATEST"

var (
	TestDir = &cli.StringFlag{
		Name:     "test-dir",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "TEST_DIR"),
		Usage:    "Path to the Go module from which to discover tests",
	}
	Plan = &cli.StringFlag{
		Name:    "plan",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:   "Path to a run plan file (eg. 'plan.yaml') selecting which tests to run",
	}
	Workers = &cli.IntFlag{
		Name:    "workers",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKERS"),
		Usage:   "Number of worker processes. Set to 0 to derive from test count and CPU count.",
	}
	GoBinary = &cli.StringFlag{
		Name:    "go-binary",
		Value:   "go",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GO_BINARY"),
		Usage:   "Path to the Go binary to use for running tests",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Timeout for one go test invocation. Set to 0 to use the run plan's timeout or the built-in default.",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOG_DIR"),
		Usage:   "Directory to store run artifacts (summary.log, results.json, results.html)",
	}
	ShowInfo = &cli.BoolFlag{
		Name:    "show-info",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_INFO"),
		Usage:   "Include INFO-level messages in the test log report (WARNING and above always show)",
	}
	NoCapture = &cli.BoolFlag{
		Name:    "no-capture",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_CAPTURE"),
		Usage:   "Disable log capture filtering and show every buffered message for every test",
	}

	// Flags for the hidden worker subcommand. Workers are spawned by the
	// coordinator; these are not set by hand.
	SharedDir = &cli.StringFlag{
		Name:    "shared-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHARED_DIR"),
		Usage:   "Shared directory for cross-process log snapshots (set by the coordinator)",
	}
	WorkerID = &cli.StringFlag{
		Name:    "worker-id",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKER_ID"),
		Usage:   "Identity of this worker process (set by the coordinator)",
	}
	ResultFile = &cli.StringFlag{
		Name:    "result-file",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RESULT_FILE"),
		Usage:   "Path the worker writes its result report to (set by the coordinator)",
	}
)

var requiredFlags = []cli.Flag{
	TestDir,
}

var optionalFlags = []cli.Flag{
	Plan,
	Workers,
	GoBinary,
	RunInterval,
	Timeout,
	LogDir,
	ShowInfo,
	NoCapture,
}

// Flags contains the full flag set of the default run command.
var Flags []cli.Flag

// WorkerFlags contains the flag set of the hidden worker subcommand.
var WorkerFlags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)

	WorkerFlags = []cli.Flag{
		TestDir,
		SharedDir,
		WorkerID,
		ResultFile,
		GoBinary,
		Timeout,
	}
	WorkerFlags = append(WorkerFlags, oplog.CLIFlags(EnvVarPrefix)...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

// CheckWorkerRequired validates the flags a spawned worker cannot run without.
func CheckWorkerRequired(ctx *cli.Context) error {
	for _, f := range []cli.Flag{TestDir, SharedDir, WorkerID, ResultFile} {
		if ctx.String(f.Names()[0]) == "" {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
