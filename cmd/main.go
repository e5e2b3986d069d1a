package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	paratest "github.com/ethereum-optimism/infra/op-paratest"
	"github.com/ethereum-optimism/infra/op-paratest/exitcodes"
	"github.com/ethereum-optimism/infra/op-paratest/flags"
	"github.com/ethereum-optimism/infra/op-paratest/runner"
	"github.com/ethereum-optimism/infra/op-paratest/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

// svc serves healthz and metrics for the coordinator process. Worker
// processes never start it, so spawned workers don't fight over the ports.
var svc *service.Service

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-paratest"
	app.Usage = "Parallel Go test runner with cross-process log aggregation"
	app.Description = "op-paratest shards test functions across worker processes and merges their captured logs"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.Commands = []*cli.Command{workerCommand}
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), exitCodeForError(err)))
		}
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start server, but not in spawned worker processes
	if !isWorkerInvocation(os.Args) {
		svc = service.New()
		svc.Start(ctx)
		defer svc.Shutdown()
	}

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()

	cfg, err := paratest.NewConfig(ctx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, paratest.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	paratestService, err := paratest.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, paratest.NewRuntimeError(fmt.Errorf("failed to create paratest: %w", err))
	}
	if svc != nil {
		paratestService.WithRunStatusRecorder(svc.RecordRunStatus)
	}

	return paratestService, nil
}

// exitCodeForError maps typed errors to the documented exit codes
func exitCodeForError(err error) int {
	if paratest.IsRuntimeError(err) {
		return exitcodes.RuntimeErr
	}
	// Test failures and unspecified errors both exit 1
	return exitcodes.TestFailure
}

// isWorkerInvocation reports whether this process was spawned as a worker
func isWorkerInvocation(args []string) bool {
	for _, arg := range args[1:] {
		if arg == "--" {
			return false
		}
		if arg == runner.WorkerCommand {
			return true
		}
	}
	return false
}
