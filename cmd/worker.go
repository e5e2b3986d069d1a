package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-paratest/exitcodes"
	"github.com/ethereum-optimism/infra/op-paratest/flags"
	"github.com/ethereum-optimism/infra/op-paratest/runner"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

// workerCommand is the hidden subcommand the coordinator spawns, one
// process per shard. It reads its shard assignment from stdin and writes
// its result file for the coordinator. Not intended for manual use.
var workerCommand = &cli.Command{
	Name:   runner.WorkerCommand,
	Usage:  "Run one shard of a parallel test session (spawned by the coordinator)",
	Hidden: true,
	Flags:  cliapp.ProtectFlags(flags.WorkerFlags),
	Action: runWorker,
}

func runWorker(ctx *cli.Context) error {
	logCfg := oplog.ReadCLIConfig(ctx)
	// Stdout carries the worker's result protocol; logs go to stderr where
	// the coordinator streams them through.
	logger := oplog.NewLogger(os.Stderr, logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()

	if err := flags.CheckWorkerRequired(ctx); err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	testDir, err := filepath.Abs(ctx.String(flags.TestDir.Name))
	if err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	session, err := runner.NewWorkerSession(runner.WorkerConfig{
		Log:        logger,
		TestDir:    testDir,
		GoBinary:   ctx.String(flags.GoBinary.Name),
		Timeout:    ctx.Duration(flags.Timeout.Name),
		SharedDir:  ctx.String(flags.SharedDir.Name),
		WorkerID:   ctx.String(flags.WorkerID.Name),
		ResultFile: ctx.String(flags.ResultFile.Name),
		ExtraArgs:  ctx.Args().Slice(),
	})
	if err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if err := session.Run(ctx.Context); err != nil {
		if errors.Is(err, runner.ErrTestFailures) {
			return cli.Exit(err.Error(), exitcodes.TestFailure)
		}
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}
	return nil
}
