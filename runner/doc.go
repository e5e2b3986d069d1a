// Package runner executes Go tests across a pool of worker processes.
//
// The main components are:
//   - TestRunner: Orchestrates a full run from discovery through sharding to merged results
//   - Coordinator: Spawns one worker subprocess per shard, joins them, and merges result files
//   - WorkerSession: The worker side, executing its shard and syncing captured logs
//   - TestExecutor: Runs package groups of test functions through go test -json
//   - OutputParser: Turns the JSON event stream into per-test results and log lines
//
// Workers receive their shard as JSON on stdin and report back through a
// result file; captured test logs travel separately through the logging
// package's shared snapshot directory.
package runner
