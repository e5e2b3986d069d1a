package runner

import (
	"fmt"
	"runtime"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// Shard is the unit of work handed to one worker process. It is serialized
// as JSON on the worker's stdin.
type Shard struct {
	WorkerID string               `json:"worker_id"`
	Tests    []types.TestMetadata `json:"tests"`
}

// WorkerCount resolves the number of worker processes for a run. A
// requested count of 0 means auto: half the CPUs, at least one. The count
// never exceeds the number of tests, and auto-determined counts are capped
// at MaxReasonableWorkers.
func WorkerCount(requested, numTests int) int {
	return workerCountFor(requested, numTests, runtime.NumCPU())
}

func workerCountFor(requested, numTests, numCPU int) int {
	if numTests <= 0 {
		return 0
	}

	count := requested
	if count <= 0 {
		count = numCPU / 2
		if count < 1 {
			count = 1
		}
		if count > MaxReasonableWorkers {
			count = MaxReasonableWorkers
		}
	}
	if count > numTests {
		count = numTests
	}
	return count
}

// BuildShards deals tests round-robin across workers in discovery order,
// so the split is deterministic and each worker sees its tests in the
// order they were discovered. Workers that would receive no tests are
// omitted, so the result may be shorter than workers.
func BuildShards(tests []types.TestMetadata, workers int) []Shard {
	if len(tests) == 0 || workers <= 0 {
		return nil
	}
	if workers > len(tests) {
		workers = len(tests)
	}

	shards := make([]Shard, workers)
	for i := range shards {
		shards[i].WorkerID = WorkerID(i)
	}
	for i, test := range tests {
		shard := &shards[i%workers]
		shard.Tests = append(shard.Tests, test)
	}
	return shards
}

// WorkerID composes the identity of the n-th worker of a run.
func WorkerID(n int) string {
	return fmt.Sprintf("gw%d", n)
}

// groupByPackage splits tests into per-package groups, preserving both the
// order packages first appear in and the test order within each package.
func groupByPackage(tests []types.TestMetadata) [][]types.TestMetadata {
	index := make(map[string]int)
	var groups [][]types.TestMetadata

	for _, test := range tests {
		i, ok := index[test.Package]
		if !ok {
			i = len(groups)
			index[test.Package] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], test)
	}
	return groups
}
