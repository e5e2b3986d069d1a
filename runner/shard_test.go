package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

func makeTests(namesByPkg ...[2]string) []types.TestMetadata {
	tests := make([]types.TestMetadata, 0, len(namesByPkg))
	for _, pair := range namesByPkg {
		pkg, funcName := pair[0], pair[1]
		tests = append(tests, types.TestMetadata{
			ID:       types.TestKey(pkg, funcName),
			Package:  pkg,
			FuncName: funcName,
		})
	}
	return tests
}

func TestWorkerCountFor(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		numTests  int
		numCPU    int
		expected  int
	}{
		{name: "explicit count", requested: 4, numTests: 100, numCPU: 2, expected: 4},
		{name: "explicit clamped to test count", requested: 8, numTests: 3, numCPU: 16, expected: 3},
		{name: "auto uses half the cpus", requested: 0, numTests: 100, numCPU: 8, expected: 4},
		{name: "auto on a single cpu", requested: 0, numTests: 100, numCPU: 1, expected: 1},
		{name: "auto clamped to test count", requested: 0, numTests: 2, numCPU: 16, expected: 2},
		{name: "auto capped", requested: 0, numTests: 500, numCPU: 128, expected: MaxReasonableWorkers},
		{name: "single test gets one worker", requested: 0, numTests: 1, numCPU: 8, expected: 1},
		{name: "no tests no workers", requested: 4, numTests: 0, numCPU: 8, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, workerCountFor(tt.requested, tt.numTests, tt.numCPU))
		})
	}
}

func TestBuildShards(t *testing.T) {
	tests := makeTests(
		[2]string{"example.com/m/a", "TestA1"},
		[2]string{"example.com/m/a", "TestA2"},
		[2]string{"example.com/m/b", "TestB1"},
		[2]string{"example.com/m/a", "TestA3"},
		[2]string{"example.com/m/c", "TestC1"},
	)

	t.Run("round robin preserves discovery order per worker", func(t *testing.T) {
		shards := BuildShards(tests, 2)
		require.Len(t, shards, 2)

		assert.Equal(t, "gw0", shards[0].WorkerID)
		assert.Equal(t, "gw1", shards[1].WorkerID)

		assert.Equal(t, []string{
			"example.com/m/a::TestA1",
			"example.com/m/b::TestB1",
			"example.com/m/c::TestC1",
		}, shardIDs(shards[0]))
		assert.Equal(t, []string{
			"example.com/m/a::TestA2",
			"example.com/m/a::TestA3",
		}, shardIDs(shards[1]))
	})

	t.Run("deterministic", func(t *testing.T) {
		first := BuildShards(tests, 3)
		second := BuildShards(tests, 3)
		assert.Equal(t, first, second)
	})

	t.Run("more workers than tests", func(t *testing.T) {
		shards := BuildShards(tests, 10)
		require.Len(t, shards, len(tests))
		for i, shard := range shards {
			assert.Equal(t, fmt.Sprintf("gw%d", i), shard.WorkerID)
			assert.Len(t, shard.Tests, 1)
		}
	})

	t.Run("single worker gets everything in order", func(t *testing.T) {
		shards := BuildShards(tests, 1)
		require.Len(t, shards, 1)
		assert.Equal(t, tests, shards[0].Tests)
	})

	t.Run("no tests", func(t *testing.T) {
		assert.Nil(t, BuildShards(nil, 4))
	})
}

func TestShardWireFormat(t *testing.T) {
	shard := Shard{
		WorkerID: "gw1",
		Tests: makeTests(
			[2]string{"example.com/m/a", "TestA1"},
		),
	}

	data, err := json.Marshal(shard)
	require.NoError(t, err)

	decoded, err := readShard(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, shard, decoded)
}

func TestGroupByPackage(t *testing.T) {
	tests := makeTests(
		[2]string{"example.com/m/a", "TestA1"},
		[2]string{"example.com/m/b", "TestB1"},
		[2]string{"example.com/m/a", "TestA2"},
	)

	groups := groupByPackage(tests)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"example.com/m/a::TestA1", "example.com/m/a::TestA2"}, groupIDs(groups[0]))
	assert.Equal(t, []string{"example.com/m/b::TestB1"}, groupIDs(groups[1]))
}

func shardIDs(shard Shard) []string {
	return groupIDs(shard.Tests)
}

func groupIDs(tests []types.TestMetadata) []string {
	ids := make([]string, 0, len(tests))
	for _, test := range tests {
		ids = append(ids, test.ID)
	}
	return ids
}
