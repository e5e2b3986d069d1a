package flags

import (
	"testing"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

func TestHasEnvVar(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			envFlags := envFlagGetter.GetEnvVars()
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
		})
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			envFlags := envFlagGetter.GetEnvVars()
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")

			expectedEnvVar := opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix)
			require.Equal(t, expectedEnvVar, envFlags[0])
		})
	}
}

// TestWorkerFlagsCoverSpawnArgs asserts that every argument the coordinator
// passes when spawning a worker has a matching flag on the worker command.
func TestWorkerFlagsCoverSpawnArgs(t *testing.T) {
	spawnArgs := []string{"test-dir", "shared-dir", "worker-id", "result-file", "go-binary", "timeout"}
	names := make(map[string]struct{})
	for _, flag := range WorkerFlags {
		names[flag.Names()[0]] = struct{}{}
	}
	for _, arg := range spawnArgs {
		_, ok := names[arg]
		require.True(t, ok, "worker command is missing flag %s", arg)
	}
}

func TestCheckWorkerRequired(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name: "all present",
			args: []string{"app", "--test-dir", "/t", "--shared-dir", "/s", "--worker-id", "gw0", "--result-file", "/r.json"},
		},
		{
			name:    "missing shared dir",
			args:    []string{"app", "--test-dir", "/t", "--worker-id", "gw0", "--result-file", "/r.json"},
			wantErr: "flag shared-dir is required",
		},
		{
			name:    "missing worker id",
			args:    []string{"app", "--test-dir", "/t", "--shared-dir", "/s", "--result-file", "/r.json"},
			wantErr: "flag worker-id is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotErr error
			app := &cli.App{
				Flags: WorkerFlags,
				Action: func(ctx *cli.Context) error {
					gotErr = CheckWorkerRequired(ctx)
					return nil
				},
			}
			require.NoError(t, app.Run(tc.args))
			if tc.wantErr == "" {
				require.NoError(t, gotErr)
			} else {
				require.ErrorContains(t, gotErr, tc.wantErr)
			}
		})
	}
}
