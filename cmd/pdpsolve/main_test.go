package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instanceYAML = `
network:
  cities:
    - {name: A, x: 0, y: 0}
    - {name: B, x: 5, y: 0}
    - {name: C, x: 8, y: 0}
    - {name: D, x: 20, y: 0}
vehicles:
  - {id: v1, capacity: 10, costPerKm: 2, start: A}
  - {id: v2, capacity: 10, costPerKm: 1, start: D}
tasks:
  - {id: t1, pickup: A, delivery: B, weight: 4}
  - {id: t2, pickup: C, delivery: D, weight: 3}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PDP_CONFIG", "")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSolveCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(instanceYAML), 0o600))

	for _, strategy := range []string{"steepest", "anneal"} {
		t.Run(strategy, func(t *testing.T) {
			out, err := run(t, "solve", "--instance", path, "--strategy", strategy, "--seed", "3", "--iterations", "300")
			require.NoError(t, err)
			var res result
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, 40.0, res.InitialCost)
			assert.LessOrEqual(t, res.Cost, res.InitialCost)
			assert.Len(t, res.Plans, 2)
			assert.Equal(t, strategy, res.Metrics.Strategy)
			assert.Equal(t, int64(3), res.Metrics.Seed)
		})
	}
}

func TestSolveCommandOutFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "instance.yaml")
	out := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(in, []byte(instanceYAML), 0o600))
	_, err := run(t, "solve", "-i", in, "-o", out)
	require.NoError(t, err)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"plans"`)
}

func TestSolveCommandErrors(t *testing.T) {
	_, err := run(t, "solve")
	assert.Error(t, err, "instance is required")

	_, err = run(t, "solve", "--instance", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "instance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(instanceYAML), 0o600))
	_, err = run(t, "solve", "--instance", path, "--strategy", "tabu")
	assert.Error(t, err)
	_, err = run(t, "solve", "--instance", path, "--capacity", "strict", "--init", "pack")
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"version":"dev"`)
}
