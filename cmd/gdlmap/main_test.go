package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdlmap/internal/analogy"
)

const buttonGame = `
(role robot)
(init (step 1))
(<= (next (step ?y)) (true (step ?x)) (succ ?x ?y))
(<= (legal robot (push ?b)) (true (box ?b)))
(<= terminal (true (step 3)))
(<= (goal robot 100) (true (box a)) (not (true (box b))))
(succ 1 2)
(succ 2 3)
`

// resetFlags restores every flag to its default so commands can run
// repeatedly in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupWorkspace creates a workspace holding the given files.
func setupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	for _, k := range []string{"GDLMAP_NUM_BINS", "GDLMAP_NUM_RETRIES", "GDLMAP_ALLOW_PARTIAL", "GDLMAP_WORKERS", "GDLMAP_DB", "GDLMAP_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	ws := t.TempDir()
	for name, body := range files {
		path := filepath.Join(ws, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	return ws
}

func execute(t *testing.T, ws string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--workspace", ws}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMapCmd_PrintsPairCount(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame, "b.gdl": buttonGame})

	out, err := execute(t, ws, "map", filepath.Join(ws, "a.gdl"), filepath.Join(ws, "b.gdl"), "1")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	out, err = execute(t, ws, "map", "--score", filepath.Join(ws, "a.gdl"), filepath.Join(ws, "b.gdl"), "1")
	require.NoError(t, err)
	assert.Equal(t, "28\n", out)
}

func TestMapCmd_Details(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame})
	a := filepath.Join(ws, "a.gdl")

	out, err := execute(t, ws, "map", "--details", a, a, "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Source rule")
	assert.Contains(t, out, "rule pairs")
}

func TestMapCmd_InvalidBins(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame})
	a := filepath.Join(ws, "a.gdl")

	for _, bins := range []string{"0", "many"} {
		_, err := execute(t, ws, "map", a, a, bins)
		var ce *analogy.ConfigError
		require.True(t, errors.As(err, &ce), "bins=%s: %v", bins, err)
		assert.Equal(t, "num_bins", ce.Field)
	}
}

func TestMapCmd_ParseErrors(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame, "bad.gdl": "(<= (p ?x)"})
	a := filepath.Join(ws, "a.gdl")

	_, err := execute(t, ws, "map", a, filepath.Join(ws, "missing.gdl"), "1")
	require.Error(t, err)

	_, err = execute(t, ws, "map", a, filepath.Join(ws, "bad.gdl"), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.gdl")
}

func TestMapCmd_ConfigFile(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{
		"a.gdl": buttonGame,
		".gdlmap/config.yaml": `
mapper:
  weights:
    num_retries: -1
`,
	})
	a := filepath.Join(ws, "a.gdl")

	_, err := execute(t, ws, "map", a, a, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_retries")

	// An explicit --config wins over the workspace default.
	cfgPath := filepath.Join(ws, "ok.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("mapper:\n  num_bins: 3\n"), 0644))
	out, err := execute(t, ws, "--config", cfgPath, "map", a, a, "1")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)
}

func TestMapCmd_RecordAndHistory(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame})
	a := filepath.Join(ws, "a.gdl")

	_, err := execute(t, ws, "map", "--record", a, a, "1")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(ws, ".gdlmap", "history.db"))
	require.NoError(t, err, "history database is created in the workspace")

	out, err := execute(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "a.gdl")
	assert.Contains(t, out, "28")
}

func TestHistoryCmd_Empty(t *testing.T) {
	ws := setupWorkspace(t, nil)
	out, err := execute(t, ws, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "no recorded runs")

	_, err = execute(t, ws, "history", "--id", "nope")
	assert.Error(t, err)
}

func TestParseCmd(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame})

	out, err := execute(t, ws, "parse", "--bins", "2", filepath.Join(ws, "a.gdl"))
	require.NoError(t, err)
	assert.Contains(t, out, "rules:       4 (3 general, 1 goal)")
	assert.Contains(t, out, "init facts:  1")
	assert.Contains(t, out, "static:      3")
	assert.Contains(t, out, "Predicates")
}

func TestDepsCmd(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame})
	a := filepath.Join(ws, "a.gdl")

	out, err := execute(t, ws, "deps", "--pred", "next", a)
	require.NoError(t, err)
	assert.Equal(t, "succ\ntrue\n", out)

	out, err = execute(t, ws, "deps", "--pred", "succ", a)
	require.NoError(t, err)
	assert.Empty(t, out, "facts depend on nothing")

	out, err = execute(t, ws, "deps", "--raw", a)
	require.NoError(t, err)
	assert.Contains(t, out, "## Defined (4)")
	assert.Contains(t, out, "## Recursive (0)")
	assert.Contains(t, out, "## Facts (")

	out, err = execute(t, ws, "deps", "--facts", a)
	require.NoError(t, err)
	assert.Contains(t, out, `depends("next", "succ").`)
	assert.Contains(t, out, `defined("terminal").`)
}

func TestSweepCmd(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{"a.gdl": buttonGame})
	a := filepath.Join(ws, "a.gdl")

	out, err := execute(t, ws, "sweep", "--from", "1", "--to", "3", a, a)
	require.NoError(t, err)
	assert.Contains(t, out, "bins=1")
	assert.Contains(t, out, "bins=3")
	assert.Contains(t, out, "3 jobs, 0 failed")

	_, err = execute(t, ws, "sweep", "--from", "3", "--to", "1", a, a)
	assert.Error(t, err)
}

func TestBatchCmd(t *testing.T) {
	ws := setupWorkspace(t, map[string]string{
		"games/a.gdl": buttonGame,
		"jobs.yaml": `
workers: 2
jobs:
  - name: self
    source: games/a.gdl
    target: games/a.gdl
    bins: 1
  - name: missing
    source: games/a.gdl
    target: games/none.gdl
    bins: 1
`,
	})

	out, err := execute(t, ws, "batch", "--record", filepath.Join(ws, "jobs.yaml"))
	require.Error(t, err, "a failed job fails the command")
	assert.Contains(t, err.Error(), "1 of 2 jobs failed")
	assert.Contains(t, out, "self")
	assert.Contains(t, out, "error:")

	out, err = execute(t, ws, "history")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "a.gdl"), "only the successful job is recorded")
}
