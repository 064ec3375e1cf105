package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runScript = `#!/bin/sh
if [ -n "$INTERFLOP_DD_GEN" ]; then
  printf 'a\nb\nc\n' > "$INTERFLOP_DD_GEN.$$"
  echo good > "$1/out"
  exit 0
fi
if grep -qx b "$INTERFLOP_DD_INCLUDE"; then echo bad; else echo good; fi > "$1/out"
`

const cmpScript = "#!/bin/sh\ncmp -s \"$1/out\" \"$2/out\"\n"

func writeScripts(t *testing.T) (dir, run, cmp string) {
	t.Helper()
	dir = t.TempDir()
	run = filepath.Join(dir, "run.sh")
	cmp = filepath.Join(dir, "cmp.sh")
	require.NoError(t, os.WriteFile(run, []byte(runScript), 0o755))
	require.NoError(t, os.WriteFile(cmp, []byte(cmpScript), 0o755))
	return dir, run, cmp
}

func lookupMap(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// Contract: --help prints the environment documentation and exits 42.
func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--help"}, &stdout, &stderr, lookupMap(nil))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout.String(), "INTERFLOP_DD_NRUNS")
}

// Contract: the help text follows the last --env-prefix.
func TestRun_HelpWithPrefix(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--env-prefix", "VFC", "-h"}, &stdout, &stderr, lookupMap(nil))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout.String(), "VFC_DD_ALGO")
}

func TestRun_UsageErrors(t *testing.T) {
	_, run1, cmp := writeScripts(t)
	notExec := filepath.Join(t.TempDir(), "plain.sh")
	require.NoError(t, os.WriteFile(notExec, []byte("#!/bin/sh\n"), 0o644))

	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"no arguments", nil, nil},
		{"one argument", []string{run1}, nil},
		{"missing script", []string{run1, "/does/not/exist"}, nil},
		{"not executable", []string{notExec, cmp}, nil},
		{"bad value", []string{run1, cmp}, map[string]string{"INTERFLOP_DD_ALGO": "bisect"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr, lookupMap(tt.env))
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, stderr.String(), "usage: ddstoch")
		})
	}
}

// Contract: a full session finds the unstable delta and exits 0.
func TestRun_EndToEnd(t *testing.T) {
	dir, run1, cmp := writeScripts(t)
	workdir := filepath.Join(dir, "dd.line")
	env := map[string]string{
		"INTERFLOP_DD_NRUNS":  "2",
		"INTERFLOP_DD_RDDMIN": "strict",
		"INTERFLOP_DD_QUIET":  "",
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--workdir", workdir, run1, cmp}, &stdout, &stderr, lookupMap(env))
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "ddmin0 (b):")
	assert.NotContains(t, stdout.String(), "--( run )->")
	assert.FileExists(t, filepath.Join(workdir, "summary.json"))
	_, err := os.Readlink(filepath.Join(workdir, "ddmin0"))
	require.NoError(t, err)
}

// Contract: a stable program exits 42 with the nothing-to-debug diagnostic.
func TestRun_NothingToDebug(t *testing.T) {
	dir, run1, _ := writeScripts(t)
	alwaysOK := filepath.Join(dir, "ok.sh")
	require.NoError(t, os.WriteFile(alwaysOK, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--workdir", filepath.Join(dir, "dd.line"), run1, alwaysOK},
		&stdout, &stderr, lookupMap(map[string]string{"INTERFLOP_DD_NRUNS": "1"}))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout.String(), "FAILURE: nothing to debug")
	assert.NotContains(t, stderr.String(), "FAILURE")
}
