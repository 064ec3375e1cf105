package sample

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/ddstoch/internal/logging"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// fixture builds a reference directory and a compare script that passes
// when the sample's "out" file equals the reference one.
type fixture struct {
	root   string
	ref    string
	cmp    string
	config string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:   root,
		ref:    filepath.Join(root, "ref"),
		config: filepath.Join(root, "cfg"),
	}
	require.NoError(t, os.MkdirAll(f.ref, 0o755))
	require.NoError(t, os.MkdirAll(f.config, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.ref, "out"), []byte("ok\n"), 0o644))
	f.cmp = writeScript(t, root, "cmp.sh", `cmp -s "$1/out" "$2/out"`)
	return f
}

func (f *fixture) runner(t *testing.T, runBody string, workers int, timeout time.Duration) *Runner {
	t.Helper()
	return NewRunner(RunnerConfig{
		RunScript:  writeScript(t, f.root, "run.sh", runBody),
		CmpScript:  f.cmp,
		RefDir:     f.ref,
		Timeout:    timeout,
		MaxWorkers: workers,
		Prefixes:   []string{"INTERFLOP"},
		Logger:     logging.Discard,
	})
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Contract: passing samples each get a marker of 0, logs and an artifact.
func TestRunner_SequentialPass(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, `echo ok > "$1/out"; echo run`, 0, 0)

	report, err := r.Run(context.Background(), Task{Dir: f.config, Indices: indices(3)})
	require.NoError(t, err)
	assert.False(t, report.Failed)
	assert.Equal(t, 3, report.Launched)
	require.Len(t, report.Results, 3)

	markers, err := ReadMarkers(f.config)
	require.NoError(t, err)
	assert.Equal(t, []Marker{{0, 0}, {1, 0}, {2, 0}}, markers)

	for i := range 3 {
		dir := Dir(f.config, i)
		for _, name := range []string{"dd.run.out", "dd.run.err", "dd.compare.out", "dd.compare.err"} {
			assert.FileExists(t, filepath.Join(dir, name))
		}
		artifact, err := ReadArtifact(dir)
		require.NoError(t, err)
		assert.True(t, artifact.Passed)
		assert.Equal(t, i+1, artifact.Index)
		require.NotNil(t, artifact.CompareExitCode)
		assert.Equal(t, 0, *artifact.CompareExitCode)
	}
	out, err := os.ReadFile(filepath.Join(Dir(f.config, 0), "dd.run.out"))
	require.NoError(t, err)
	assert.Equal(t, "run\n", string(out))
}

// Contract: sequential mode stops at the first failing sample.
func TestRunner_SequentialStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, `echo ko > "$1/out"`, 0, 0)

	report, err := r.Run(context.Background(), Task{Dir: f.config, Indices: indices(4)})
	require.NoError(t, err)
	assert.True(t, report.Failed)
	assert.Equal(t, 0, report.FailedIndex)
	assert.Equal(t, 1, report.Launched)

	markers, err := ReadMarkers(f.config)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.True(t, markers[0].Failed())
	assert.NoDirExists(t, Dir(f.config, 1))
}

// Contract: a failing run script is a failing sample and the compare script is skipped.
func TestRunner_RunScriptFailure(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, `exit 3`, 0, 0)

	report, err := r.Run(context.Background(), Task{Dir: f.config, Indices: []int{0}})
	require.NoError(t, err)
	require.True(t, report.Failed)

	result := report.Results[0]
	assert.Equal(t, 3, result.RunExitCode)
	assert.Equal(t, 3, result.ReturnVal)
	assert.False(t, result.Compared)
	assert.NoFileExists(t, filepath.Join(result.Dir, "dd.compare.out"))
}

// Contract: a script log that cannot be created is an error of Run and leaves
// no marker, in both execution modes.
func TestRunner_LogFileError(t *testing.T) {
	for _, workers := range []int{0, 3} {
		f := newFixture(t)
		r := f.runner(t, `rm -rf "$1"`, workers, 0)

		_, err := r.Run(context.Background(), Task{Dir: f.config, Indices: indices(3)})
		require.ErrorIs(t, err, ErrLogFile, "workers=%d", workers)

		markers, err := ReadMarkers(f.config)
		require.NoError(t, err)
		assert.Empty(t, markers, "workers=%d", workers)
	}
}

// Contract: Exec does not start the process when its log files cannot be created.
func TestExec_LogFileError(t *testing.T) {
	dir := t.TempDir()
	touched := filepath.Join(dir, "touched")
	base := filepath.Join(dir, "missing", "dd.run")

	code, err := Exec(context.Background(), base, os.Environ(), "/bin/sh", "-c", "touch "+touched)
	require.ErrorIs(t, err, ErrLogFile)
	assert.Equal(t, -1, code)
	assert.NoFileExists(t, touched)
}

// Contract: a run script exceeding the timeout is killed and recorded as -1.
func TestRunner_Timeout(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, `exec sleep 10`, 0, 200*time.Millisecond)

	start := time.Now()
	report, err := r.Run(context.Background(), Task{Dir: f.config, Indices: []int{0}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.True(t, report.Failed)

	result := report.Results[0]
	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ReturnVal)

	markers, err := ReadMarkers(f.config)
	require.NoError(t, err)
	assert.Equal(t, []Marker{{0, -1}}, markers)
}

// Contract: parallel mode compares in order and leaves drained samples unmarked.
func TestRunner_ParallelDrain(t *testing.T) {
	f := newFixture(t)
	// Sample 2 fails, the others pass.
	r := f.runner(t, `case "$1" in *dd.run2) echo ko > "$1/out";; *) echo ok > "$1/out";; esac`, 4, 0)

	report, err := r.Run(context.Background(), Task{Dir: f.config, Indices: indices(4)})
	require.NoError(t, err)
	assert.True(t, report.Failed)
	assert.Equal(t, 1, report.FailedIndex)
	assert.Equal(t, 4, report.Launched)
	assert.Len(t, report.Results, 2)

	markers, err := ReadMarkers(f.config)
	require.NoError(t, err)
	assert.Equal(t, []Marker{{0, 0}, {1, 1}}, markers)

	// Drained samples ran but have no marker.
	for _, i := range []int{2, 3} {
		assert.FileExists(t, filepath.Join(Dir(f.config, i), "out"))
		assert.NoFileExists(t, filepath.Join(Dir(f.config, i), MarkerFile))
	}
}

// Contract: parallel mode runs the scripts concurrently.
func TestRunner_ParallelOverlaps(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, `sleep 0.3; echo ok > "$1/out"`, 4, 0)

	start := time.Now()
	report, err := r.Run(context.Background(), Task{Dir: f.config, Indices: indices(4)})
	require.NoError(t, err)
	assert.False(t, report.Failed)
	assert.Less(t, time.Since(start), 1100*time.Millisecond)
}

// Contract: the run script receives the configuration and sample environment.
func TestRunner_Environment(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, `echo ok > "$1/out"; echo "$INTERFLOP_DD_INCLUDE|$INTERFLOP_DD_RUN_DIR" > "$1/env"`, 0, 0)

	_, err := r.Run(context.Background(), Task{
		Dir:     f.config,
		Indices: []int{1},
		Env:     []string{"INTERFLOP_DD_INCLUDE=/x/dd.line.include"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(Dir(f.config, 1), "env"))
	require.NoError(t, err)
	assert.Equal(t, "/x/dd.line.include|"+Dir(f.config, 1), strings.TrimSpace(string(data)))
}

// Contract: a leftover sample directory without marker is executed afresh.
func TestRunner_ReplacesUnmarkedLeftover(t *testing.T) {
	f := newFixture(t)
	leftover := Dir(f.config, 0)
	require.NoError(t, os.MkdirAll(leftover, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(leftover, "stale"), nil, 0o644))

	r := f.runner(t, `echo ok > "$1/out"`, 0, 0)
	_, err := r.Run(context.Background(), Task{Dir: f.config, Indices: []int{0}})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(leftover, "stale"))
	assert.FileExists(t, filepath.Join(leftover, MarkerFile))
}

// Contract: cancellation is an error, not a failing sample.
func TestRunner_Cancelled(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, `exec sleep 10`, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx, Task{Dir: f.config, Indices: []int{0}})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	markers, err := ReadMarkers(f.config)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestReadMarkers(t *testing.T) {
	dir := t.TempDir()
	for _, i := range []int{9, 1, 0} {
		sd := Dir(dir, i)
		require.NoError(t, os.MkdirAll(sd, 0o755))
		require.NoError(t, WriteMarker(sd, i))
	}
	require.NoError(t, os.MkdirAll(Dir(dir, 4), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dd.runaway"), 0o755))

	markers, err := ReadMarkers(dir)
	require.NoError(t, err)
	assert.Equal(t, []Marker{{0, 0}, {1, 1}, {9, 9}}, markers)

	missing, err := ReadMarkers(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, os.WriteFile(filepath.Join(Dir(dir, 4), MarkerFile), []byte("x"), 0o644))
	_, err = ReadMarkers(dir)
	require.ErrorIs(t, err, ErrCorruptMarker)
}
