package ddstoch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

const unstableRun = `#!/bin/sh
if [ -n "$VFC_DD_GEN" ]; then printf 'x\ny\nz\n' > "$VFC_DD_GEN.$$"; echo ok > "$1/out"; exit 0; fi
if grep -qx x "$VFC_DD_INCLUDE" && grep -qx z "$VFC_DD_INCLUDE"; then echo ko; else echo ok; fi > "$1/out"
`

const cmpOut = "#!/bin/sh\ncmp -s \"$1/out\" \"$2/out\"\n"

// Contract: Run reads settings under the configured prefix and reports
// progress on Output.
func TestRun_Prefix(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	res, err := Run(context.Background(), Options{
		RunScript: writeScript(t, dir, "run.sh", unstableRun),
		CmpScript: writeScript(t, dir, "cmp.sh", cmpOut),
		Workdir:   filepath.Join(dir, "work"),
		Prefixes:  []string{"VFC"},
		Environ:   map[string]string{"VFC_DD_NRUNS": "2", "VFC_DD_NUM_THREADS": "2"},
		Output:    &out,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Found)
	assert.ElementsMatch(t, []string{"x", "z"}, res.Found[0].Deltas)
	assert.True(t, res.Found[0].Failed)
	assert.DirExists(t, res.Found[0].Dir)
	assert.Contains(t, out.String(), "--( run )->")
}

// Contract: ddmax reports the largest passing configuration as ddmax-cmp and
// its complement as ddmax. The complement induces the failure only together
// with ddmax-cmp: here a single delta, which passes on its own.
func TestRun_DDMax(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		RunScript: writeScript(t, dir, "run.sh", unstableRun),
		CmpScript: writeScript(t, dir, "cmp.sh", cmpOut),
		Workdir:   filepath.Join(dir, "work"),
		Prefixes:  []string{"VFC"},
		Environ:   map[string]string{"VFC_DD_NRUNS": "1", "VFC_DD_ALGO": "ddmax"},
	})
	require.NoError(t, err)
	require.Len(t, res.Found, 2)
	ddmax, cmp := res.Found[0], res.Found[1]
	assert.Equal(t, "ddmax", ddmax.Name)
	assert.Equal(t, "ddmax-cmp", cmp.Name)
	assert.False(t, cmp.Failed)
	assert.ElementsMatch(t, cmp.Deltas, res.Complement)
	assert.Len(t, res.Complement, 2)

	require.Len(t, ddmax.Deltas, 1)
	assert.Contains(t, []string{"x", "z"}, ddmax.Deltas[0])
	assert.False(t, ddmax.Failed)
	assert.ElementsMatch(t, []string{"x", "y", "z"}, append(ddmax.Deltas, cmp.Deltas...))
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	run := writeScript(t, dir, "run.sh", unstableRun)
	stable := writeScript(t, dir, "stable.sh", "#!/bin/sh\nexit 0\n")

	_, err := Run(context.Background(), Options{
		RunScript: run,
		CmpScript: stable,
		Workdir:   filepath.Join(dir, "a"),
		Prefixes:  []string{"VFC"},
		Environ:   map[string]string{"VFC_DD_NRUNS": "1"},
	})
	require.ErrorIs(t, err, ErrNothingToDebug)

	_, err = Run(context.Background(), Options{
		RunScript: stable,
		CmpScript: stable,
		Workdir:   filepath.Join(dir, "b"),
		Prefixes:  []string{"VFC"},
		Environ:   map[string]string{},
	})
	require.ErrorIs(t, err, ErrNoDeltaFiles)
}
