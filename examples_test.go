package ddstoch_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aalhour/ddstoch"
)

func ExampleRun() {
	dir, err := os.MkdirTemp("", "ddstoch-example-*")
	if err != nil {
		panic(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	// The reference run lists three deltas; including "b" breaks the output.
	run := filepath.Join(dir, "run.sh")
	cmp := filepath.Join(dir, "cmp.sh")
	if err := os.WriteFile(run, []byte(`#!/bin/sh
if [ -n "$INTERFLOP_DD_GEN" ]; then printf 'a\nb\nc\n' > "$INTERFLOP_DD_GEN.$$"; echo ok > "$1/out"; exit 0; fi
if grep -qx b "$INTERFLOP_DD_INCLUDE"; then echo ko; else echo ok; fi > "$1/out"
`), 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(cmp, []byte("#!/bin/sh\ncmp -s \"$1/out\" \"$2/out\"\n"), 0o755); err != nil {
		panic(err)
	}

	res, err := ddstoch.Run(context.Background(), ddstoch.Options{
		RunScript: run,
		CmpScript: cmp,
		Workdir:   filepath.Join(dir, "dd.line"),
		Environ: map[string]string{
			"INTERFLOP_DD_NRUNS":  "3",
			"INTERFLOP_DD_RDDMIN": "strict",
		},
	})
	if err != nil {
		panic(err)
	}

	for _, c := range res.Found {
		fmt.Println(c.Name, c.Deltas, "failed:", c.Failed)
	}
	// Output:
	// ddmin0 [b] failed: true
	// rddmin-cmp [a c] failed: false
}
