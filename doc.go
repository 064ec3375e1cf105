/*
Package ddstoch locates the parts of a program responsible for numerical
instabilities by statistical delta debugging.

A delta is one instrumented code location (a source line or a symbol).
The program is run under random-rounding instrumentation restricted to a
configuration of deltas, several times, and a compare script decides
whether each sample still matches the reference. A configuration fails as
soon as one sample fails. The search reduces the full delta set to the
minimal failing subsets (rddmin and its stochastic and dichotomic
variants) or, with ddmax, to the largest configuration that still passes.

# Usage

	res, err := ddstoch.Run(ctx, ddstoch.Options{
		RunScript: "./run.sh",
		CmpScript: "./cmp.sh",
		Environ:   map[string]string{"INTERFLOP_DD_NRUNS": "10"},
	})

The cmd/ddstoch binary wraps Run with the same settings read from the
process environment.

# On-disk layout

Every tested configuration owns a directory named by the digest of its
deltas, holding one dd.run<i> directory per sample. A sample with a
returnVal marker is never executed again, so a session can be resumed or
extended by running it again over the same working directory.
*/
package ddstoch
