package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aalhour/ddstoch/internal/config"
	"github.com/aalhour/ddstoch/internal/strategy"
)

// Diagnose renders the user-facing explanation of a fatal session error,
// with suggestions and the files to analyze.
func Diagnose(err error, settings *config.Settings, workdir string) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	nbRuns := settings.EnvName("DD_NRUNS")

	var refErr *ReferenceError
	var degenerate *strategy.DegenerateError
	errors.As(err, &refErr)
	errors.As(err, &degenerate)

	switch {
	case errors.Is(err, ErrNoDeltaFiles):
		line("FAILURE: the generation of delta files failed")
		line("Suggestions:")
		line("\t1) check that %s forwards %s to the instrumented program", settings.RunScript, settings.EnvName("DD_GEN"))
		if refErr != nil {
			line("Files to analyze:")
			line("\t run output: %s %s", filepath.Join(refErr.RefDir, "dd.out"), filepath.Join(refErr.RefDir, "dd.err"))
		}
	case errors.Is(err, ErrReferenceRun):
		line("FAILURE: error during reference run")
		line("Suggestions:")
		line("\t1) check the correctness of the %s script", settings.RunScript)
		if refErr != nil {
			line("Files to analyze:")
			line("\t run output: %s %s", filepath.Join(refErr.RefDir, "dd.out"), filepath.Join(refErr.RefDir, "dd.err"))
		}
	case errors.Is(err, ErrInvalidReference):
		line("FAILURE: the reference is not valid")
		line("Suggestions:")
		line("\t1) check the correctness of the %s script", settings.CmpScript)
		if refErr != nil {
			line("Files to analyze:")
			line("\t run output: %s %s", filepath.Join(refErr.RefDir, "dd.out"), filepath.Join(refErr.RefDir, "dd.err"))
			line("\t cmp output: %s %s", filepath.Join(refErr.RefDir, "checkRef.out"), filepath.Join(refErr.RefDir, "checkRef.err"))
		}
	case errors.Is(err, strategy.ErrAllDeltasPass):
		line("FAILURE: when all parts of the program are perturbed, its output is still detected as stable")
		line("Suggestions:")
		line("\t1) check if the number of samples %s is sufficient", nbRuns)
		line("\t2) check the correctness of the %s script: the failure criteria may be too large", settings.CmpScript)
		analyze(line, degenerate, workdir)
	case errors.Is(err, strategy.ErrNothingToDebug):
		line("FAILURE: nothing to debug (the run with all deltas activated succeeds)")
		line("Suggestions:")
		line("\t1) check the correctness of the %s script: the failure criteria may be too large", settings.CmpScript)
		line("\t2) check if the number of samples %s is sufficient", nbRuns)
		analyze(line, degenerate, workdir)
	case errors.Is(err, strategy.ErrNoDeltaSucceeds):
		line("FAILURE: the comparison between the reference and the run without perturbed deltas failed")
		line("Suggestions:")
		line("\t1) check if reproducibility discrepancies are larger than the failure criteria of the script %s", settings.CmpScript)
		analyze(line, degenerate, workdir)
	default:
		line("FAILURE: %v", err)
	}
	return b.String()
}

func analyze(line func(string, ...any), degenerate *strategy.DegenerateError, workdir string) {
	if degenerate == nil || degenerate.Digest == "" {
		return
	}
	line("Directory to analyze: %s", filepath.Join(workdir, degenerate.Digest))
}
