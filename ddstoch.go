package ddstoch

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/aalhour/ddstoch/internal/config"
	"github.com/aalhour/ddstoch/internal/logging"
	"github.com/aalhour/ddstoch/internal/minimize"
	"github.com/aalhour/ddstoch/internal/report"
	"github.com/aalhour/ddstoch/internal/session"
	"github.com/aalhour/ddstoch/internal/strategy"
)

var (
	// ErrNothingToDebug is returned when the full delta set passes.
	ErrNothingToDebug = strategy.ErrNothingToDebug

	// ErrAllDeltasPass is returned by ddmax when perturbing every delta
	// still passes. It wraps ErrNothingToDebug.
	ErrAllDeltasPass = strategy.ErrAllDeltasPass

	// ErrNoDeltaSucceeds is returned by ddmax when the empty configuration fails.
	ErrNoDeltaSucceeds = strategy.ErrNoDeltaSucceeds

	// ErrReferenceRun is returned when the run script fails on the reference.
	ErrReferenceRun = session.ErrReferenceRun

	// ErrInvalidReference is returned when the compare script rejects the
	// reference compared with itself.
	ErrInvalidReference = session.ErrInvalidReference

	// ErrNoDeltaFiles is returned when the reference run produced no delta file.
	ErrNoDeltaFiles = session.ErrNoDeltaFiles
)

// Options configures Run.
type Options struct {
	// RunScript and CmpScript must be executable files.
	RunScript string
	CmpScript string

	// Workdir holds the session. Empty selects ./dd.line or ./dd.sym.
	Workdir string

	// Prefixes name the settings variables, e.g. INTERFLOP_DD_NRUNS.
	// Empty selects INTERFLOP.
	Prefixes []string

	// Environ holds the settings variables. Nil reads the process environment.
	Environ map[string]string

	// Output receives progress lines. Nil discards them.
	Output io.Writer

	// Log receives diagnostics. Nil discards them.
	Log io.Writer
}

// Configuration is a reported delta configuration.
type Configuration struct {
	// Name is the link name in the working directory, e.g. ddmin0.
	Name string
	// Deltas are the configuration's tokens.
	Deltas []string
	// Dir is the configuration directory.
	Dir string
	// Failed is the verdict at the full sample count.
	Failed bool
}

// Result is the outcome of a search.
type Result struct {
	// Workdir is the absolute working directory.
	Workdir string
	// Found lists every reported configuration in report order.
	Found []Configuration
	// Complement is the passing remainder: rddmin-cmp, or ddmax-cmp for ddmax.
	Complement []string
}

// Run executes one search session and writes its summary.
func Run(ctx context.Context, opts Options) (*Result, error) {
	lookup := os.LookupEnv
	if opts.Environ != nil {
		lookup = func(key string) (string, bool) {
			v, ok := opts.Environ[key]
			return v, ok
		}
	}

	var log logging.Logger = logging.Discard
	if opts.Log != nil {
		log = logging.NewLogger(opts.Log, logging.LevelInfo)
	}
	settings, err := config.Load([]string{opts.RunScript, opts.CmpScript}, lookup, opts.Prefixes, log)
	if err != nil {
		return nil, err
	}
	if opts.Log != nil && settings.Debug {
		log = logging.NewLogger(opts.Log, logging.LevelDebug)
	}

	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	sess, err := session.Open(ctx, session.Options{
		Settings: settings,
		Workdir:  opts.Workdir,
		Printer:  report.New(out, settings.Quiet),
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	res, runErr := sess.Run(ctx)
	if err := sess.Finish(runErr); err != nil && runErr == nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}

	result := &Result{Workdir: sess.Workdir(), Complement: res.Complement.Strings()}
	for _, f := range sess.Found() {
		result.Found = append(result.Found, Configuration{
			Name:   f.Name,
			Deltas: f.Deltas,
			Dir:    filepath.Join(sess.Workdir(), f.Digest),
			Failed: f.Outcome == minimize.Fail.String(),
		})
	}
	return result, nil
}
