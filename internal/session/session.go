// Package session drives one debugging session end to end.
//
// Open establishes the baseline in <workdir>/ref: the run script executes
// once with <PREFIX>_DD_GEN set, the per-process delta files it leaves are
// merged into ref/dd.<kind>, and the compare script must accept the
// reference against itself. Run hands the merged delta set to the
// configured strategy. Every reported configuration is re-tested and
// linked as <workdir>/<name>. Finish writes summary.json, the optional
// bundle and the execution statistics.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aalhour/ddstoch/internal/cache"
	"github.com/aalhour/ddstoch/internal/config"
	"github.com/aalhour/ddstoch/internal/delta"
	"github.com/aalhour/ddstoch/internal/logging"
	"github.com/aalhour/ddstoch/internal/minimize"
	"github.com/aalhour/ddstoch/internal/report"
	"github.com/aalhour/ddstoch/internal/sample"
	"github.com/aalhour/ddstoch/internal/strategy"
)

// RefDirName is the reference directory inside the working directory.
const RefDirName = "ref"

var (
	// ErrReferenceRun is returned when the run script fails on the reference.
	ErrReferenceRun = errors.New("error during reference run")

	// ErrInvalidReference is returned when the compare script rejects the
	// reference compared with itself.
	ErrInvalidReference = errors.New("the reference is not valid")

	// ErrNoDeltaFiles is returned when the reference run left no delta file.
	ErrNoDeltaFiles = errors.New("the generation of delta files failed")
)

// ReferenceError carries the reference directory of a failed bootstrap.
type ReferenceError struct {
	Err    error
	RefDir string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%v (reference: %s)", e.Err, e.RefDir)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// Options configures a Session.
type Options struct {
	Settings *config.Settings

	// Workdir holds the reference and every configuration directory.
	// Empty selects ./dd.<kind>.
	Workdir string

	// Printer receives progress. Nil prints to stdout.
	Printer *report.Printer

	// Logger receives diagnostics. Nil uses the default logger.
	Logger logging.Logger
}

// Found is a configuration reported by a strategy.
type Found struct {
	Name    string   `json:"name"`
	Digest  string   `json:"digest"`
	Outcome string   `json:"outcome"`
	Deltas  []string `json:"deltas"`
}

// Session owns the working directory of one search.
type Session struct {
	settings *config.Settings
	workdir  string
	refDir   string
	printer  *report.Printer
	log      logging.Logger

	universe delta.Set
	cache    *cache.ResultCache
	dd       *minimize.DD

	start  time.Time
	found  []Found
	result *strategy.Result
}

// Open prepares the working directory and runs the reference.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Settings == nil {
		return nil, errors.New("session: nil settings")
	}
	s := &Session{
		settings: opts.Settings,
		printer:  opts.Printer,
		log:      logging.OrDefault(opts.Logger),
		start:    time.Now(),
	}
	if s.printer == nil {
		s.printer = report.New(os.Stdout, s.settings.Quiet)
	}

	workdir := opts.Workdir
	if workdir == "" {
		workdir = "dd." + s.settings.Kind()
	}
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}
	s.workdir = abs
	s.refDir = filepath.Join(abs, RefDirName)

	if err := s.bootstrap(ctx); err != nil {
		return nil, err
	}

	runner := sample.NewRunner(sample.RunnerConfig{
		RunScript:  s.settings.RunScript,
		CmpScript:  s.settings.CmpScript,
		RefDir:     s.refDir,
		Timeout:    s.settings.Timeout,
		MaxWorkers: s.settings.MaxWorkers,
		Prefixes:   s.settings.Prefixes,
		Logger:     s.log,
	})
	s.cache = cache.New(cache.Options{
		Root:     s.workdir,
		Universe: s.universe,
		Kind:     s.settings.Kind(),
		Prefixes: s.settings.Prefixes,
		Runner:   runner,
		Listener: s.printer.Verdict,
		Logger:   s.log,
	})
	s.dd = minimize.New(s.cache, minimize.WithProgress(s.printer.Progress))
	return s, nil
}

// Workdir returns the absolute working directory.
func (s *Session) Workdir() string { return s.workdir }

// RefDir returns the reference directory.
func (s *Session) RefDir() string { return s.refDir }

// Universe returns the merged delta set of the reference.
func (s *Session) Universe() delta.Set { return s.universe }

// Cache returns the result cache of the session.
func (s *Session) Cache() *cache.ResultCache { return s.cache }

// Found returns the configurations reported so far.
func (s *Session) Found() []Found { return s.found }

// Run executes the configured strategy on the reference deltas.
func (s *Session) Run(ctx context.Context) (*strategy.Result, error) {
	engine := strategy.New(strategy.ConfigFromSettings(s.settings), s.cache, s.dd,
		strategy.WithFound(s.configurationFound),
		strategy.WithLogger(s.log))
	s.log.Infof("%s%s on %d deltas in %s", logging.NSSession, s.settings.Algorithm(), s.universe.Len(), s.workdir)
	res, err := engine.Run(ctx, s.universe)
	if err != nil {
		return nil, err
	}
	s.result = res
	return res, nil
}

// configurationFound prints a reported configuration, tests it at the full
// sample count and links its directory under name.
func (s *Session) configurationFound(ctx context.Context, name string, deltas delta.Set) error {
	s.printer.Found(name, s.dd.Coerce(deltas))
	outcome, err := s.cache.Test(ctx, deltas, s.settings.NbRun)
	if err != nil {
		return err
	}
	if err := symlink(s.cache.Dir(deltas), filepath.Join(s.workdir, name)); err != nil {
		return err
	}
	s.found = append(s.found, Found{
		Name:    name,
		Digest:  deltas.Digest(),
		Outcome: outcome.String(),
		Deltas:  deltas.Strings(),
	})
	return nil
}

// symlink replaces dst with a link to src.
func symlink(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("replace link %s: %w", dst, err)
		}
	}
	if err := os.Symlink(src, dst); err != nil {
		return fmt.Errorf("link %s: %w", dst, err)
	}
	return nil
}
