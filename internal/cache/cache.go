// Package cache maps configurations to their on-disk results.
//
// Each tested configuration owns a directory named by its digest under the
// session root:
//
//	<root>/<digest>/dd.<kind>.include   deltas of the configuration
//	<root>/<digest>/dd.<kind>.exclude   the universe minus the configuration
//	<root>/<digest>/dd.run<i>/          one directory per sample
//
// The tree is append-only. A sample with a marker is never executed again,
// so asking for more samples of a passing configuration only runs the
// missing ones, and a configuration with any failing marker fails without
// executing anything, whatever sample count is asked.
//
// Marker summaries are memoized in an LRU in front of the directory scans.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"github.com/aalhour/ddstoch/internal/delta"
	"github.com/aalhour/ddstoch/internal/logging"
	"github.com/aalhour/ddstoch/internal/minimize"
	"github.com/aalhour/ddstoch/internal/sample"
)

// DefaultMemoEntries bounds the marker memo.
const DefaultMemoEntries = 4096

// Verdict describes one Test call. Listeners use it to print progress.
type Verdict struct {
	// Digest names the configuration directory.
	Digest string

	// Outcome is the aggregated verdict.
	Outcome minimize.Outcome

	// Cached is set when no sample was executed.
	Cached bool

	// NbRun is the requested sample count.
	NbRun int

	// Executed is the number of samples scheduled by this call.
	Executed int

	// FailedIndex is the zero-based failing sample when the outcome is Fail
	// and the verdict was not cached.
	FailedIndex int
}

// Listener receives every verdict, in call order.
type Listener func(Verdict)

// Options configures a ResultCache.
type Options struct {
	// Root is the session working directory.
	Root string

	// Universe is the full delta set; exclude files are derived from it.
	Universe delta.Set

	// Kind is "line" or "sym"; it names the include and exclude files.
	Kind string

	// Prefixes name the environment prefixes; each receives
	// <prefix>_DD_INCLUDE and <prefix>_DD_EXCLUDE for every sample.
	Prefixes []string

	// Runner executes missing samples.
	Runner *sample.Runner

	// Listener is notified of every verdict. May be nil.
	Listener Listener

	// MemoEntries bounds the marker memo. Zero uses DefaultMemoEntries.
	MemoEntries int

	// Logger receives debug traces. Nil uses the default logger.
	Logger logging.Logger
}

// Stats counts cache activity.
type Stats struct {
	// Tests is the number of Test calls.
	Tests uint64
	// CachedTests is the number of Test calls answered without execution.
	CachedTests uint64
	// Samples is the number of run scripts launched.
	Samples uint64
	// Configurations is the number of configuration directories created.
	Configurations uint64
	// MemoHits and MemoMisses count marker memo lookups.
	MemoHits   uint64
	MemoMisses uint64
	// MemoHitRate is MemoHits over all lookups, 0 before the first one.
	MemoHitRate float64
}

// state summarizes the markers of one configuration.
type state struct {
	failed bool
	passed []int // sorted sample indices
}

func (s state) workToDo(nbRun int) []int {
	var work []int
	for i := range nbRun {
		if _, found := slices.BinarySearch(s.passed, i); !found {
			work = append(work, i)
		}
	}
	return work
}

// ResultCache runs configurations at most once per sample.
// It is used by a single goroutine.
type ResultCache struct {
	opts Options
	log  logging.Logger
	memo *LRU[string, state]

	tests          atomic.Uint64
	cachedTests    atomic.Uint64
	samples        atomic.Uint64
	configurations atomic.Uint64
}

// New creates a ResultCache.
func New(opts Options) *ResultCache {
	if opts.MemoEntries == 0 {
		opts.MemoEntries = DefaultMemoEntries
	}
	return &ResultCache{
		opts: opts,
		log:  logging.OrDefault(opts.Logger),
		memo: NewLRU[string, state](opts.MemoEntries),
	}
}

// Dir returns the directory of a configuration.
func (c *ResultCache) Dir(deltas delta.Set) string {
	return filepath.Join(c.opts.Root, deltas.Digest())
}

// IncludeFile returns the name of the include file, e.g. dd.line.include.
func (c *ResultCache) IncludeFile() string {
	return "dd." + c.opts.Kind + ".include"
}

// ExcludeFile returns the name of the exclude file, e.g. dd.line.exclude.
func (c *ResultCache) ExcludeFile() string {
	return "dd." + c.opts.Kind + ".exclude"
}

// Stats returns a snapshot of the counters.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Tests:          c.tests.Load(),
		CachedTests:    c.cachedTests.Load(),
		Samples:        c.samples.Load(),
		Configurations: c.configurations.Load(),
		MemoHits:       c.memo.Hits(),
		MemoMisses:     c.memo.Misses(),
		MemoHitRate:    c.memo.HitRate(),
	}
}

// Test returns the verdict of deltas at nbRun samples, executing only the
// samples that have no marker yet. It implements minimize.Oracle.
func (c *ResultCache) Test(ctx context.Context, deltas delta.Set, nbRun int) (minimize.Outcome, error) {
	c.tests.Add(1)
	digest := deltas.Digest()
	dir := filepath.Join(c.opts.Root, digest)

	if err := c.ensureDir(dir, deltas); err != nil {
		return minimize.Fail, err
	}

	st, err := c.loadState(digest, dir)
	if err != nil {
		return minimize.Fail, err
	}

	if st.failed {
		c.cachedTests.Add(1)
		c.notify(Verdict{Digest: digest, Outcome: minimize.Fail, Cached: true, NbRun: nbRun})
		return minimize.Fail, nil
	}

	work := st.workToDo(nbRun)
	if len(work) == 0 {
		c.cachedTests.Add(1)
		c.notify(Verdict{Digest: digest, Outcome: minimize.Pass, Cached: true, NbRun: nbRun})
		return minimize.Pass, nil
	}

	c.log.Debugf("%s%s: %d sample(s) to run for nbRun=%d", logging.NSCache, digest, len(work), nbRun)
	report, err := c.opts.Runner.Run(ctx, sample.Task{
		Dir:     dir,
		Indices: work,
		Env:     c.sampleEnv(dir),
	})
	if report != nil {
		c.samples.Add(uint64(report.Launched))
		st = st.merge(report)
		c.memo.Put(digest, st)
	}
	if err != nil {
		// Partially recorded markers stay valid; drop the memo to rescan later.
		c.memo.Remove(digest)
		return minimize.Fail, fmt.Errorf("test %s: %w", digest, err)
	}

	v := Verdict{Digest: digest, Outcome: minimize.Pass, NbRun: nbRun, Executed: len(work)}
	if report.Failed {
		v.Outcome = minimize.Fail
		v.FailedIndex = report.FailedIndex
	}
	c.notify(v)
	return v.Outcome, nil
}

func (s state) merge(report *sample.Report) state {
	passed := slices.Clone(s.passed)
	for _, r := range report.Results {
		if r.Passed() {
			passed = append(passed, r.Index)
		}
	}
	slices.Sort(passed)
	return state{failed: s.failed || report.Failed, passed: slices.Compact(passed)}
}

func (c *ResultCache) loadState(digest, dir string) (state, error) {
	if st, ok := c.memo.Get(digest); ok {
		return st, nil
	}
	markers, err := sample.ReadMarkers(dir)
	if err != nil {
		return state{}, err
	}
	var st state
	for _, m := range markers {
		if m.Failed() {
			st.failed = true
			continue
		}
		st.passed = append(st.passed, m.Index)
	}
	c.memo.Put(digest, st)
	return st, nil
}

// ensureDir creates the configuration directory with its include and
// exclude files. An existing directory is left untouched.
func (c *ResultCache) ensureDir(dir string, deltas delta.Set) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat configuration dir: %w", err)
	}

	// Files are written in a staging directory and renamed, so an
	// interrupted creation never leaves a directory without them.
	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clean configuration dir: %w", err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("create configuration dir: %w", err)
	}
	if err := delta.WriteFile(filepath.Join(tmp, c.IncludeFile()), deltas); err != nil {
		return err
	}
	if err := delta.WriteFile(filepath.Join(tmp, c.ExcludeFile()), c.opts.Universe.Minus(deltas)); err != nil {
		return err
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("create configuration dir: %w", err)
	}
	c.configurations.Add(1)
	return nil
}

func (c *ResultCache) sampleEnv(dir string) []string {
	env := make([]string, 0, 2*len(c.opts.Prefixes))
	for _, prefix := range c.opts.Prefixes {
		env = append(env,
			prefix+"_DD_INCLUDE="+filepath.Join(dir, c.IncludeFile()),
			prefix+"_DD_EXCLUDE="+filepath.Join(dir, c.ExcludeFile()),
		)
	}
	return env
}

func (c *ResultCache) notify(v Verdict) {
	if c.opts.Listener != nil {
		c.opts.Listener(v)
	}
}
