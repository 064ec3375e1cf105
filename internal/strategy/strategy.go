// Package strategy composes the delta-debugging primitives into reduction
// algorithms that stay robust under a non-deterministic oracle.
//
//   - RDDMin repeats ddmin at one sample count, removing every minimal
//     failing subset found, until the remainder passes.
//   - SRDDMin runs the same loop over an ascending schedule of sample
//     counts, so cheap low-confidence checks come first.
//   - SplitDeltas is a dichotomy over a priority queue of candidates.
//   - SsplitDeltas repeats the dichotomy over an ascending schedule.
//   - DRDDMin runs SsplitDeltas, then SRDDMin on whatever the dichotomy
//     could not reduce to a single delta.
//   - DDMax grows the largest passing configuration; its complement is the
//     failure-inducing set.
//
// Every strategy requires the input to fail at the full sample count. When
// it does not, the strategy returns a *DegenerateError wrapping
// ErrNothingToDebug instead of an empty result.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/aalhour/ddstoch/internal/config"
	"github.com/aalhour/ddstoch/internal/delta"
	"github.com/aalhour/ddstoch/internal/logging"
	"github.com/aalhour/ddstoch/internal/minimize"
)

var (
	// ErrNothingToDebug indicates that the input configuration passes.
	ErrNothingToDebug = errors.New("nothing to debug: the configuration with all deltas passes")

	// ErrAllDeltasPass indicates that ddmax found the fully perturbed
	// configuration stable.
	ErrAllDeltasPass = fmt.Errorf("all deltas perturbed and the output is still stable: %w", ErrNothingToDebug)

	// ErrNoDeltaSucceeds indicates that the configuration without any
	// perturbed delta already fails.
	ErrNoDeltaSucceeds = errors.New("the configuration without perturbed deltas fails")

	// ErrUnknownAlgorithm is returned by Run for an unsupported algorithm.
	ErrUnknownAlgorithm = errors.New("unknown reduction algorithm")
)

// DegenerateError reports an oracle that cannot drive a reduction.
type DegenerateError struct {
	// Err is ErrNothingToDebug, ErrAllDeltasPass or ErrNoDeltaSucceeds.
	Err error
	// Digest names the configuration directory to analyze.
	Digest string
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("%v (directory to analyze: %s)", e.Err, e.Digest)
}

func (e *DegenerateError) Unwrap() error {
	return e.Err
}

// Minimizer is the set of primitives the strategies are built on.
type Minimizer interface {
	Minimize(ctx context.Context, deltas delta.Set, nbRun int) (delta.Set, error)
	Maximize(ctx context.Context, deltas delta.Set, nbRun int) (delta.Set, error)
	Split(deltas delta.Set, n int) []delta.Set
	ReportProgress(candidate delta.Set, title string)
	Coerce(candidate delta.Set) string
}

// FoundFunc is called for every configuration reported to the user:
// ddmin<i> for minimal failing subsets, rddmin-cmp, ddmax and ddmax-cmp.
type FoundFunc func(ctx context.Context, name string, deltas delta.Set) error

// Config selects the algorithm and its parameters.
type Config struct {
	// Algorithm selects the strategy run by Run.
	Algorithm config.Algorithm

	// NbRun is the full sample count.
	NbRun int

	// RDDMinSchedule is the ascending sample schedule of SRDDMin.
	RDDMinSchedule []int

	// SplitSchedule is the ascending sample schedule of SsplitDeltas.
	SplitSchedule []int

	// Granularity is the number of parts a failing candidate is cut into.
	Granularity int
}

// ConfigFromSettings builds a Config from validated settings.
func ConfigFromSettings(s *config.Settings) Config {
	return Config{
		Algorithm:      s.Algorithm(),
		NbRun:          s.NbRun,
		RDDMinSchedule: s.RDDMinSchedule(),
		SplitSchedule:  s.SplitSchedule(),
		Granularity:    s.Granularity,
	}
}

// Engine runs reduction strategies against one oracle.
type Engine struct {
	cfg    Config
	oracle minimize.Oracle
	dd     Minimizer
	found  FoundFunc
	log    logging.Logger

	// index numbers the minimal failing subsets: ddmin0, ddmin1, ...
	index int
}

// Option configures an Engine.
type Option func(*Engine)

// WithFound sets the callback receiving reported configurations.
func WithFound(fn FoundFunc) Option {
	return func(e *Engine) { e.found = fn }
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine.
func New(cfg Config, oracle minimize.Oracle, dd Minimizer, opts ...Option) *Engine {
	if cfg.Granularity < 2 {
		cfg.Granularity = 2
	}
	if len(cfg.RDDMinSchedule) == 0 {
		cfg.RDDMinSchedule = []int{cfg.NbRun}
	}
	if len(cfg.SplitSchedule) == 0 {
		cfg.SplitSchedule = []int{cfg.NbRun}
	}
	e := &Engine{cfg: cfg, oracle: oracle, dd: dd}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrDefault(e.log)
	return e
}

// Result is the outcome of Run.
type Result struct {
	// Algorithm is the strategy that ran.
	Algorithm config.Algorithm

	// Found lists the minimal failing subsets, or for ddmax the single
	// failure-inducing complement.
	Found []delta.Set

	// Complement is rddmin-cmp (deltas in no found subset) or, for ddmax,
	// the largest passing configuration.
	Complement delta.Set
}

// Run executes the configured algorithm on deltas and reports the
// complement configurations.
func (e *Engine) Run(ctx context.Context, deltas delta.Set) (*Result, error) {
	res := &Result{Algorithm: e.cfg.Algorithm}
	var err error
	switch e.cfg.Algorithm {
	case config.AlgoDDMax:
		var pass delta.Set
		pass, err = e.DDMax(ctx, deltas)
		if err != nil {
			return nil, err
		}
		res.Found = []delta.Set{deltas.Minus(pass)}
		res.Complement = pass
		return res, nil
	case config.AlgoRDDMin:
		res.Found, err = e.RDDMin(ctx, deltas, e.cfg.NbRun)
	case config.AlgoSRDDMin:
		res.Found, err = e.SRDDMin(ctx, deltas, e.cfg.RDDMinSchedule)
	case config.AlgoDRDDMin:
		res.Found, err = e.DRDDMin(ctx, deltas, e.cfg.RDDMinSchedule, e.cfg.SplitSchedule, e.cfg.Granularity)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, e.cfg.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	res.Complement = deltas.Minus(delta.Flatten(res.Found))
	if err := e.report(ctx, "rddmin-cmp", res.Complement); err != nil {
		return nil, err
	}
	return res, nil
}

// RDDMin repeatedly minimizes the remaining deltas at nbRun samples,
// removing each minimal failing subset, until the remainder passes.
func (e *Engine) RDDMin(ctx context.Context, deltas delta.Set, nbRun int) ([]delta.Set, error) {
	if err := e.requireFail(ctx, deltas, nbRun); err != nil {
		return nil, err
	}

	var found []delta.Set
	for outcome := minimize.Fail; outcome == minimize.Fail && deltas.Len() > 0; {
		conf, err := e.dd.Minimize(ctx, deltas, nbRun)
		if errors.Is(err, minimize.ErrNotFailing) {
			break
		}
		if err != nil {
			return found, err
		}
		if err := e.foundMinimal(ctx, conf); err != nil {
			return found, err
		}
		found = append(found, conf)

		deltas = deltas.Minus(conf)
		if deltas.Len() == 0 {
			break
		}
		if outcome, err = e.oracle.Test(ctx, deltas, nbRun); err != nil {
			return found, err
		}
	}
	return found, nil
}

// SRDDMin runs the RDDMin loop over an ascending sample schedule. A
// non-singleton result is minimized again at each larger count of the
// schedule. This refinement is a heuristic: a subset that looks minimal at a
// low count may still shrink, and the final union is not guaranteed to be
// globally minimal across stages.
func (e *Engine) SRDDMin(ctx context.Context, deltas delta.Set, schedule []int) ([]delta.Set, error) {
	schedule = e.orFull(schedule)
	if err := e.requireFail(ctx, deltas, schedule[len(schedule)-1]); err != nil {
		return nil, err
	}
	return e.srddmin(ctx, deltas, schedule)
}

func (e *Engine) srddmin(ctx context.Context, deltas delta.Set, schedule []int) ([]delta.Set, error) {
	schedule = e.orFull(schedule)
	nbRun := schedule[len(schedule)-1]
	var found []delta.Set

	for k, run := range schedule {
		if deltas.Len() == 0 {
			break
		}
		outcome, err := e.oracle.Test(ctx, deltas, run)
		if err != nil {
			return found, err
		}

		for outcome == minimize.Fail && deltas.Len() > 0 {
			e.dd.ReportProgress(deltas, "SRDDMin")
			conf, err := e.dd.Minimize(ctx, deltas, run)
			if errors.Is(err, minimize.ErrNotFailing) {
				break
			}
			if err != nil {
				return found, err
			}
			if conf.Len() != 1 {
				// May not be minimal at this sample count.
				if conf, err = e.escalate(ctx, conf, schedule[k+1:]); err != nil {
					return found, err
				}
			}
			if err := e.foundMinimal(ctx, conf); err != nil {
				return found, err
			}
			found = append(found, conf)

			deltas = deltas.Minus(conf)
			if deltas.Len() == 0 {
				break
			}
			if outcome, err = e.oracle.Test(ctx, deltas, nbRun); err != nil {
				return found, err
			}
		}
	}
	return found, nil
}

// escalate minimizes conf again at each larger sample count until it is a
// singleton.
func (e *Engine) escalate(ctx context.Context, conf delta.Set, larger []int) (delta.Set, error) {
	for _, run := range larger {
		next, err := e.dd.Minimize(ctx, conf, run)
		if errors.Is(err, minimize.ErrNotFailing) {
			e.log.Debugf("%s%d deltas no longer fail at %d runs, kept as is", logging.NSDD, conf.Len(), run)
			continue
		}
		if err != nil {
			return nil, err
		}
		conf = next
		if conf.Len() == 1 {
			break
		}
	}
	return conf, nil
}

// SplitDeltas searches failing parts of deltas by dichotomy at nbRun
// samples. It returns the failing singletons it found, each reported as a
// minimal failing subset, and the failing candidates no part of which fails
// on its own. A deltas set that passes at the full sample count yields nil.
func (e *Engine) SplitDeltas(ctx context.Context, deltas delta.Set, nbRun, granularity int) ([]delta.Set, error) {
	if deltas.Len() == 0 {
		return nil, nil
	}
	outcome, err := e.oracle.Test(ctx, deltas, e.cfg.NbRun)
	if err != nil || outcome == minimize.Pass {
		return nil, err
	}

	var res []delta.Set
	q := &workQueue{}
	q.push(deltas, statusFail)

	for q.Len() > 0 {
		c := q.pop()
		switch c.status {
		case statusUnknown:
			e.dd.ReportProgress(c.deltas, "splitDeltas(unknownStatus)")
			outcome, err := e.oracle.Test(ctx, c.deltas, nbRun)
			if err != nil {
				return res, err
			}
			if outcome == minimize.Fail {
				q.push(c.deltas, statusFail)
			}

		case statusFail:
			e.dd.ReportProgress(c.deltas, "splitDeltas")
			parts := e.dd.Split(c.deltas, min(granularity, c.deltas.Len()))
			cuttable := false
			requeued := false
			for i, part := range parts {
				outcome, err := e.oracle.Test(ctx, part, nbRun)
				if err != nil {
					return res, err
				}
				if outcome != minimize.Fail {
					continue
				}
				if part.Len() == 1 {
					if err := e.foundMinimal(ctx, part); err != nil {
						return res, err
					}
					res = append(res, part)
					cuttable = true
					continue
				}
				q.push(part, statusFail)
				// Pushed last first so the next part pops first.
				for j := len(parts) - 1; j > i; j-- {
					q.push(parts[j], statusUnknown)
				}
				requeued = true
				break
			}
			if !cuttable && !requeued {
				res = append(res, c.deltas)
			}
		}
	}
	return res, nil
}

// SsplitDeltas applies SplitDeltas over an ascending sample schedule. Each
// pass splits again the non-singleton results of the previous pass, plus
// the deltas no previous result covers.
func (e *Engine) SsplitDeltas(ctx context.Context, deltas delta.Set, schedule []int, granularity int) ([]delta.Set, error) {
	current := []delta.Set{deltas}
	for _, run := range schedule {
		var next []delta.Set
		for _, c := range current {
			if c.Len() == 1 {
				next = append(next, c)
				continue
			}
			e.dd.ReportProgress(c, "ssplitDelta")
			res, err := e.SplitDeltas(ctx, c, run, granularity)
			if err != nil {
				return nil, err
			}
			next = append(next, res...)
		}

		remain := deltas.Minus(delta.Flatten(next))
		if remain.Len() > 0 {
			e.dd.ReportProgress(remain, "ssplitDelta")
			res, err := e.SplitDeltas(ctx, remain, run, granularity)
			if err != nil {
				return nil, err
			}
			next = append(next, res...)
		}
		current = next
	}
	return current, nil
}

// DRDDMin runs the dichotomy first. Singleton candidates are accepted as
// minimal failing subsets; larger ones are reduced with SRDDMin, and so is
// any failing remainder.
func (e *Engine) DRDDMin(ctx context.Context, deltas delta.Set, rddminSchedule, splitSchedule []int, granularity int) ([]delta.Set, error) {
	rddminSchedule = e.orFull(rddminSchedule)
	nbRun := rddminSchedule[len(rddminSchedule)-1]
	if err := e.requireFail(ctx, deltas, nbRun); err != nil {
		return nil, err
	}

	candidates, err := e.SsplitDeltas(ctx, deltas, splitSchedule, granularity)
	if err != nil {
		return nil, err
	}
	e.log.Infof("%sdichotomy split done: %d candidate(s)", logging.NSDD, len(candidates))

	var found []delta.Set
	for _, c := range candidates {
		if c.Len() == 1 {
			found = append(found, c)
			deltas = deltas.Minus(c)
			continue
		}
		e.dd.ReportProgress(c, "DRDDMin")
		res, err := e.srddmin(ctx, c, rddminSchedule)
		if err != nil {
			return found, err
		}
		for _, m := range res {
			found = append(found, m)
			deltas = deltas.Minus(m)
		}
	}
	e.log.Infof("%sdichotomy split analyze done", logging.NSDD)

	if deltas.Len() == 0 {
		return found, nil
	}
	outcome, err := e.oracle.Test(ctx, deltas, nbRun)
	if err != nil || outcome != minimize.Fail {
		return found, err
	}
	res, err := e.srddmin(ctx, deltas, rddminSchedule)
	return append(found, res...), err
}

// DDMax returns the largest passing configuration of deltas at the full
// sample count and reports it with its complement.
func (e *Engine) DDMax(ctx context.Context, deltas delta.Set) (delta.Set, error) {
	outcome, err := e.oracle.Test(ctx, deltas, e.cfg.NbRun)
	if err != nil {
		return nil, err
	}
	if outcome == minimize.Pass {
		return nil, &DegenerateError{Err: ErrAllDeltasPass, Digest: deltas.Digest()}
	}

	pass, err := e.dd.Maximize(ctx, deltas, e.cfg.NbRun)
	if errors.Is(err, minimize.ErrNotPassing) {
		return nil, &DegenerateError{Err: ErrNoDeltaSucceeds, Digest: delta.Set{}.Digest()}
	}
	if err != nil {
		return nil, err
	}

	if err := e.report(ctx, "ddmax", deltas.Minus(pass)); err != nil {
		return nil, err
	}
	if err := e.report(ctx, "ddmax-cmp", pass); err != nil {
		return nil, err
	}
	return pass, nil
}

// orFull replaces an empty schedule with the full sample count.
func (e *Engine) orFull(schedule []int) []int {
	if len(schedule) == 0 {
		return []int{e.cfg.NbRun}
	}
	return schedule
}

func (e *Engine) requireFail(ctx context.Context, deltas delta.Set, nbRun int) error {
	outcome, err := e.oracle.Test(ctx, deltas, nbRun)
	if err != nil {
		return err
	}
	if outcome != minimize.Fail {
		return &DegenerateError{Err: ErrNothingToDebug, Digest: deltas.Digest()}
	}
	return nil
}

func (e *Engine) foundMinimal(ctx context.Context, conf delta.Set) error {
	name := fmt.Sprintf("ddmin%d", e.index)
	e.index++
	return e.report(ctx, name, conf)
}

func (e *Engine) report(ctx context.Context, name string, deltas delta.Set) error {
	e.log.Debugf("%s%s (%s)", logging.NSDD, name, e.dd.Coerce(deltas))
	if e.found == nil {
		return nil
	}
	return e.found(ctx, name, deltas)
}
