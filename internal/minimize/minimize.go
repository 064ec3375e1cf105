// Package minimize implements the classical delta-debugging primitives
// against a single oracle at a fixed sample count.
//
// Minimize is Zeller's ddmin: the failing configuration is cut into n parts,
// each part and then each complement is tested, and the search narrows into
// whichever still fails. When nothing fails, n doubles. The result is
// 1-minimal: removing any single delta makes it pass.
//
// Maximize is the dual ddmax: starting from the empty (passing)
// configuration, it adds parts of the failing configuration as long as the
// result keeps passing.
//
// The oracle may be non-deterministic. Outcomes are not memoized here; the
// oracle is expected to cache them.
package minimize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aalhour/ddstoch/internal/delta"
)

// ErrNotFailing is returned when Minimize is called on a passing configuration.
var ErrNotFailing = errors.New("minimize: configuration does not fail")

// ErrNotPassing is returned when Maximize cannot start from a passing configuration.
var ErrNotPassing = errors.New("maximize: empty configuration does not pass")

// Outcome is the verdict of a configuration.
type Outcome uint8

const (
	// Pass means every sample passed.
	Pass Outcome = iota
	// Fail means at least one sample failed.
	Fail
)

func (o Outcome) String() string {
	if o == Fail {
		return "FAIL"
	}
	return "PASS"
}

// Oracle tests a configuration with nbRun samples.
type Oracle interface {
	Test(ctx context.Context, deltas delta.Set, nbRun int) (Outcome, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, deltas delta.Set, nbRun int) (Outcome, error)

// Test calls f.
func (f OracleFunc) Test(ctx context.Context, deltas delta.Set, nbRun int) (Outcome, error) {
	return f(ctx, deltas, nbRun)
}

// ProgressFunc receives progress lines. It never influences the search.
type ProgressFunc func(title string, remaining int, candidate string)

// DD holds the primitives shared by every reduction strategy.
type DD struct {
	oracle   Oracle
	progress ProgressFunc

	lastReported int
	tests        int
}

// Option configures a DD.
type Option func(*DD)

// WithProgress sets the progress sink. Without it progress is discarded.
func WithProgress(fn ProgressFunc) Option {
	return func(d *DD) { d.progress = fn }
}

// New creates a DD over oracle.
func New(oracle Oracle, opts ...Option) *DD {
	d := &DD{oracle: oracle, lastReported: -1}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tests returns the number of oracle calls made so far.
func (d *DD) Tests() int {
	return d.tests
}

func (d *DD) test(ctx context.Context, c delta.Set, nbRun int) (Outcome, error) {
	d.tests++
	return d.oracle.Test(ctx, c, nbRun)
}

// Minimize reduces the failing configuration deltas to a 1-minimal failing
// subset at nbRun samples. Calling it on a passing configuration returns
// ErrNotFailing.
func (d *DD) Minimize(ctx context.Context, deltas delta.Set, nbRun int) (delta.Set, error) {
	outcome, err := d.test(ctx, deltas, nbRun)
	if err != nil {
		return nil, err
	}
	if outcome != Fail {
		return nil, fmt.Errorf("%w (%d deltas, %d runs)", ErrNotFailing, deltas.Len(), nbRun)
	}

	c := deltas
	n := 2
	for {
		if n > c.Len() {
			return c, nil
		}
		d.ReportProgress(c, "dd")

		parts := d.Split(c, n)
		next, nextN := c, n
		reduced := false

		// Reduce to subset.
		for _, part := range parts {
			outcome, err := d.test(ctx, part, nbRun)
			if err != nil {
				return nil, err
			}
			if outcome == Fail {
				next, nextN = part, 2
				reduced = true
				break
			}
		}

		// Reduce to complement.
		if !reduced {
			for _, part := range parts {
				complement := c.Minus(part)
				outcome, err := d.test(ctx, complement, nbRun)
				if err != nil {
					return nil, err
				}
				if outcome == Fail {
					next, nextN = complement, max(n-1, 2)
					reduced = true
					break
				}
			}
		}

		if !reduced {
			if n >= c.Len() {
				return c, nil
			}
			nextN = min(c.Len(), n*2)
		}
		c, n = next, nextN
	}
}

// Maximize grows the empty configuration towards deltas while it keeps
// passing at nbRun samples, and returns the largest passing configuration
// found. The complement of the result in deltas is failure-inducing.
// deltas itself is expected to fail.
func (d *DD) Maximize(ctx context.Context, deltas delta.Set, nbRun int) (delta.Set, error) {
	outcome, err := d.test(ctx, delta.Set{}, nbRun)
	if err != nil {
		return nil, err
	}
	if outcome != Pass {
		return nil, ErrNotPassing
	}

	pass := delta.Set{}
	n := 2
	for {
		rest := deltas.Minus(pass)
		if rest.Len() == 0 {
			return pass, nil
		}
		d.ReportProgress(rest, "ddmax")
		if n > rest.Len() {
			n = rest.Len()
		}
		parts := d.Split(rest, n)
		grown := false

		// Increase to complement.
		for _, part := range parts {
			candidate := deltas.Minus(part)
			if candidate.Len() <= pass.Len() {
				continue
			}
			outcome, err := d.test(ctx, candidate, nbRun)
			if err != nil {
				return nil, err
			}
			if outcome == Pass {
				pass, n = candidate, 2
				grown = true
				break
			}
		}

		// Increase to subset.
		if !grown {
			for _, part := range parts {
				candidate := deltas.Intersect(pass.Union(part))
				outcome, err := d.test(ctx, candidate, nbRun)
				if err != nil {
					return nil, err
				}
				if outcome == Pass {
					pass, n = candidate, max(n-1, 2)
					grown = true
					break
				}
			}
		}

		if !grown {
			if n >= rest.Len() {
				return pass, nil
			}
			n = min(rest.Len(), n*2)
		}
	}
}

// Split partitions deltas into n contiguous parts of near-equal size.
// Larger parts come last. The result depends only on the input order.
func (d *DD) Split(deltas delta.Set, n int) []delta.Set {
	return delta.Split(deltas, n)
}

// ReportProgress emits a progress line for candidate when its size differs
// from the last reported one.
func (d *DD) ReportProgress(candidate delta.Set, title string) {
	if candidate.Len() == d.lastReported {
		return
	}
	d.lastReported = candidate.Len()
	if d.progress != nil {
		d.progress(title, candidate.Len(), d.Coerce(candidate))
	}
}

// Coerce renders a configuration for display.
func (d *DD) Coerce(candidate delta.Set) string {
	return strings.Join(candidate.Strings(), ", ")
}
