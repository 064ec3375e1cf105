// Package delta defines the units the debugger minimizes.
//
// A Delta is an opaque token, in practice one source location (or symbol)
// emitted by the instrumented program during the reference run. A Set is an
// ordered sequence of distinct deltas. Order matters for Split, which must
// cut the same input the same way every time so that the on-disk cache keeps
// hitting. Equality and digests ignore order.
package delta

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
)

// Delta is one togglable unit of the search space.
type Delta string

// Set is an ordered collection of distinct deltas.
type Set []Delta

// Of builds a Set from plain strings.
func Of(tokens ...string) Set {
	s := make(Set, len(tokens))
	for i, tok := range tokens {
		s[i] = Delta(tok)
	}
	return s
}

// Len returns the number of deltas.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns a sorted copy of s.
func (s Set) Sorted() Set {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}

// Equal reports whether s and o hold the same deltas, ignoring order.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	return slices.Equal(s.Sorted(), o.Sorted())
}

// Contains reports whether d is in s.
func (s Set) Contains(d Delta) bool {
	return slices.Contains(s, d)
}

// Minus returns the deltas of s that are not in o, keeping the order of s.
func (s Set) Minus(o Set) Set {
	if len(o) == 0 {
		return slices.Clone(s)
	}
	drop := make(map[Delta]struct{}, len(o))
	for _, d := range o {
		drop[d] = struct{}{}
	}
	out := make(Set, 0, len(s))
	for _, d := range s {
		if _, ok := drop[d]; !ok {
			out = append(out, d)
		}
	}
	return out
}

// Intersect returns the deltas of s that are also in o, keeping the order of s.
func (s Set) Intersect(o Set) Set {
	keep := make(map[Delta]struct{}, len(o))
	for _, d := range o {
		keep[d] = struct{}{}
	}
	out := make(Set, 0, len(s))
	for _, d := range s {
		if _, ok := keep[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Union returns s followed by the deltas of o not already in s.
func (s Set) Union(o Set) Set {
	return Flatten([]Set{s, o})
}

// Flatten concatenates sets, dropping repeated deltas (first occurrence wins).
func Flatten(sets []Set) Set {
	seen := make(map[Delta]struct{})
	var out Set
	for _, set := range sets {
		for _, d := range set {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}

// Strings returns the tokens of s.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = string(d)
	}
	return out
}

// Digest returns the cache key of the configuration: the 128-bit XXH3 hash
// of its sorted tokens joined by newlines, as 32 hex characters. Two sets
// with the same deltas in any order share a digest.
func (s Set) Digest() string {
	sorted := s.Sorted()
	var b strings.Builder
	for _, d := range sorted {
		b.WriteString(string(d))
		b.WriteByte('\n')
	}
	h := xxh3.Hash128([]byte(b.String()))
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// Split cuts s into n contiguous parts of near-equal size.
// Part i takes (remaining)/(n-i) deltas, so sizes differ by at most one and
// the larger parts come last. The result depends only on s and n.
// n is clamped to [1, len(s)]; an empty set yields no parts.
func Split(s Set, n int) []Set {
	if len(s) == 0 {
		return nil
	}
	n = max(1, min(n, len(s)))
	parts := make([]Set, 0, n)
	start := 0
	for i := range n {
		size := (len(s) - start) / (n - i)
		parts = append(parts, s[start:start+size:start+size])
		start += size
	}
	return parts
}
