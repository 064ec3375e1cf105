package config

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

// optionKind is how an environment value is interpreted.
type optionKind int

const (
	kindInt optionKind = iota
	kindString
	kindIntOrString
	kindFlag
)

// option is one row of the environment table.
type option struct {
	key      string
	kind     optionKind
	accepted []string
	apply    func(s *Settings, raw string, n int)
}

// options lists every variable understood by Load, in reading order.
var options = []option{
	{key: "DD_NRUNS", kind: kindInt, apply: func(s *Settings, _ string, n int) { s.NbRun = n }},
	{key: "DD_NUM_THREADS", kind: kindInt, apply: func(s *Settings, _ string, n int) { s.MaxWorkers = n }},
	{
		key:      "DD_ALGO",
		kind:     kindString,
		accepted: []string{"ddmax", "rddmin"},
		apply:    func(s *Settings, v string, _ int) { s.DDAlgo = v },
	},
	{
		key:      "DD_RDDMIN",
		kind:     kindString,
		accepted: []string{"s", "stoch", "d", "dicho", "", "strict"},
		apply:    func(s *Settings, v string, _ int) { s.RDDMinVariant = canonicalVariant(v) },
	},
	{
		key:      "DD_RDDMIN_TAB",
		kind:     kindString,
		accepted: []string{"exp", "all", "single"},
		apply:    func(s *Settings, v string, _ int) { s.RDDMinTab = v },
	},
	{
		key:      "DD_DICHO_TAB",
		kind:     kindIntOrString,
		accepted: []string{"exp", "all", "half", "single"},
		apply:    func(s *Settings, v string, _ int) { s.DichoTab = v },
	},
	{key: "DD_DICHO_GRANULARITY", kind: kindInt, apply: func(s *Settings, _ string, n int) { s.Granularity = n }},
	{key: "DD_SYM", kind: kindFlag, apply: func(s *Settings, _ string, _ int) { s.Sym = true }},
	{key: "DD_QUIET", kind: kindFlag, apply: func(s *Settings, _ string, _ int) { s.Quiet = true }},
	{key: "DD_DEBUG", kind: kindFlag, apply: func(s *Settings, _ string, _ int) { s.Debug = true }},
	{
		key:   "DD_TIMEOUT",
		kind:  kindInt,
		apply: func(s *Settings, _ string, n int) { s.Timeout = time.Duration(n) * time.Second },
	},
	{
		key:      "DD_BUNDLE",
		kind:     kindString,
		accepted: []string{"none", "zstd", "snappy", "lz4"},
		apply:    func(s *Settings, v string, _ int) { s.Bundle = v },
	},
}

// readEnviron applies every option present under prefix.
func readEnviron(s *Settings, prefix string, lookup LookupFunc) error {
	for _, opt := range options {
		name := prefix + "_" + opt.key
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		if err := opt.read(s, name, raw); err != nil {
			return err
		}
	}
	return nil
}

func (o option) read(s *Settings, name, raw string) error {
	switch o.kind {
	case kindFlag:
		o.apply(s, raw, 0)
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q should be an integer", ErrInvalidValue, name, raw)
		}
		o.apply(s, raw, n)
	case kindString:
		if !slices.Contains(o.accepted, raw) {
			return fmt.Errorf("%w: %s=%q should be in %q", ErrInvalidValue, name, raw, o.accepted)
		}
		o.apply(s, raw, 0)
	case kindIntOrString:
		if slices.Contains(o.accepted, raw) {
			o.apply(s, raw, 0)
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q should be in %q or be an integer", ErrInvalidValue, name, raw, o.accepted)
		}
		o.apply(s, strconv.Itoa(n), n)
	}
	return nil
}

func canonicalVariant(v string) string {
	switch v {
	case "stoch":
		return "s"
	case "dicho":
		return "d"
	case "strict":
		return ""
	default:
		return v
	}
}
