// Package config turns the command line and the environment into Settings.
//
// The two positional arguments name the run and compare scripts. Everything
// else comes from environment variables sharing a configurable prefix
// (INTERFLOP by default): INTERFLOP_DD_NRUNS, INTERFLOP_DD_ALGO, ...
// Variables are read through a fixed option table; each entry knows its
// kind, its accepted values and how to store the value. Several prefixes may
// be given, later ones override earlier ones.
//
// Any invalid value is a configuration error: Load returns an error wrapping
// ErrUsage, ErrInvalidValue or ErrScript, and the command exits with code 42.
package config

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aalhour/ddstoch/internal/logging"
)

// DefaultPrefix is the environment prefix used when none is given.
const DefaultPrefix = "INTERFLOP"

var (
	// ErrUsage indicates a malformed command line.
	ErrUsage = errors.New("usage: ddstoch runScript cmpScript")

	// ErrInvalidValue indicates an environment variable with an unaccepted value.
	ErrInvalidValue = errors.New("invalid configuration value")

	// ErrScript indicates a run or compare script that is missing or not executable.
	ErrScript = errors.New("script should be an executable file")
)

// Algorithm names a reduction algorithm.
type Algorithm string

const (
	// AlgoDDMax grows the largest passing configuration.
	AlgoDDMax Algorithm = "ddmax"
	// AlgoRDDMin is strict rddmin at a single sample count.
	AlgoRDDMin Algorithm = "rddmin"
	// AlgoSRDDMin is rddmin with a staged sample-count schedule.
	AlgoSRDDMin Algorithm = "srddmin"
	// AlgoDRDDMin runs a dichotomy pass before srddmin.
	AlgoDRDDMin Algorithm = "drddmin"
)

// Settings is the validated configuration of one debugging session.
// It must not be modified after Load returns.
type Settings struct {
	// RunScript and CmpScript are absolute paths to executable files.
	RunScript string `validate:"required"`
	CmpScript string `validate:"required"`

	// Prefixes are the environment prefixes that were read, in order.
	Prefixes []string `validate:"min=1"`

	// NbRun is the number of samples used to judge a configuration.
	NbRun int `validate:"gt=0" env:"DD_NRUNS"`

	// MaxWorkers bounds concurrent run scripts. Zero means sequential sampling.
	MaxWorkers int `validate:"gte=0" env:"DD_NUM_THREADS"`

	// DDAlgo is "rddmin" or "ddmax"; RDDMinVariant selects the rddmin flavour:
	// "s" (staged), "d" (dichotomy first) or "" (strict).
	DDAlgo        string `validate:"oneof=ddmax rddmin" env:"DD_ALGO"`
	RDDMinVariant string `env:"DD_RDDMIN"`

	// RDDMinTab is the staged sample schedule: exp, all or single.
	RDDMinTab string `validate:"oneof=exp all single" env:"DD_RDDMIN_TAB"`

	// DichoTab is the dichotomy sample schedule: exp, all, half, single or
	// an integer in [1, NbRun].
	DichoTab string `validate:"dichotab" env:"DD_DICHO_TAB"`

	// Granularity is the number of parts a failing candidate is cut into.
	Granularity int `validate:"gte=2" env:"DD_DICHO_GRANULARITY"`

	// Sym selects symbol-based deltas instead of line-based ones.
	Sym bool `env:"DD_SYM"`

	// Quiet suppresses progress output.
	Quiet bool `env:"DD_QUIET"`

	// Debug enables debug logging.
	Debug bool `env:"DD_DEBUG"`

	// Timeout bounds each run script. Zero disables it.
	Timeout time.Duration `validate:"gte=0" env:"DD_TIMEOUT"`

	// Bundle is the codec of the end-of-session bundle, or "none".
	Bundle string `validate:"oneof=none zstd snappy lz4" env:"DD_BUNDLE"`
}

// Defaults returns the settings used before any environment variable is read.
func Defaults() Settings {
	return Settings{
		Prefixes:      []string{DefaultPrefix},
		NbRun:         5,
		DDAlgo:        "rddmin",
		RDDMinVariant: "d",
		RDDMinTab:     "exp",
		DichoTab:      "half",
		Granularity:   2,
		Bundle:        "none",
	}
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load builds Settings from the positional arguments (without the program
// name) and the environment, reading every prefix in order.
func Load(args []string, lookup LookupFunc, prefixes []string, log logging.Logger) (*Settings, error) {
	log = logging.OrDefault(log)
	if len(prefixes) == 0 {
		prefixes = []string{DefaultPrefix}
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("%w (got %d arguments)", ErrUsage, len(args))
	}

	s := Defaults()
	s.Prefixes = append([]string(nil), prefixes...)

	var err error
	if s.RunScript, err = CheckScript(args[0]); err != nil {
		return nil, err
	}
	if s.CmpScript, err = CheckScript(args[1]); err != nil {
		return nil, err
	}

	for _, prefix := range prefixes {
		if err := readEnviron(&s, prefix, lookup); err != nil {
			return nil, err
		}
	}

	if s.MaxWorkers != 0 && s.MaxWorkers < s.NbRun {
		log.Warnf("%s%s_DD_NUM_THREADS=%d < %s_DD_NRUNS=%d: parallel sampling needs one worker per sample, ignored",
			logging.NSConfig, s.lastPrefix(), s.MaxWorkers, s.lastPrefix(), s.NbRun)
		s.MaxWorkers = 0
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// CheckScript resolves path and checks that it is an executable regular file.
func CheckScript(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrScript, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrScript, path, err)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s", ErrScript, path)
	}
	return abs, nil
}

func (s *Settings) lastPrefix() string {
	if len(s.Prefixes) == 0 {
		return DefaultPrefix
	}
	return s.Prefixes[len(s.Prefixes)-1]
}

// Algorithm returns the reduction algorithm, combining DDAlgo and RDDMinVariant.
func (s *Settings) Algorithm() Algorithm {
	if s.DDAlgo == string(AlgoDDMax) {
		return AlgoDDMax
	}
	return Algorithm(s.RDDMinVariant + s.DDAlgo)
}

// Parallel reports whether samples run concurrently.
func (s *Settings) Parallel() bool {
	return s.MaxWorkers > 0
}

// Kind is "sym" or "line"; it names the delta files and the working directory.
func (s *Settings) Kind() string {
	if s.Sym {
		return "sym"
	}
	return "line"
}

// EnvName returns the full variable name of key under the last prefix.
func (s *Settings) EnvName(key string) string {
	return s.lastPrefix() + "_" + key
}

// RDDMinSchedule returns the ascending sample counts used by srddmin.
func (s *Settings) RDDMinSchedule() []int {
	switch s.RDDMinTab {
	case "all":
		return rangeInclusive(1, s.NbRun)
	case "single":
		return []int{s.NbRun}
	default:
		return ExponentialRange(s.NbRun)
	}
}

// SplitSchedule returns the ascending sample counts used by the dichotomy.
func (s *Settings) SplitSchedule() []int {
	switch s.DichoTab {
	case "exp":
		return ExponentialRange(s.NbRun)
	case "all":
		return rangeInclusive(1, s.NbRun)
	case "single":
		return []int{s.NbRun}
	case "half":
		return []int{int(math.Ceil(float64(s.NbRun) / 2))}
	default:
		n, _ := strconv.Atoi(s.DichoTab)
		return []int{n}
	}
}

// ExponentialRange returns nbRun/2^k, ..., nbRun/2, nbRun in ascending order,
// where k is the largest integer with 2^k <= nbRun.
// ExponentialRange(5) is [1 2 5]; ExponentialRange(8) is [1 2 4 8].
func ExponentialRange(nbRun int) []int {
	if nbRun < 1 {
		return nil
	}
	k := bits.Len(uint(nbRun)) - 1
	out := make([]int, 0, k+1)
	for i := k; i >= 0; i-- {
		out = append(out, nbRun>>i)
	}
	return out
}

func rangeInclusive(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}
