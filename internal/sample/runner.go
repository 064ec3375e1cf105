package sample

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aalhour/ddstoch/internal/logging"
)

// RunnerConfig configures the sample runner.
type RunnerConfig struct {
	// RunScript is invoked as "<RunScript> <sampleDir>".
	RunScript string

	// CmpScript is invoked as "<CmpScript> <RefDir> <sampleDir>".
	CmpScript string

	// RefDir is the reference output every sample is compared against.
	RefDir string

	// Timeout bounds each run script. Zero disables it.
	Timeout time.Duration

	// MaxWorkers bounds concurrent run scripts. Zero selects sequential mode:
	// each sample is run and compared before the next one starts.
	MaxWorkers int

	// Prefixes name the environment prefixes; each one receives
	// <prefix>_DD_RUN_DIR set to the sample directory.
	Prefixes []string

	// Logger receives debug traces. Nil uses the default logger.
	Logger logging.Logger
}

// Task is one batch of samples of a configuration.
type Task struct {
	// Dir is the configuration directory.
	Dir string

	// Indices are the zero-based samples to execute, in order.
	Indices []int

	// Env is appended to the environment of the run script.
	Env []string
}

// Report is the outcome of a Task.
type Report struct {
	// Results holds one entry per compared sample, in execution order.
	Results []*Result

	// Launched counts the run scripts started, drained ones included.
	Launched int

	// Failed is set when a sample failed; FailedIndex is its index.
	Failed      bool
	FailedIndex int
}

// Runner executes run and compare scripts.
type Runner struct {
	config RunnerConfig
	log    logging.Logger
}

// NewRunner creates a sample runner.
func NewRunner(config RunnerConfig) *Runner {
	return &Runner{config: config, log: logging.OrDefault(config.Logger)}
}

// Parallel reports whether run scripts are launched concurrently.
func (r *Runner) Parallel() bool {
	return r.config.MaxWorkers > 0
}

// Run executes the samples of task and stops comparing at the first failure.
// Script failures are recorded as failing samples. The returned error is
// reserved for filesystem errors, ErrLogFile included, and cancellation of
// ctx. Samples hit by an error keep no marker.
func (r *Runner) Run(ctx context.Context, task Task) (*Report, error) {
	if r.Parallel() {
		return r.runParallel(ctx, task)
	}
	return r.runSequential(ctx, task)
}

func (r *Runner) runSequential(ctx context.Context, task Task) (*Report, error) {
	report := &Report{}
	for _, i := range task.Indices {
		dir, err := r.prepare(task.Dir, i)
		if err != nil {
			return report, err
		}
		report.Launched++
		result, err := r.runOne(ctx, task, i, dir)
		if err != nil {
			return report, err
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.finish(ctx, result); err != nil {
			return report, err
		}
		report.Results = append(report.Results, result)
		if !result.Passed() {
			report.Failed = true
			report.FailedIndex = i
			return report, nil
		}
	}
	return report, nil
}

// runParallel launches every run script, then compares the samples in order.
// After the first failure the remaining run scripts are waited for but not
// compared; their directories keep no marker.
func (r *Runner) runParallel(ctx context.Context, task Task) (*Report, error) {
	report := &Report{}
	dirs := make([]string, len(task.Indices))
	for k, i := range task.Indices {
		dir, err := r.prepare(task.Dir, i)
		if err != nil {
			return report, err
		}
		dirs[k] = dir
	}

	results := make([]*Result, len(task.Indices))
	errs := make([]error, len(task.Indices))
	done := make([]chan struct{}, len(task.Indices))
	for k := range done {
		done[k] = make(chan struct{})
	}

	var g errgroup.Group
	g.SetLimit(r.config.MaxWorkers)
	for k, i := range task.Indices {
		report.Launched++
		g.Go(func() error {
			defer close(done[k])
			results[k], errs[k] = r.runOne(ctx, task, i, dirs[k])
			return nil
		})
	}

	var firstErr error
	for k, i := range task.Indices {
		<-done[k]
		if report.Failed || firstErr != nil {
			continue
		}
		if err := errs[k]; err != nil {
			firstErr = err
			continue
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			continue
		}
		result := results[k]
		if err := r.finish(ctx, result); err != nil {
			firstErr = err
			continue
		}
		report.Results = append(report.Results, result)
		if !result.Passed() {
			report.Failed = true
			report.FailedIndex = i
			r.log.Debugf("%sdraining %d run(s) after failure of sample %d", logging.NSSample, len(task.Indices)-k-1, i+1)
		}
	}
	_ = g.Wait()
	return report, firstErr
}

// prepare creates an empty sample directory, discarding leftovers of an
// interrupted or drained execution.
func (r *Runner) prepare(configDir string, i int) (string, error) {
	dir := Dir(configDir, i)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clean sample dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create sample dir: %w", err)
	}
	return dir, nil
}

// runOne executes the run script of sample i. Only ErrLogFile is returned;
// script failures are recorded in the result.
func (r *Runner) runOne(ctx context.Context, task Task, i int, dir string) (*Result, error) {
	result := &Result{Index: i, Dir: dir, RunStart: time.Now()}

	runCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	env := append(os.Environ(), task.Env...)
	for _, prefix := range r.config.Prefixes {
		env = append(env, prefix+"_DD_RUN_DIR="+dir)
	}

	r.log.Debugf("%srun %s %s", logging.NSSample, r.config.RunScript, dir)
	code, err := Exec(runCtx, filepath.Join(dir, runLog), env, r.config.RunScript, dir)
	result.RunEnd = time.Now()
	result.RunExitCode = code

	switch {
	case errors.Is(err, ErrLogFile):
		return nil, err
	case err == nil:
	case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		result.RunExitCode = -1
		result.TimedOut = true
		result.Failure = fmt.Sprintf("run script timeout after %s", r.config.Timeout)
	case code > 0:
		result.Failure = fmt.Sprintf("run script exit code: %d", code)
	default:
		result.RunExitCode = -1
		result.Failure = fmt.Sprintf("run script: %v", err)
	}
	return result, nil
}

// finish compares a sample whose run script succeeded, then records its
// marker and artifact.
func (r *Runner) finish(ctx context.Context, result *Result) error {
	if result.Failure == "" {
		start := time.Now()
		code, err := Exec(ctx, filepath.Join(result.Dir, compareLog), os.Environ(),
			r.config.CmpScript, r.config.RefDir, result.Dir)
		result.CompareDuration = time.Since(start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, ErrLogFile) {
			return err
		}
		result.Compared = true
		result.CompareExitCode = code
		if err != nil && code <= 0 {
			result.CompareExitCode = -1
			result.Failure = fmt.Sprintf("compare script: %v", err)
		} else if code != 0 {
			result.Failure = fmt.Sprintf("compare script exit code: %d", code)
		}
		result.ReturnVal = result.CompareExitCode
	} else {
		result.ReturnVal = result.RunExitCode
	}

	if err := WriteArtifact(result); err != nil {
		r.log.Warnf("%s%v", logging.NSSample, err)
	}
	return WriteMarker(result.Dir, result.ReturnVal)
}

// Exec runs name with args, redirecting stdout and stderr to
// base+".out" and base+".err". It returns the exit code, or -1 when the
// process could not be started or was killed. A log file that cannot be
// created yields ErrLogFile and the process is not started.
func Exec(ctx context.Context, base string, env []string, name string, args ...string) (int, error) {
	stdout, err := os.Create(base + ".out")
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrLogFile, err)
	}
	defer func() { _ = stdout.Close() }()
	stderr, err := os.Create(base + ".err")
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrLogFile, err)
	}
	defer func() { _ = stderr.Close() }()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}
