// Package main implements the ddstoch CLI.
//
// ddstoch searches the minimal sets of instrumented code locations (deltas)
// whose perturbation makes a program's output unstable. The run script is
// invoked as "runScript <sampleDir>" and the compare script as
// "cmpScript <refDir> <sampleDir>"; both exit 0 on success.
//
// Usage:
//
//	ddstoch ./run.sh ./cmp.sh
//	INTERFLOP_DD_NRUNS=10 INTERFLOP_DD_NUM_THREADS=10 ddstoch ./run.sh ./cmp.sh
//	ddstoch --env-prefix VERROU --workdir /tmp/dd.line ./run.sh ./cmp.sh
//
// Settings come from the environment; --help lists them. Every failure
// exits with code 42.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aalhour/ddstoch/internal/config"
	"github.com/aalhour/ddstoch/internal/logging"
	"github.com/aalhour/ddstoch/internal/report"
	"github.com/aalhour/ddstoch/internal/session"
)

// exitFailure is the exit code of every failure, help included.
const exitFailure = 42

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived signal %v, stopping search...\n", sig)
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	cancel()
	os.Exit(code)
}

// cli holds the flag values of one invocation.
type cli struct {
	prefixes []string
	workdir  string
	helped   bool
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup config.LookupFunc) int {
	c := &cli{}
	var settings *config.Settings
	var workdir string

	root := &cobra.Command{
		Use:           "ddstoch runScript cmpScript",
		Short:         "Statistical delta debugging of numerical instabilities",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewLogger(stderr, logging.LevelInfo)
			s, err := config.Load(args, lookup, c.prefixes, log)
			if err != nil {
				return err
			}
			settings = s
			log = logging.NewLogger(stderr, logLevel(s))

			printer := report.New(stdout, s.Quiet)
			sess, err := session.Open(ctx, session.Options{
				Settings: s,
				Workdir:  c.workdir,
				Printer:  printer,
				Logger:   log,
			})
			if err != nil {
				return err
			}
			workdir = sess.Workdir()

			_, runErr := sess.Run(ctx)
			if err := sess.Finish(runErr); err != nil {
				log.Errorf("%s%v", logging.NSSession, err)
				if runErr == nil {
					return err
				}
			}
			return runErr
		},
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.Flags().StringSliceVar(&c.prefixes, "env-prefix", []string{config.DefaultPrefix},
		"environment variable prefixes, later ones override earlier ones")
	root.Flags().StringVar(&c.workdir, "workdir", "", "working directory (default ./dd.line or ./dd.sym)")
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		c.helped = true
		prefix := config.DefaultPrefix
		if len(c.prefixes) > 0 {
			prefix = c.prefixes[len(c.prefixes)-1]
		}
		fmt.Fprintf(stdout, "Usage: %s\n\n", cmd.Use)
		fmt.Fprint(stdout, config.EnvDoc(prefix))
	})

	failure := root.Execute()
	if c.helped {
		return exitFailure
	}
	if failure == nil {
		return 0
	}

	switch {
	case settings == nil:
		fmt.Fprintf(stderr, "error: %v\n", failure)
		fmt.Fprintf(stderr, "usage: ddstoch runScript cmpScript (see --help)\n")
	case errors.Is(failure, context.Canceled):
		fmt.Fprintf(stderr, "search cancelled\n")
	default:
		if workdir == "" {
			workdir = c.workdir
		}
		fmt.Fprint(stdout, session.Diagnose(failure, settings, workdir))
	}
	return exitFailure
}

func logLevel(s *config.Settings) logging.Level {
	switch {
	case s.Debug:
		return logging.LevelDebug
	case s.Quiet:
		return logging.LevelWarn
	default:
		return logging.LevelInfo
	}
}
