package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aalhour/ddstoch/internal/delta"
	"github.com/aalhour/ddstoch/internal/logging"
	"github.com/aalhour/ddstoch/internal/sample"
)

// DeltaFile returns the merged delta file of the reference, ref/dd.<kind>.
func (s *Session) DeltaFile() string {
	return filepath.Join(s.refDir, s.deltaFileName())
}

func (s *Session) deltaFileName() string {
	return "dd." + s.settings.Kind()
}

// bootstrap recreates the reference directory and derives the universe.
func (s *Session) bootstrap(ctx context.Context) error {
	if err := os.RemoveAll(s.refDir); err != nil {
		return fmt.Errorf("clean reference dir: %w", err)
	}
	if err := os.MkdirAll(s.refDir, 0o755); err != nil {
		return fmt.Errorf("create reference dir: %w", err)
	}
	if err := s.runReference(ctx); err != nil {
		return err
	}
	if err := s.mergeDeltaFiles(); err != nil {
		return err
	}
	if err := s.checkReference(ctx); err != nil {
		return err
	}
	universe, err := delta.ReadFile(s.DeltaFile())
	if err != nil {
		return fmt.Errorf("read reference deltas: %w", err)
	}
	s.universe = universe
	s.log.Infof("%sreference ready: %d deltas", logging.NSSession, universe.Len())
	return nil
}

// runReference executes the run script once in the reference directory.
// Instrumented processes append their pid to <PREFIX>_DD_GEN and write one
// delta file each.
func (s *Session) runReference(ctx context.Context) error {
	env := os.Environ()
	for _, prefix := range s.settings.Prefixes {
		env = append(env, prefix+"_DD_GEN="+s.DeltaFile())
	}
	s.log.Debugf("%sreference run %s %s", logging.NSSession, s.settings.RunScript, s.refDir)
	code, err := sample.Exec(ctx, filepath.Join(s.refDir, "dd"), env, s.settings.RunScript, s.refDir)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, sample.ErrLogFile) {
		return err
	}
	if err != nil {
		return &ReferenceError{Err: fmt.Errorf("%w: exit code %d: %v", ErrReferenceRun, code, err), RefDir: s.refDir}
	}
	return nil
}

// mergeDeltaFiles merges every dd.<kind>.<pid> file of the reference
// directory into dd.<kind>.
func (s *Session) mergeDeltaFiles() error {
	entries, err := os.ReadDir(s.refDir)
	if err != nil {
		return fmt.Errorf("list reference dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && s.isDeltaFile(e.Name()) {
			paths = append(paths, filepath.Join(s.refDir, e.Name()))
		}
	}
	merged, err := delta.MergeFiles(paths)
	if errors.Is(err, delta.ErrNoDeltaFiles) {
		return &ReferenceError{Err: ErrNoDeltaFiles, RefDir: s.refDir}
	}
	if err != nil {
		return fmt.Errorf("merge delta files: %w", err)
	}
	s.log.Debugf("%smerged %d delta file(s)", logging.NSSession, len(paths))
	return delta.WriteFile(s.DeltaFile(), merged)
}

// isDeltaFile matches dd.<kind>.<pid>.
func (s *Session) isDeltaFile(name string) bool {
	pid, ok := strings.CutPrefix(name, s.deltaFileName()+".")
	if !ok || pid == "" {
		return false
	}
	for _, r := range pid {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// checkReference requires the compare script to accept the reference
// compared with itself.
func (s *Session) checkReference(ctx context.Context) error {
	code, err := sample.Exec(ctx, filepath.Join(s.refDir, "checkRef"), os.Environ(),
		s.settings.CmpScript, s.refDir, s.refDir)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, sample.ErrLogFile) {
		return err
	}
	if err != nil {
		return &ReferenceError{Err: fmt.Errorf("%w: compare exit code %d", ErrInvalidReference, code), RefDir: s.refDir}
	}
	return nil
}
