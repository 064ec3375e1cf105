package delta

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoDeltaFiles is returned by MergeFiles when there is nothing to merge.
var ErrNoDeltaFiles = errors.New("no delta files to merge")

// ReadFile reads a delta file: one token per line, blank lines ignored.
// Repeated tokens keep their first position.
func ReadFile(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var tokens []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Flatten([]Set{Of(tokens...)}), nil
}

// WriteFile writes s to path, one token per line.
func WriteFile(path string, s Set) error {
	var b strings.Builder
	for _, d := range s {
		b.WriteString(string(d))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// MergeFiles reads every file in paths and merges their tokens into one Set.
// The first file fixes the order; later files only append unseen tokens.
func MergeFiles(paths []string) (Set, error) {
	if len(paths) == 0 {
		return nil, ErrNoDeltaFiles
	}
	sets := make([]Set, 0, len(paths))
	for _, p := range paths {
		s, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return Flatten(sets), nil
}
