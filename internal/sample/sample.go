// Package sample executes the run and compare scripts for one configuration.
//
// A configuration directory holds one subdirectory per sample, dd.run1,
// dd.run2, ... Each sample directory receives:
//
//	dd.run.out, dd.run.err          output of "<runScript> <sampleDir>"
//	dd.compare.out, dd.compare.err  output of "<cmpScript> <refDir> <sampleDir>"
//	returnVal                       integer verdict, 0 means PASS
//	sample.json                     timings and exit codes
//
// returnVal is the authoritative marker: a sample directory without it was
// interrupted (or drained after an earlier failure) and is executed again by
// the next request that needs it. Markers are written once and never
// modified.
package sample

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// DirPrefix prefixes every sample directory name.
	DirPrefix = "dd.run"

	// MarkerFile holds the integer verdict of a sample.
	MarkerFile = "returnVal"

	// ArtifactFile holds the JSON description of a sample.
	ArtifactFile = "sample.json"

	runLog     = "dd.run"
	compareLog = "dd.compare"
)

// ErrCorruptMarker indicates a returnVal file that does not hold an integer.
var ErrCorruptMarker = errors.New("corrupt sample marker")

// ErrLogFile indicates that the stdout or stderr file of a script could not
// be created. It is a filesystem error, never a sample verdict.
var ErrLogFile = errors.New("cannot create script log")

// Dir returns the directory of sample i (zero-based) under configDir.
func Dir(configDir string, i int) string {
	return filepath.Join(configDir, DirPrefix+strconv.Itoa(i+1))
}

// Marker is a recorded sample verdict.
type Marker struct {
	// Index is the zero-based sample index.
	Index int
	// Value is the content of returnVal; zero means PASS.
	Value int
}

// Failed reports whether the sample failed.
func (m Marker) Failed() bool {
	return m.Value != 0
}

// ReadMarkers returns the markers recorded under configDir, ordered by index.
// Sample directories without a marker are skipped. A missing configDir
// yields no markers.
func ReadMarkers(configDir string) ([]Marker, error) {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read markers: %w", err)
	}

	var markers []Marker
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), DirPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), DirPrefix))
		if err != nil || n < 1 {
			continue
		}
		path := filepath.Join(configDir, entry.Name(), MarkerFile)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read marker: %w", err)
		}
		value, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %q", ErrCorruptMarker, path, data)
		}
		markers = append(markers, Marker{Index: n - 1, Value: value})
	}

	// os.ReadDir sorts by name, so dd.run10 precedes dd.run2.
	slices.SortFunc(markers, func(a, b Marker) int { return cmp.Compare(a.Index, b.Index) })
	return markers, nil
}

// WriteMarker records value as the verdict of the sample in sampleDir.
// The file is written under a temporary name and renamed, so a reader
// never observes a partial marker.
func WriteMarker(sampleDir string, value int) error {
	tmp := filepath.Join(sampleDir, MarkerFile+".tmp")
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(value)), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(sampleDir, MarkerFile)); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// Result is the outcome of one executed sample.
type Result struct {
	// Index is the zero-based sample index.
	Index int

	// Dir is the sample directory.
	Dir string

	// RunStart and RunEnd bound the run script.
	RunStart time.Time
	RunEnd   time.Time

	// RunExitCode is the run script exit code, -1 on timeout or start failure.
	RunExitCode int

	// TimedOut is set when the run script exceeded its timeout.
	TimedOut bool

	// Compared is false when the compare script was not invoked.
	Compared bool

	// CompareExitCode is the compare script exit code when Compared is set.
	CompareExitCode int

	// CompareDuration is the wall time of the compare script.
	CompareDuration time.Duration

	// ReturnVal is the value written to the marker.
	ReturnVal int

	// Failure describes why the sample failed. Empty for passing samples.
	Failure string
}

// Passed reports whether the sample passed.
func (r *Result) Passed() bool {
	return r.ReturnVal == 0
}

// RunDuration returns the wall time of the run script.
func (r *Result) RunDuration() time.Duration {
	return r.RunEnd.Sub(r.RunStart)
}
