package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aalhour/ddstoch/internal/compression"
	"github.com/aalhour/ddstoch/internal/logging"
)

// SummaryFile is written in the working directory by Finish.
const SummaryFile = "summary.json"

// Summary is the machine-readable record of a session.
type Summary struct {
	Algorithm  string `json:"algorithm"`
	Kind       string `json:"kind"`
	RunScript  string `json:"run_script"`
	CmpScript  string `json:"cmp_script"`
	NbRun      int    `json:"nb_run"`
	MaxWorkers int    `json:"max_workers"`

	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMs int64     `json:"duration_ms"`

	Deltas     int      `json:"deltas"`
	Found      []Found  `json:"found"`
	Complement []string `json:"complement,omitempty"`

	Tests          uint64  `json:"tests"`
	CachedTests    uint64  `json:"cached_tests"`
	Samples        uint64  `json:"samples"`
	Configurations uint64  `json:"configurations"`
	MemoHitRate    float64 `json:"memo_hit_rate"`
	NewRuns        int     `json:"new_runs"`
	TotalRuns      int     `json:"total_runs"`

	Error string `json:"error,omitempty"`
}

// RunCount reports how many run scripts left a dd.run.out file in the
// working directory, and how many of them were written after since.
// Found-configuration links are not followed.
func RunCount(workdir string, since time.Time) (fresh, total int, err error) {
	entries, err := os.ReadDir(workdir)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == RefDirName {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(workdir, e.Name(), "dd.run*", "dd.run.out"))
		if err != nil {
			return 0, 0, err
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			total++
			if info.ModTime().After(since) {
				fresh++
			}
		}
	}
	return fresh, total, nil
}

// Finish records the outcome of the session: summary.json, the bundle when
// one is configured, then the elapsed time and run counts. runErr is the
// error returned by Run, if any.
func (s *Session) Finish(runErr error) error {
	end := time.Now()
	fresh, total, err := RunCount(s.workdir, s.start)
	if err != nil {
		s.log.Warnf("%scount runs: %v", logging.NSSession, err)
	}

	stats := s.cache.Stats()
	summary := Summary{
		Algorithm:      string(s.settings.Algorithm()),
		Kind:           s.settings.Kind(),
		RunScript:      s.settings.RunScript,
		CmpScript:      s.settings.CmpScript,
		NbRun:          s.settings.NbRun,
		MaxWorkers:     s.settings.MaxWorkers,
		StartTime:      s.start,
		EndTime:        end,
		DurationMs:     end.Sub(s.start).Milliseconds(),
		Deltas:         s.universe.Len(),
		Found:          s.found,
		Tests:          stats.Tests,
		CachedTests:    stats.CachedTests,
		Samples:        stats.Samples,
		Configurations: stats.Configurations,
		MemoHitRate:    stats.MemoHitRate,
		NewRuns:        fresh,
		TotalRuns:      total,
	}
	if s.result != nil {
		summary.Complement = s.result.Complement.Strings()
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := WriteSummary(s.workdir, &summary); err != nil {
		return err
	}

	codec, err := compression.ParseType(s.settings.Bundle)
	if err != nil {
		return err
	}
	if codec != compression.NoCompression {
		path, err := s.writeBundle(codec)
		if err != nil {
			return err
		}
		s.log.Infof("%swrote %s", logging.NSBundle, path)
	}

	s.printer.Elapsed(end.Sub(s.start))
	s.printer.RunCount(filepath.Base(s.workdir), fresh, total)
	return nil
}

// WriteSummary writes summary.json to workdir.
func WriteSummary(workdir string, summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session summary: %w", err)
	}
	return os.WriteFile(filepath.Join(workdir, SummaryFile), data, 0o644)
}

// ReadSummary reads summary.json from workdir.
func ReadSummary(workdir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(workdir, SummaryFile))
	if err != nil {
		return nil, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parse session summary: %w", err)
	}
	return &summary, nil
}
