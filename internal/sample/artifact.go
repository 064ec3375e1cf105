package sample

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact is the JSON structure written to sample.json in each sample directory.
type Artifact struct {
	Index             int       `json:"index"`
	RunStart          time.Time `json:"run_start"`
	RunEnd            time.Time `json:"run_end"`
	RunDurationMs     int64     `json:"run_duration_ms"`
	RunExitCode       int       `json:"run_exit_code"`
	TimedOut          bool      `json:"timed_out,omitempty"`
	CompareExitCode   *int      `json:"compare_exit_code,omitempty"`
	CompareDurationMs int64     `json:"compare_duration_ms,omitempty"`
	ReturnVal         int       `json:"return_val"`
	Passed            bool      `json:"passed"`
	Failure           string    `json:"failure,omitempty"`
}

// WriteArtifact writes sample.json to the sample directory.
func WriteArtifact(result *Result) error {
	artifact := Artifact{
		Index:         result.Index + 1,
		RunStart:      result.RunStart,
		RunEnd:        result.RunEnd,
		RunDurationMs: result.RunDuration().Milliseconds(),
		RunExitCode:   result.RunExitCode,
		TimedOut:      result.TimedOut,
		ReturnVal:     result.ReturnVal,
		Passed:        result.Passed(),
		Failure:       result.Failure,
	}
	if result.Compared {
		code := result.CompareExitCode
		artifact.CompareExitCode = &code
		artifact.CompareDurationMs = result.CompareDuration.Milliseconds()
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sample artifact: %w", err)
	}

	path := filepath.Join(result.Dir, ArtifactFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sample artifact: %w", err)
	}
	return nil
}

// ReadArtifact reads sample.json from a sample directory.
func ReadArtifact(sampleDir string) (*Artifact, error) {
	data, err := os.ReadFile(filepath.Join(sampleDir, ArtifactFile))
	if err != nil {
		return nil, fmt.Errorf("read sample artifact: %w", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse sample artifact: %w", err)
	}
	return &artifact, nil
}
