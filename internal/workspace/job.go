// Package workspace manages the per-request temporary directories of a
// render job.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"rendercv-service/internal/infra/logging"
)

// Job is the private working set of one conversion request: an input
// directory holding the uploaded YAML and an output directory for the
// rendered artifacts. A Job is never shared between requests.
type Job struct {
	InputDir  string
	OutputDir string

	cleanupOnce sync.Once
	cleanupErr  error
}

// NewJob creates fresh input and output directories under base. An empty
// base selects os.TempDir.
func NewJob(base string) (*Job, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, fmt.Errorf("workspace: create base dir: %w", err)
		}
	}
	in, err := os.MkdirTemp(base, "rendercv-in-*")
	if err != nil {
		return nil, fmt.Errorf("workspace: create input dir: %w", err)
	}
	out, err := os.MkdirTemp(base, "rendercv-out-*")
	if err != nil {
		_ = os.RemoveAll(in)
		return nil, fmt.Errorf("workspace: create output dir: %w", err)
	}
	return &Job{InputDir: in, OutputDir: out}, nil
}

// WriteInput stores data as name inside the input directory and returns
// its path. name must be a bare file name.
func (j *Job) WriteInput(name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("workspace: invalid input name %q", name)
	}
	p := filepath.Join(j.InputDir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("workspace: write input: %w", err)
	}
	return p, nil
}

// OutputPath returns name joined to the output directory.
func (j *Job) OutputPath(name string) string {
	return filepath.Join(j.OutputDir, name)
}

// Cleanup removes both directories recursively. It is safe to call more
// than once; only the first call does work.
func (j *Job) Cleanup() error {
	j.cleanupOnce.Do(func() {
		j.cleanupErr = errors.Join(os.RemoveAll(j.InputDir), os.RemoveAll(j.OutputDir))
		if j.cleanupErr != nil {
			logging.Warn("Cleanup error", "input_dir", j.InputDir, "output_dir", j.OutputDir, "error", j.cleanupErr)
		}
	})
	return j.cleanupErr
}
