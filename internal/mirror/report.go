package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is the wall time of the run
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// PrintSummary writes the human-readable run summary
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Mirror summary for %s (%s mode)\n", s.Username, s.Mode)
	fmt.Fprintf(w, "  Repositories: %d total, %d successful, %d failed\n",
		s.TotalRepositories, s.SuccessfulRepositories, s.FailedRepositories)
	if s.Mode == ModeBranches {
		fmt.Fprintf(w, "  Branches:     %d successful, %d failed\n", s.SuccessfulBranches, s.FailedBranches)
	}
	fmt.Fprintf(w, "  Duration:     %s\n", s.Duration().Round(time.Millisecond))
}

// WriteReport stores s as YAML at path, creating parent directories
func WriteReport(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
