package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum-optimism/infra/op-wasp/runner"
)

// TextSummarySink collects unit results and writes a plain-text summary file
// for the run under baseDir/testrun-<runID>/summary.log.
type TextSummarySink struct {
	baseDir string
	units   []*runner.UnitResult
}

// NewTextSummarySink creates a new text summary sink rooted at baseDir.
func NewTextSummarySink(baseDir string) *TextSummarySink {
	return &TextSummarySink{
		baseDir: baseDir,
	}
}

// Consume collects a unit result for the summary.
func (s *TextSummarySink) Consume(result *runner.UnitResult) error {
	s.units = append(s.units, result)
	return nil
}

// Complete writes the summary file for the run.
func (s *TextSummarySink) Complete(result *runner.RunResult) error {
	outputDir := filepath.Join(s.baseDir, "testrun-"+result.RunID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content := s.format(result)

	summaryFile := filepath.Join(outputDir, "summary.log")
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

func (s *TextSummarySink) format(result *runner.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", result.RunID, statusString(result.Pass))
	fmt.Fprintf(&b, "Units: %d (%d passed, %d failed)\n",
		result.Stats.Units, result.Stats.UnitsPassed, result.Stats.UnitsFailed)
	fmt.Fprintf(&b, "Tests: %d (%d passed, %d failed, %d skipped)\n",
		result.Stats.Tests, result.Stats.TestsPassed, result.Stats.TestsFailed, result.Stats.TestsSkipped)
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(result.Duration))

	for _, unit := range s.units {
		fmt.Fprintf(&b, "\n%s: %s (%d tests, %s)\n",
			unit.File, statusString(unit.Pass), unit.Tests, formatDuration(unit.Duration))
		for _, failure := range unit.Failures {
			fmt.Fprintf(&b, "  %s\n", failure.String())
		}
	}
	return b.String()
}
