package runner

import (
	"time"

	"github.com/ethereum-optimism/infra/op-wasp/spec"
)

// UnitResult captures the outcome of one compiled unit: counts of groups and
// tests, the ordered failure records, and the overall pass boolean.
type UnitResult struct {
	File     string
	Index    int
	Groups   int
	Tests    int
	Passed   int
	Failed   int
	Skipped  int
	Failures []spec.Failure
	Pass     bool
	Duration time.Duration
}

// RunStats tracks aggregate statistics for a whole run.
type RunStats struct {
	Units        int
	UnitsPassed  int
	UnitsFailed  int
	Tests        int
	TestsPassed  int
	TestsFailed  int
	TestsSkipped int
	StartTime    time.Time
	EndTime      time.Time
}

// RunResult captures the complete run: per-unit results ordered by
// resolution index plus the process-level pass/fail decision.
type RunResult struct {
	RunID    string
	Units    []*UnitResult
	Stats    RunStats
	Pass     bool
	Duration time.Duration
}

// Reporter consumes per-unit and aggregate results. Implementations are free
// to render anywhere.
type Reporter interface {
	// Consume processes a single unit result as it completes.
	Consume(result *UnitResult) error
	// Complete is called once with the aggregate outcome.
	Complete(result *RunResult) error
}

// unitResultFromSummary converts an executed tree summary into a UnitResult.
func unitResultFromSummary(index int, file string, s *spec.Summary, duration time.Duration) *UnitResult {
	return &UnitResult{
		File:     file,
		Index:    index,
		Groups:   s.Groups,
		Tests:    s.Tests,
		Passed:   s.Passed,
		Failed:   s.Failed,
		Skipped:  s.Skipped,
		Failures: s.Failures,
		Pass:     s.Pass(),
		Duration: duration,
	}
}
