package wasp

import (
	"github.com/ethereum-optimism/infra/op-wasp/metrics"
	"github.com/ethereum-optimism/infra/op-wasp/runner"
)

// MetricsReporter emits prometheus metrics for every unit and run outcome. It
// implements the runner.Reporter interface so it can be fanned in with the
// rendering reporters.
type MetricsReporter struct {
	runID string
}

// NewMetricsReporter creates a metrics reporter for the given run.
func NewMetricsReporter(runID string) *MetricsReporter {
	return &MetricsReporter{runID: runID}
}

func (m *MetricsReporter) Consume(result *runner.UnitResult) error {
	metrics.RecordUnit(m.runID, result.File, result.Pass)
	return nil
}

func (m *MetricsReporter) Complete(result *runner.RunResult) error {
	metrics.RecordRun(
		result.RunID,
		result.Pass,
		result.Stats.Tests,
		result.Stats.TestsPassed,
		result.Stats.TestsFailed,
		result.Stats.TestsSkipped,
		result.Duration,
	)
	return nil
}
