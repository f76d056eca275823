// Package reporting renders unit and run results: a console table reporter
// for interactive use and a text summary sink for persisted run records. All
// reporters implement the runner.Reporter contract and can be fanned out with
// Multi.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-wasp/runner"
)

// ConsoleReporter implements the runner.Reporter interface: a streaming log
// line per unit as it completes, then one results table for the whole run.
type ConsoleReporter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter(logger log.Logger) *ConsoleReporter {
	if logger == nil {
		logger = log.Root()
	}
	return &ConsoleReporter{
		logger: logger,
		out:    os.Stdout,
	}
}

// Consume logs a single unit result as it completes.
func (r *ConsoleReporter) Consume(result *runner.UnitResult) error {
	if result.Pass {
		r.logger.Info("Unit passed",
			"file", result.File,
			"tests", result.Tests,
			"skipped", result.Skipped,
			"duration", result.Duration)
		return nil
	}
	r.logger.Error("Unit failed",
		"file", result.File,
		"tests", result.Tests,
		"failed", result.Failed,
		"duration", result.Duration)
	for _, failure := range result.Failures {
		r.logger.Error("Failure", "detail", failure.String())
	}
	return nil
}

// Complete renders the whole run as a table.
func (r *ConsoleReporter) Complete(result *runner.RunResult) error {
	r.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(fmt.Sprintf("Spec Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Unit", "Duration", "Tests", "Passed", "Failed", "Skipped", "Status",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Unit", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
	})

	for _, unit := range result.Units {
		if unit == nil {
			continue
		}
		t.AppendRow(table.Row{
			unit.File,
			formatDuration(unit.Duration),
			unit.Tests,
			unit.Passed,
			unit.Failed,
			unit.Skipped,
			statusString(unit.Pass),
		})

		for i, failure := range unit.Failures {
			prefix := "├─"
			if i == len(unit.Failures)-1 {
				prefix = "└─"
			}
			t.AppendRow(table.Row{
				fmt.Sprintf("%s %s", prefix, failure.String()),
				"", "", "", "", "", "",
			})
		}
	}
	t.AppendSeparator()

	if result.Pass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		formatDuration(result.Duration),
		result.Stats.Tests,
		result.Stats.TestsPassed,
		result.Stats.TestsFailed,
		result.Stats.TestsSkipped,
		statusString(result.Pass),
	})

	t.Render()
	return nil
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func statusString(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}
