// Package wasp assembles the harness: it resolves spec files, wires the
// compiler, loader and reporters into a test runner, executes the run and
// maps the outcome to the process exit code contract (0 all pass, 1 any
// failure or fatal condition, 2 runtime errors).
package wasp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-wasp/compiler"
	"github.com/ethereum-optimism/infra/op-wasp/exitcodes"
	"github.com/ethereum-optimism/infra/op-wasp/logging"
	"github.com/ethereum-optimism/infra/op-wasp/reporting"
	"github.com/ethereum-optimism/infra/op-wasp/resolver"
	"github.com/ethereum-optimism/infra/op-wasp/runner"
	"github.com/ethereum-optimism/infra/op-wasp/wasm"
)

// wasp is the spec-test harness service: run once, report, exit.
type wasp struct {
	ctx     context.Context
	config  *Config
	version string
	runID   string
	runner  runner.TestRunner
	result  *runner.RunResult

	running atomic.Bool
}

// New assembles the full pipeline from the configuration. Resolver and
// reporter construction problems surface here as ConfigError.
func New(ctx context.Context, config *Config, version string) (*wasp, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating harness with config",
		"workDir", config.WorkDir,
		"compiler", config.CompilerBinary,
		"reporter", config.Reporter,
		"include", config.Include,
		"add", config.Add)

	res, err := resolver.NewResolver(resolver.Config{
		Log:      config.Log,
		WorkDir:  config.WorkDir,
		Include:  config.Include,
		Add:      config.Add,
		Disclude: config.Disclude,
	})
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("failed to create resolver: %w", err))
	}

	specFiles, err := res.SpecFiles()
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("failed to resolve spec files: %w", err))
	}
	addFiles, err := res.AddFiles()
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("failed to resolve add files: %w", err))
	}

	runID := uuid.New().String()
	reporter, err := buildReporter(config, runID)
	if err != nil {
		return nil, NewConfigError(err)
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Log:       config.Log,
		Compiler:  compiler.NewExecCompiler(config.CompilerBinary, config.Log),
		Loader:    wasm.NewWazeroLoader(config.Log),
		Reporter:  reporter,
		SpecFiles: specFiles,
		AddFiles:  addFiles,
		Flags:     config.Flags,
		Imports:   config.Imports,
		RunID:     runID,
	})
	if err != nil {
		return nil, NewConfigError(fmt.Errorf("failed to create test runner: %w", err))
	}
	config.Log.Info("wasp.New: resolved spec files and created test runner",
		"specFiles", len(specFiles), "addFiles", len(addFiles), "runID", runID)

	return &wasp{
		ctx:     ctx,
		config:  config,
		version: version,
		runID:   runID,
		runner:  testRunner,
	}, nil
}

// buildReporter assembles the reporter chain from the config selection. The
// metrics reporter and the per-run file logger are always attached.
func buildReporter(config *Config, runID string) (runner.Reporter, error) {
	fileLogger, err := logging.NewFileLogger(config.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	reporters := reporting.Multi{NewMetricsReporter(runID), fileLogger}
	switch config.Reporter {
	case ReporterConsole:
		reporters = append(reporters, reporting.NewConsoleReporter(config.Log))
	case ReporterText:
		reporters = append(reporters, reporting.NewTextSummarySink(config.LogDir))
	case ReporterAll:
		reporters = append(reporters,
			reporting.NewConsoleReporter(config.Log),
			reporting.NewTextSummarySink(config.LogDir))
	default:
		return nil, fmt.Errorf("unknown reporter '%s'", config.Reporter)
	}
	return reporters, nil
}

// Start runs the whole pipeline once and maps the outcome to the typed error
// the exit handler understands.
func (w *wasp) Start(ctx context.Context) error {
	// Panics are runtime errors, exit code 2.
	defer func() {
		if r := recover(); r != nil {
			w.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	w.ctx = ctx
	w.running.Store(true)
	defer w.running.Store(false)

	w.config.Log.Info("Starting op-wasp", "version", w.version, "runID", w.runID)

	result, err := w.runner.RunAll(ctx)
	if err != nil {
		if runner.IsFatal(err) {
			// Compile failures, missing binaries and instantiation faults
			// terminate with exit code 1.
			w.config.Log.Error("Fatal pipeline error", "error", err)
			return NewTestFailureError(err.Error())
		}
		w.config.Log.Error("Runtime error running specs", "error", err)
		return NewRuntimeError(err)
	}
	w.result = result

	w.config.Log.Info("Run completed", "runID", result.RunID, "pass", result.Pass)
	if !result.Pass {
		return NewTestFailureError(fmt.Sprintf(
			"%d of %d units failed (%d of %d tests)",
			result.Stats.UnitsFailed, result.Stats.Units,
			result.Stats.TestsFailed, result.Stats.Tests))
	}
	return nil
}

// Stop marks the service stopped. The run itself honors context cancellation.
func (w *wasp) Stop(ctx context.Context) error {
	w.config.Log.Info("Stopping op-wasp")
	w.running.Store(false)
	return nil
}

// Stopped returns true if the harness is not running.
func (w *wasp) Stopped() bool {
	return !w.running.Load()
}

// Result returns the most recent run result.
func (w *wasp) Result() *runner.RunResult {
	return w.result
}
