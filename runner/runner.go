// Package runner drives the compile→instantiate→run→aggregate pipeline: each
// resolved spec file is compiled into a binary unit, instantiated against the
// capability set and executed, and the outcomes are aggregated into one
// process-level pass/fail decision.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-wasp/compiler"
	"github.com/ethereum-optimism/infra/op-wasp/spec"
	"github.com/ethereum-optimism/infra/op-wasp/wasm"
)

// DefaultRuntimeEntry is the framework's fixed runtime-support entry,
// compiled into every unit after the spec file and its helpers.
const DefaultRuntimeEntry = "wasp.runtime.ts"

// TestRunner defines the interface for running a full pipeline pass.
type TestRunner interface {
	RunAll(ctx context.Context) (*RunResult, error)
}

// Config contains runner configuration.
type Config struct {
	Log      log.Logger
	Compiler compiler.Compiler
	Loader   wasm.Loader
	Reporter Reporter

	// SpecFiles is the resolved, deduplicated spec file list; one unit each.
	SpecFiles []string
	// AddFiles are shared helper sources compiled into every unit, in order.
	AddFiles []string
	// RuntimeEntry overrides the fixed runtime-support entry.
	RuntimeEntry string
	// RunID identifies the run. Defaults to a fresh uuid per RunAll.
	RunID string
	// Flags is the ordered compiler flag mapping.
	Flags compiler.Flags
	// Imports are capability namespaces merged into every unit's capability
	// set. Validated when the runner is created.
	Imports map[string]map[string]any
}

type runner struct {
	config Config
	tracer trace.Tracer

	// sourceMaps are captured in memory keyed by artifact name. Guarded
	// because compiles complete concurrently.
	mu         sync.Mutex
	sourceMaps map[string][]byte
}

// NewTestRunner creates a pipeline runner. User import namespaces are
// validated here, at bind time, rather than when a guest first calls one.
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Compiler == nil {
		return nil, fmt.Errorf("compiler is required")
	}
	if cfg.Loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	if cfg.RuntimeEntry == "" {
		cfg.RuntimeEntry = DefaultRuntimeEntry
	}
	if cfg.Flags == nil {
		cfg.Flags = compiler.DefaultFlags()
	}

	if _, err := wasm.NewCapabilitySet(wasm.NewBinding(cfg.Log), cfg.Imports); err != nil {
		return nil, fmt.Errorf("invalid imports: %w", err)
	}

	return &runner{
		config:     cfg,
		tracer:     otel.Tracer("op-wasp/runner"),
		sourceMaps: make(map[string][]byte),
	}, nil
}

// compileOutcome is the completion callback payload for one unit.
type compileOutcome struct {
	index  int
	file   string
	binary []byte
	err    error
}

// RunAll compiles every unit concurrently and executes each as its
// compilation completes. Completion order is unspecified; the aggregation
// (pending counter + OR-ed failure flag) is commutative, so correctness only
// depends on every unit eventually completing. Any fatal condition aborts
// immediately without awaiting in-flight units.
func (r *runner) RunAll(ctx context.Context) (*RunResult, error) {
	runID := r.config.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	start := time.Now()
	files := r.config.SpecFiles

	result := &RunResult{
		RunID: runID,
		Units: make([]*UnitResult, len(files)),
		Stats: RunStats{Units: len(files), StartTime: start},
	}

	// Zero matched units is a passing run, not an error.
	if len(files) == 0 {
		r.config.Log.Info("No spec files matched; nothing to run", "runID", runID)
		result.Pass = true
		result.Stats.EndTime = time.Now()
		result.Duration = time.Since(start)
		return result, r.complete(result)
	}

	r.config.Log.Info("Starting pipeline", "runID", runID, "units", len(files))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	flagTokens := r.config.Flags.Flatten()

	// Issue every compile without waiting on the others. The buffered
	// channel keeps late completions inert once a fatal condition has torn
	// the run down.
	outcomes := make(chan compileOutcome, len(files))
	for i, file := range files {
		go func(index int, file string) {
			outcomes <- r.compileUnit(ctx, index, file, flagTokens)
		}(i, file)
	}

	// Receiving on one channel serializes completion callbacks, so unit
	// execution bodies never interleave and no extra locking is needed.
	var failed atomic.Bool
	for pending := len(files); pending > 0; pending-- {
		outcome := <-outcomes
		if outcome.err != nil {
			r.config.Log.Error("Fatal pipeline condition", "file", outcome.file, "error", outcome.err)
			return nil, outcome.err
		}

		unit, err := r.runUnit(ctx, outcome.index, outcome.file, outcome.binary)
		if err != nil {
			r.config.Log.Error("Fatal pipeline condition", "file", outcome.file, "error", err)
			return nil, err
		}

		result.Units[outcome.index] = unit
		if !unit.Pass {
			failed.Store(true)
		}
		if r.config.Reporter != nil {
			if err := r.config.Reporter.Consume(unit); err != nil {
				r.config.Log.Error("Reporter failed to consume unit result", "file", unit.File, "error", err)
			}
		}
	}

	for _, unit := range result.Units {
		result.Stats.Tests += unit.Tests
		result.Stats.TestsPassed += unit.Passed
		result.Stats.TestsFailed += unit.Failed
		result.Stats.TestsSkipped += unit.Skipped
		if unit.Pass {
			result.Stats.UnitsPassed++
		} else {
			result.Stats.UnitsFailed++
		}
	}
	result.Pass = !failed.Load()
	result.Stats.EndTime = time.Now()
	result.Duration = time.Since(start)

	r.config.Log.Info("Pipeline complete",
		"runID", runID,
		"units", result.Stats.Units,
		"failedUnits", result.Stats.UnitsFailed,
		"tests", result.Stats.Tests,
		"pass", result.Pass,
		"duration", result.Duration)

	return result, r.complete(result)
}

func (r *runner) complete(result *RunResult) error {
	if r.config.Reporter == nil {
		return nil
	}
	if err := r.config.Reporter.Complete(result); err != nil {
		return fmt.Errorf("reporter failed to complete: %w", err)
	}
	return nil
}

// compileUnit invokes the compiler for one spec file with a write sink
// intercepting every artifact: binary modules are captured in memory keyed by
// the unit index, source maps are captured by name, and anything else is
// written immediately to a sibling of the spec file.
func (r *runner) compileUnit(ctx context.Context, index int, file string, flagTokens []string) compileOutcome {
	ctx, span := r.tracer.Start(ctx, "compile unit")
	defer span.End()

	entries := make([]string, 0, len(r.config.AddFiles)+2)
	entries = append(entries, file)
	entries = append(entries, r.config.AddFiles...)
	entries = append(entries, r.config.RuntimeEntry)

	var binary []byte
	sink := func(name string, data []byte) error {
		switch compiler.ClassifyArtifact(name) {
		case compiler.KindBinary:
			binary = data
			return nil
		case compiler.KindSourceMap:
			r.mu.Lock()
			r.sourceMaps[name] = data
			r.mu.Unlock()
			return nil
		default:
			return writeSibling(file, name, data)
		}
	}

	r.config.Log.Debug("Compiling unit", "index", index, "file", file)
	if err := r.config.Compiler.Compile(ctx, entries, flagTokens, sink); err != nil {
		return compileOutcome{index: index, file: file, err: &CompileError{File: file, Diagnostic: err.Error()}}
	}
	if binary == nil {
		return compileOutcome{index: index, file: file, err: &MissingArtifactError{File: file}}
	}
	return compileOutcome{index: index, file: file, binary: binary}
}

// writeSibling persists a non-binary, non-map side artifact next to its spec
// file: same directory and base name, the artifact's extension. Unbuffered;
// written as soon as the compiler streams it.
func writeSibling(specFile, artifactName string, data []byte) error {
	base := strings.TrimSuffix(filepath.Base(specFile), filepath.Ext(specFile))
	target := filepath.Join(filepath.Dir(specFile), base+filepath.Ext(artifactName))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write side artifact '%s': %w", target, err)
	}
	return nil
}

// runUnit is the execution context for one compiled artifact: build the
// capability set, instantiate, drive the run export, execute the registered
// tree and collect the structured result. Instantiation failure is fatal,
// identical to a missing artifact.
func (r *runner) runUnit(ctx context.Context, index int, file string, binary []byte) (*UnitResult, error) {
	ctx, span := r.tracer.Start(ctx, "run unit")
	defer span.End()

	start := time.Now()
	unitLog := r.config.Log.New("unit", filepath.Base(file))

	binding := wasm.NewBinding(unitLog)
	caps, err := wasm.NewCapabilitySet(binding, r.config.Imports)
	if err != nil {
		return nil, fmt.Errorf("invalid imports: %w", err)
	}

	module, err := r.config.Loader.Instantiate(ctx, binary, caps)
	if err != nil {
		return nil, &InstantiateError{File: file, Err: err}
	}
	defer func() {
		if err := module.Close(ctx); err != nil {
			unitLog.Warn("Failed to close module", "error", err)
		}
	}()

	// Registration: the guest's run export declares the whole tree. A trap
	// here fails the unit but not the pipeline.
	if err := binding.RunRegistration(ctx, module); err != nil {
		unitLog.Error("Unit trapped during registration", "error", err)
		return &UnitResult{
			File:   file,
			Index:  index,
			Failed: 1,
			Failures: []spec.Failure{{
				Test:     filepath.Base(file),
				Matcher:  "trap",
				Actual:   err.Error(),
				Expected: "registration to complete",
			}},
			Duration: time.Since(start),
		}, nil
	}

	summary := binding.Execute()
	unit := unitResultFromSummary(index, file, summary, time.Since(start))

	unitLog.Info("Unit complete",
		"groups", unit.Groups,
		"tests", unit.Tests,
		"passed", unit.Passed,
		"failed", unit.Failed,
		"skipped", unit.Skipped,
		"pass", unit.Pass)
	return unit, nil
}
