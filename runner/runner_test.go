package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-wasp/compiler"
	"github.com/ethereum-optimism/infra/op-wasp/spec"
	"github.com/ethereum-optimism/infra/op-wasp/wasm"
)

type fakeCompiler struct {
	compile func(ctx context.Context, entries []string, flags []string, sink compiler.WriteSink) error
}

func (c *fakeCompiler) Compile(ctx context.Context, entries []string, flags []string, sink compiler.WriteSink) error {
	return c.compile(ctx, entries, flags, sink)
}

// binaryCompiler emits a binary artifact whose payload is the spec file name,
// so the fake loader can pick the scripted guest per unit.
func binaryCompiler() compiler.Compiler {
	return &fakeCompiler{compile: func(ctx context.Context, entries []string, flags []string, sink compiler.WriteSink) error {
		return sink(compiler.BinaryName, []byte(entries[0]))
	}}
}

// guestModule scripts a guest: the run export registers the tree through the
// unit's intrinsics, __call dispatches scripted bodies by table index.
type guestModule struct {
	in  wasm.Intrinsics
	run func(in wasm.Intrinsics)
	fns map[uint64]func(in wasm.Intrinsics) error
}

func (m *guestModule) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	switch name {
	case wasm.GuestRunExport:
		if m.run != nil {
			m.run(m.in)
		}
		return nil, nil
	case wasm.GuestCallExport:
		fn, ok := m.fns[args[0]]
		if !ok {
			return nil, fmt.Errorf("no function at table index %d", args[0])
		}
		return nil, fn(m.in)
	default:
		return nil, fmt.Errorf("module does not export '%s'", name)
	}
}

func (m *guestModule) ReadMemory(offset, length uint32) ([]byte, bool) { return nil, false }
func (m *guestModule) Close(ctx context.Context) error                 { return nil }

type fakeLoader struct {
	modules map[string]*guestModule
	err     error
}

func (l *fakeLoader) Instantiate(ctx context.Context, binary []byte, caps *wasm.CapabilitySet) (wasm.Module, error) {
	if l.err != nil {
		return nil, l.err
	}
	mod, ok := l.modules[string(binary)]
	if !ok {
		return nil, fmt.Errorf("no scripted module for binary %q", binary)
	}
	mod.in = caps.Intrinsics()
	return mod, nil
}

func passingModule() *guestModule {
	return &guestModule{
		run: func(in wasm.Intrinsics) { in.RegisterTest("passes", 1) },
		fns: map[uint64]func(in wasm.Intrinsics) error{
			1: func(in wasm.Intrinsics) error {
				in.AssertBinary(in.Expect(in.NewValue(spec.Int(1))), "toBe", in.NewValue(spec.Int(1)))
				return nil
			},
		},
	}
}

func failingModule() *guestModule {
	return &guestModule{
		run: func(in wasm.Intrinsics) { in.RegisterTest("fails", 1) },
		fns: map[uint64]func(in wasm.Intrinsics) error{
			1: func(in wasm.Intrinsics) error {
				in.AssertBinary(in.Expect(in.NewValue(spec.Int(41))), "toBe", in.NewValue(spec.Int(42)))
				return nil
			},
		},
	}
}

type recordingReporter struct {
	mu        sync.Mutex
	consumed  []*UnitResult
	completed []*RunResult
}

func (r *recordingReporter) Consume(result *UnitResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumed = append(r.consumed, result)
	return nil
}

func (r *recordingReporter) Complete(result *RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, result)
	return nil
}

func TestNewTestRunnerValidation(t *testing.T) {
	loader := &fakeLoader{}

	_, err := NewTestRunner(Config{Loader: loader})
	require.ErrorContains(t, err, "compiler")

	_, err = NewTestRunner(Config{Compiler: binaryCompiler()})
	require.ErrorContains(t, err, "loader")

	_, err = NewTestRunner(Config{
		Compiler: binaryCompiler(),
		Loader:   loader,
		Imports:  map[string]map[string]any{wasm.HostModule: {"describe": func() {}}},
	})
	require.ErrorContains(t, err, "reserved")
}

func TestRunAllAggregation(t *testing.T) {
	tests := []struct {
		name     string
		modules  map[string]*guestModule
		wantPass bool
	}{
		{
			name: "all units pass",
			modules: map[string]*guestModule{
				"a.spec.ts": passingModule(),
				"b.spec.ts": passingModule(),
				"c.spec.ts": passingModule(),
			},
			wantPass: true,
		},
		{
			name: "first unit fails",
			modules: map[string]*guestModule{
				"a.spec.ts": failingModule(),
				"b.spec.ts": passingModule(),
				"c.spec.ts": passingModule(),
			},
			wantPass: false,
		},
		{
			name: "last unit fails",
			modules: map[string]*guestModule{
				"a.spec.ts": passingModule(),
				"b.spec.ts": passingModule(),
				"c.spec.ts": failingModule(),
			},
			wantPass: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make([]string, 0, len(tt.modules))
			for file := range tt.modules {
				files = append(files, file)
			}

			reporter := &recordingReporter{}
			r, err := NewTestRunner(Config{
				Compiler:  binaryCompiler(),
				Loader:    &fakeLoader{modules: tt.modules},
				Reporter:  reporter,
				SpecFiles: files,
			})
			require.NoError(t, err)

			result, err := r.RunAll(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantPass, result.Pass)
			assert.Equal(t, len(files), result.Stats.Units)
			assert.Equal(t, len(files), result.Stats.Tests)

			// Every unit is reported individually, then the aggregate once.
			assert.Len(t, reporter.consumed, len(files))
			require.Len(t, reporter.completed, 1)
			assert.Equal(t, tt.wantPass, reporter.completed[0].Pass)

			// Unit results keep resolution order regardless of compile
			// completion order.
			for i, unit := range result.Units {
				require.NotNil(t, unit)
				assert.Equal(t, files[i], unit.File)
				assert.Equal(t, i, unit.Index)
			}
		})
	}
}

func TestRunAllEmptySpecListPasses(t *testing.T) {
	reporter := &recordingReporter{}
	r, err := NewTestRunner(Config{
		Compiler: binaryCompiler(),
		Loader:   &fakeLoader{},
		Reporter: reporter,
	})
	require.NoError(t, err)

	result, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Zero(t, result.Stats.Units)
	assert.Empty(t, reporter.consumed)
	assert.Len(t, reporter.completed, 1)
}

func TestRunAllCompileErrorIsFatal(t *testing.T) {
	broken := &fakeCompiler{compile: func(ctx context.Context, entries []string, flags []string, sink compiler.WriteSink) error {
		if entries[0] == "bad.spec.ts" {
			return errors.New("ERROR TS2304: cannot find name 'foo'")
		}
		return sink(compiler.BinaryName, []byte(entries[0]))
	}}

	r, err := NewTestRunner(Config{
		Compiler:  broken,
		Loader:    &fakeLoader{modules: map[string]*guestModule{"good.spec.ts": passingModule()}},
		SpecFiles: []string{"good.spec.ts", "bad.spec.ts"},
	})
	require.NoError(t, err)

	_, err = r.RunAll(context.Background())
	require.Error(t, err)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "bad.spec.ts", compileErr.File)
	assert.Contains(t, compileErr.Diagnostic, "TS2304")
	assert.True(t, IsFatal(err))
}

func TestRunAllMissingBinaryIsFatal(t *testing.T) {
	// The compiler succeeds but never emits a binary-kind artifact.
	silent := &fakeCompiler{compile: func(ctx context.Context, entries []string, flags []string, sink compiler.WriteSink) error {
		return nil
	}}

	r, err := NewTestRunner(Config{
		Compiler:  silent,
		Loader:    &fakeLoader{},
		SpecFiles: []string{"a.spec.ts"},
	})
	require.NoError(t, err)

	_, err = r.RunAll(context.Background())
	require.Error(t, err)
	var artifactErr *MissingArtifactError
	require.ErrorAs(t, err, &artifactErr)
	assert.Equal(t, "a.spec.ts", artifactErr.File)
	assert.True(t, IsFatal(err))
}

func TestRunAllInstantiateErrorIsFatal(t *testing.T) {
	r, err := NewTestRunner(Config{
		Compiler:  binaryCompiler(),
		Loader:    &fakeLoader{err: errors.New("invalid magic number")},
		SpecFiles: []string{"a.spec.ts"},
	})
	require.NoError(t, err)

	_, err = r.RunAll(context.Background())
	require.Error(t, err)
	var instErr *InstantiateError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, "a.spec.ts", instErr.File)
	assert.True(t, IsFatal(err))
}

func TestRunAllRegistrationTrapFailsUnitNotRun(t *testing.T) {
	trapping := &guestModule{
		run: func(in wasm.Intrinsics) { in.GroupEnter("broken", 1) },
		fns: map[uint64]func(in wasm.Intrinsics) error{
			1: func(in wasm.Intrinsics) error { return &spec.TrapError{Message: "null deref"} },
		},
	}

	r, err := NewTestRunner(Config{
		Compiler: binaryCompiler(),
		Loader: &fakeLoader{modules: map[string]*guestModule{
			"broken.spec.ts": trapping,
			"good.spec.ts":   passingModule(),
		}},
		SpecFiles: []string{"broken.spec.ts", "good.spec.ts"},
	})
	require.NoError(t, err)

	result, err := r.RunAll(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.False(t, result.Units[0].Pass)
	require.Len(t, result.Units[0].Failures, 1)
	assert.Contains(t, result.Units[0].Failures[0].Actual, "null deref")
	assert.True(t, result.Units[1].Pass)
}

func TestCompileUnitEntryOrder(t *testing.T) {
	var got []string
	c := &fakeCompiler{compile: func(ctx context.Context, entries []string, flags []string, sink compiler.WriteSink) error {
		got = entries
		return sink(compiler.BinaryName, []byte(entries[0]))
	}}

	r, err := NewTestRunner(Config{
		Compiler:  c,
		Loader:    &fakeLoader{modules: map[string]*guestModule{"a.spec.ts": passingModule()}},
		SpecFiles: []string{"a.spec.ts"},
		AddFiles:  []string{"helpers.include.ts", "shims.include.ts"},
	})
	require.NoError(t, err)

	_, err = r.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.spec.ts", "helpers.include.ts", "shims.include.ts", DefaultRuntimeEntry}, got)
}

func TestSideArtifactsWrittenBesideSpec(t *testing.T) {
	dir := t.TempDir()
	specFile := filepath.Join(dir, "math.spec.ts")

	emitting := &fakeCompiler{compile: func(ctx context.Context, entries []string, flags []string, sink compiler.WriteSink) error {
		if err := sink("output.wat", []byte("(module)")); err != nil {
			return err
		}
		if err := sink("output.wasm.map", []byte("{}")); err != nil {
			return err
		}
		return sink(compiler.BinaryName, []byte(entries[0]))
	}}

	r, err := NewTestRunner(Config{
		Compiler:  emitting,
		Loader:    &fakeLoader{modules: map[string]*guestModule{specFile: passingModule()}},
		SpecFiles: []string{specFile},
	})
	require.NoError(t, err)

	_, err = r.RunAll(context.Background())
	require.NoError(t, err)

	// The text artifact lands next to the spec, named after it.
	data, err := os.ReadFile(filepath.Join(dir, "math.wat"))
	require.NoError(t, err)
	assert.Equal(t, "(module)", string(data))

	// The source map is captured in memory, not written to disk.
	_, err = os.Stat(filepath.Join(dir, "math.map"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunAllIsRepeatable(t *testing.T) {
	newRunner := func() TestRunner {
		r, err := NewTestRunner(Config{
			Compiler: binaryCompiler(),
			Loader: &fakeLoader{modules: map[string]*guestModule{
				"a.spec.ts": passingModule(),
				"b.spec.ts": failingModule(),
			}},
			SpecFiles: []string{"a.spec.ts", "b.spec.ts"},
		})
		require.NoError(t, err)
		return r
	}

	first, err := newRunner().RunAll(context.Background())
	require.NoError(t, err)
	second, err := newRunner().RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Pass, second.Pass)
	assert.Equal(t, first.Stats.Tests, second.Stats.Tests)
	assert.Equal(t, first.Stats.UnitsFailed, second.Stats.UnitsFailed)
}
