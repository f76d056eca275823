package wasm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/ethereum-optimism/infra/op-wasp/spec"
)

var _ Loader = (*wazeroLoader)(nil)

// wazeroLoader instantiates units with the pure-Go wazero engine. Each unit
// gets its own runtime so nothing leaks across units.
type wazeroLoader struct {
	log log.Logger
}

// NewWazeroLoader creates the default Loader implementation.
func NewWazeroLoader(logger log.Logger) Loader {
	if logger == nil {
		logger = log.Root()
	}
	return &wazeroLoader{log: logger}
}

// Instantiate builds the capability host modules and instantiates the binary
// against them.
func (l *wazeroLoader) Instantiate(ctx context.Context, binary []byte, caps *CapabilitySet) (Module, error) {
	if caps == nil {
		return nil, fmt.Errorf("capability set is required")
	}

	rt := wazero.NewRuntime(ctx)

	if err := l.instantiateIntrinsics(ctx, rt, caps.Intrinsics()); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to bind intrinsics: %w", err)
	}

	for namespace, funcs := range caps.Extensions() {
		builder := rt.NewHostModuleBuilder(namespace)
		for name, fn := range funcs {
			builder.NewFunctionBuilder().WithFunc(fn).Export(name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to bind import namespace '%s': %w", namespace, err)
		}
	}

	mod, err := rt.Instantiate(ctx, binary)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	return &wazeroModule{rt: rt, mod: mod}, nil
}

// instantiateIntrinsics exports the fixed capability interface under the
// reserved namespace. String arguments cross the boundary as (ptr, len) pairs
// of UTF-8 bytes written by the guest-side runtime support.
func (l *wazeroLoader) instantiateIntrinsics(ctx context.Context, rt wazero.Runtime, intr Intrinsics) error {
	b := rt.NewHostModuleBuilder(HostModule)

	b.NewFunctionBuilder().WithFunc(func() uint32 {
		return CapabilityVersion
	}).Export("version")

	// Registration.
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, ptr, length, body uint32) {
		intr.GroupEnter(readString(m, ptr, length), body)
	}).Export("describe")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, ptr, length, fn uint32) {
		intr.RegisterTest(readString(m, ptr, length), fn)
	}).Export("it")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, ptr, length uint32) {
		intr.RegisterSkipped(readString(m, ptr, length))
	}).Export("xit")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, ptr, length, fn, msgPtr, msgLen uint32) {
		intr.RegisterThrows(readString(m, ptr, length), fn, readString(m, msgPtr, msgLen))
	}).Export("itThrows")
	b.NewFunctionBuilder().WithFunc(func(fn uint32) {
		intr.RegisterHook(spec.HookBeforeEach, fn)
	}).Export("beforeEach")
	b.NewFunctionBuilder().WithFunc(func(fn uint32) {
		intr.RegisterHook(spec.HookAfterEach, fn)
	}).Export("afterEach")
	b.NewFunctionBuilder().WithFunc(func(fn uint32) {
		intr.RegisterHook(spec.HookBeforeAll, fn)
	}).Export("beforeAll")
	b.NewFunctionBuilder().WithFunc(func(fn uint32) {
		intr.RegisterHook(spec.HookAfterAll, fn)
	}).Export("afterAll")

	// Value construction.
	b.NewFunctionBuilder().WithFunc(func(v int64) uint32 {
		return intr.NewValue(spec.Int(v))
	}).Export("valInt")
	b.NewFunctionBuilder().WithFunc(func(v float64) uint32 {
		return intr.NewValue(spec.Float(v))
	}).Export("valFloat")
	b.NewFunctionBuilder().WithFunc(func(v uint32) uint32 {
		return intr.NewValue(spec.Bool(v != 0))
	}).Export("valBool")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, ptr, length uint32) uint32 {
		return intr.NewValue(spec.Str(readString(m, ptr, length)))
	}).Export("valStr")
	b.NewFunctionBuilder().WithFunc(func() uint32 {
		return intr.NewValue(spec.Null())
	}).Export("valNull")
	b.NewFunctionBuilder().WithFunc(func(addr uint32) uint32 {
		return intr.NewValue(spec.Ref(addr))
	}).Export("valRef")
	b.NewFunctionBuilder().WithFunc(func(fn uint32) uint32 {
		return intr.NewFunc(fn)
	}).Export("valFunc")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, addr, ptr, count uint32) uint32 {
		return intr.NewList(addr, readHandles(m, ptr, count))
	}).Export("valList")

	// Expectations.
	b.NewFunctionBuilder().WithFunc(func(val uint32) uint32 {
		return intr.Expect(val)
	}).Export("expect")
	b.NewFunctionBuilder().WithFunc(func(exp uint32) uint32 {
		return intr.Negate(exp)
	}).Export("not")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, exp, ptr, length uint32) {
		intr.Annotate(exp, readString(m, ptr, length))
	}).Export("message")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, exp, ptr, length uint32) {
		intr.Locate(exp, readString(m, ptr, length))
	}).Export("location")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, exp, ptr, length uint32) uint32 {
		return intr.AssertUnary(exp, readString(m, ptr, length))
	}).Export("assertUnary")
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, exp, ptr, length, expected uint32) uint32 {
		return intr.AssertBinary(exp, readString(m, ptr, length), expected)
	}).Export("assertBinary")
	b.NewFunctionBuilder().WithFunc(func(exp uint32, expected float64, places int32) uint32 {
		return intr.AssertCloseTo(exp, expected, places)
	}).Export("assertCloseTo")

	// Logging.
	b.NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, level, ptr, length uint32) {
		intr.Log(level, readString(m, ptr, length))
	}).Export("log")

	_, err := b.Instantiate(ctx)
	return err
}

type wazeroModule struct {
	rt  wazero.Runtime
	mod api.Module
}

func (m *wazeroModule) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := m.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("module does not export '%s'", name)
	}
	return fn.Call(ctx, args...)
}

func (m *wazeroModule) ReadMemory(offset, length uint32) ([]byte, bool) {
	mem := m.mod.Memory()
	if mem == nil {
		return nil, false
	}
	return mem.Read(offset, length)
}

func (m *wazeroModule) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}

func readString(m api.Module, ptr, length uint32) string {
	if length == 0 {
		return ""
	}
	data, ok := m.Memory().Read(ptr, length)
	if !ok {
		return ""
	}
	return string(data)
}

func readHandles(m api.Module, ptr, count uint32) []uint32 {
	if count == 0 {
		return nil
	}
	data, ok := m.Memory().Read(ptr, count*4)
	if !ok {
		return nil
	}
	handles := make([]uint32, count)
	for i := range handles {
		handles[i] = uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
	}
	return handles
}
