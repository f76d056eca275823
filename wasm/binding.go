package wasm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-wasp/spec"
)

type phase int

const (
	phaseIdle phase = iota
	phaseRegister
	phaseExecute
)

var _ Intrinsics = (*Binding)(nil)

// Binding adapts the guest protocol onto the spec engine. During the guest's
// run export it records declarations through a Registrar; Execute then walks
// the finished tree, calling back into the guest per body via __call. The
// guest therefore observes the classic inline synchronous DSL while the host
// keeps registration and execution as separate passes.
type Binding struct {
	log       log.Logger
	registrar *spec.Registrar
	executor  *spec.Executor

	ctx    context.Context
	module Module
	phase  phase

	regErr  error
	values  []spec.Value
	expects []*spec.Expectation
}

// NewBinding creates a binding. Executor options (listener, logger) are
// forwarded to the execution pass.
func NewBinding(logger log.Logger, opts ...spec.Option) *Binding {
	if logger == nil {
		logger = log.Root()
	}
	opts = append([]spec.Option{spec.WithLogger(logger)}, opts...)
	return &Binding{
		log:       logger,
		registrar: spec.NewRegistrar(),
		executor:  spec.NewExecutor(opts...),
	}
}

// RunRegistration binds the instantiated module and drives its run export.
// By the time it returns the full group/test tree has been registered. A trap
// during registration is a unit-level failure.
func (b *Binding) RunRegistration(ctx context.Context, module Module) error {
	b.ctx = ctx
	b.module = module
	b.phase = phaseRegister
	_, err := module.Call(ctx, GuestRunExport)
	b.phase = phaseIdle
	if err != nil {
		return fmt.Errorf("run entry point trapped: %w", err)
	}
	if b.regErr != nil {
		return b.regErr
	}
	return nil
}

// Execute runs the registered tree depth-first and returns the summary.
func (b *Binding) Execute() *spec.Summary {
	b.phase = phaseExecute
	summary := b.executor.Run(b.registrar.Root())
	b.phase = phaseIdle
	return summary
}

// body wraps a guest function table index into an executor body. A trap in
// the guest surfaces as a TrapError with the engine's message.
func (b *Binding) body(fn uint32) spec.Body {
	return func() error {
		if b.module == nil {
			return &spec.TrapError{Message: "no module bound"}
		}
		if _, err := b.module.Call(b.ctx, GuestCallExport, uint64(fn)); err != nil {
			return &spec.TrapError{Message: err.Error()}
		}
		return nil
	}
}

// GroupEnter registers a group and immediately invokes its body so nested
// declarations register synchronously.
func (b *Binding) GroupEnter(name string, body uint32) {
	if b.phase != phaseRegister {
		b.log.Warn("describe called outside registration", "group", name)
		return
	}
	b.registrar.Describe(name, func() {
		if err := b.body(body)(); err != nil && b.regErr == nil {
			b.regErr = fmt.Errorf("group '%s' trapped during registration: %w", name, err)
		}
	})
}

func (b *Binding) RegisterTest(name string, fn uint32) {
	if b.phase != phaseRegister {
		b.log.Warn("it called outside registration", "test", name)
		return
	}
	b.registrar.Test(name, b.body(fn))
}

func (b *Binding) RegisterSkipped(name string) {
	if b.phase != phaseRegister {
		b.log.Warn("xit called outside registration", "test", name)
		return
	}
	b.registrar.Skip(name)
}

func (b *Binding) RegisterThrows(name string, fn uint32, want string) {
	if b.phase != phaseRegister {
		b.log.Warn("itThrows called outside registration", "test", name)
		return
	}
	b.registrar.Throws(name, b.body(fn), want)
}

func (b *Binding) RegisterHook(kind spec.HookKind, fn uint32) {
	if b.phase != phaseRegister {
		b.log.Warn("hook registered outside registration", "kind", kind.String())
		return
	}
	b.registrar.Hook(kind, b.body(fn))
}

func (b *Binding) NewValue(v spec.Value) uint32 {
	b.values = append(b.values, v)
	return uint32(len(b.values) - 1)
}

func (b *Binding) NewList(addr uint32, elems []uint32) uint32 {
	resolved := make([]spec.Value, 0, len(elems))
	for _, h := range elems {
		resolved = append(resolved, b.value(h))
	}
	return b.NewValue(spec.List(addr, resolved...))
}

func (b *Binding) NewFunc(fn uint32) uint32 {
	return b.NewValue(spec.Func(fn, b.body(fn)))
}

func (b *Binding) value(handle uint32) spec.Value {
	if int(handle) >= len(b.values) {
		b.log.Error("Unknown value handle", "handle", handle)
		return spec.Null()
	}
	return b.values[handle]
}

func (b *Binding) Expect(val uint32) uint32 {
	b.expects = append(b.expects, b.executor.Expect(b.value(val)))
	return uint32(len(b.expects) - 1)
}

func (b *Binding) expectation(handle uint32) *spec.Expectation {
	if int(handle) >= len(b.expects) {
		b.log.Error("Unknown expectation handle", "handle", handle)
		return b.executor.Expect(spec.Null())
	}
	return b.expects[handle]
}

func (b *Binding) Negate(exp uint32) uint32 {
	b.expects = append(b.expects, b.expectation(exp).Not())
	return uint32(len(b.expects) - 1)
}

func (b *Binding) Annotate(exp uint32, msg string) {
	b.expectation(exp).WithMessage(msg)
}

func (b *Binding) Locate(exp uint32, location string) {
	b.expectation(exp).At(location)
}

// AssertUnary evaluates a matcher that takes no expected value.
func (b *Binding) AssertUnary(exp uint32, matcher string) uint32 {
	x := b.expectation(exp)
	var verdict bool
	switch matcher {
	case "toBeTruthy":
		verdict = x.ToBeTruthy()
	case "toBeFalsy":
		verdict = x.ToBeFalsy()
	case "toBeNull":
		verdict = x.ToBeNull()
	case "toBeNaN":
		verdict = x.ToBeNaN()
	case "toBeFinite":
		verdict = x.ToBeFinite()
	case "toThrow":
		verdict = x.ToThrow()
	default:
		b.log.Error("Unknown unary matcher", "matcher", matcher)
		return 0
	}
	return boolToWord(verdict)
}

// AssertBinary evaluates a matcher against an expected value handle.
func (b *Binding) AssertBinary(exp uint32, matcher string, expected uint32) uint32 {
	x := b.expectation(exp)
	want := b.value(expected)
	var verdict bool
	switch matcher {
	case "toBe":
		verdict = x.ToBe(want)
	case "toBeGreaterThan":
		verdict = x.ToBeGreaterThan(want)
	case "toBeGreaterThanOrEqual":
		verdict = x.ToBeGreaterThanOrEqual(want)
	case "toBeLessThan":
		verdict = x.ToBeLessThan(want)
	case "toBeLessThanOrEqual":
		verdict = x.ToBeLessThanOrEqual(want)
	case "toHaveLength":
		verdict = x.ToHaveLength(want.Int)
	case "toContain":
		verdict = x.ToContain(want)
	case "toContainEqual":
		verdict = x.ToContainEqual(want)
	case "toThrowWith":
		verdict = x.ToThrowWith(want.Str)
	default:
		b.log.Error("Unknown binary matcher", "matcher", matcher)
		return 0
	}
	return boolToWord(verdict)
}

func (b *Binding) AssertCloseTo(exp uint32, expected float64, places int32) uint32 {
	return boolToWord(b.expectation(exp).ToBeCloseTo(expected, places))
}

// Log routes a guest log line to the host logger.
func (b *Binding) Log(level uint32, msg string) {
	switch level {
	case 0:
		b.log.Debug(msg)
	case 1:
		b.log.Info(msg)
	case 2:
		b.log.Warn(msg)
	default:
		b.log.Error(msg)
	}
}

func boolToWord(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
