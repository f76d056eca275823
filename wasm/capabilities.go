package wasm

import (
	"fmt"
	"reflect"

	"github.com/ethereum-optimism/infra/op-wasp/spec"
)

const (
	// CapabilityVersion identifies the fixed host interface revision the
	// guest can query at bind time.
	CapabilityVersion = 1

	// HostModule is the reserved import namespace carrying the mandatory
	// intrinsics. User imports may not claim it.
	HostModule = "wasp"
)

// Intrinsics is the fixed, versioned host interface every unit is bound to:
// one method per mandatory intrinsic. Registration methods are only valid
// while the guest's run export executes; value and expectation methods are
// only valid while a test body executes.
type Intrinsics interface {
	// Registration phase.
	GroupEnter(name string, body uint32)
	RegisterTest(name string, fn uint32)
	RegisterSkipped(name string)
	RegisterThrows(name string, fn uint32, want string)
	RegisterHook(kind spec.HookKind, fn uint32)

	// Value construction. Returned handles are only meaningful for the
	// current unit.
	NewValue(v spec.Value) uint32
	NewList(addr uint32, elems []uint32) uint32
	NewFunc(fn uint32) uint32

	// Expectations.
	Expect(val uint32) uint32
	Negate(exp uint32) uint32
	Annotate(exp uint32, msg string)
	Locate(exp uint32, location string)
	AssertUnary(exp uint32, matcher string) uint32
	AssertBinary(exp uint32, matcher string, expected uint32) uint32
	AssertCloseTo(exp uint32, expected float64, places int32) uint32

	// Logging/reporting.
	Log(level uint32, msg string)
}

// CapabilitySet is the import surface a unit is instantiated against:
// user-supplied capability namespaces merged over the mandatory intrinsics.
// The set is validated when built, not when the guest first calls into it.
type CapabilitySet struct {
	intrinsics Intrinsics
	extensions map[string]map[string]any
}

// NewCapabilitySet builds and validates a capability set. imports maps
// namespace to exported name to host function; the HostModule namespace is
// reserved and every exported value must be a non-nil function.
func NewCapabilitySet(intrinsics Intrinsics, imports map[string]map[string]any) (*CapabilitySet, error) {
	if intrinsics == nil {
		return nil, fmt.Errorf("intrinsics are required")
	}

	extensions := make(map[string]map[string]any, len(imports))
	for namespace, funcs := range imports {
		if namespace == HostModule {
			return nil, fmt.Errorf("import namespace '%s' is reserved for intrinsics", HostModule)
		}
		if namespace == "" {
			return nil, fmt.Errorf("import namespace cannot be empty")
		}
		ns := make(map[string]any, len(funcs))
		for name, fn := range funcs {
			if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
				return nil, fmt.Errorf("import %s.%s is not a function", namespace, name)
			}
			ns[name] = fn
		}
		extensions[namespace] = ns
	}

	return &CapabilitySet{
		intrinsics: intrinsics,
		extensions: extensions,
	}, nil
}

// Intrinsics returns the mandatory host interface.
func (c *CapabilitySet) Intrinsics() Intrinsics {
	return c.intrinsics
}

// Extensions returns the validated user namespaces.
func (c *CapabilitySet) Extensions() map[string]map[string]any {
	return c.extensions
}
