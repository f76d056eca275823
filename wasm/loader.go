// Package wasm defines the loader collaborator contract and the capability
// set a compiled test unit is instantiated against, together with a
// wazero-backed implementation.
package wasm

import "context"

// Guest exports every test unit must provide.
const (
	// GuestRunExport is the "run all declared groups" entry point. All
	// registration happens synchronously inside this call.
	GuestRunExport = "run"
	// GuestCallExport invokes a guest function by table index. The execution
	// pass uses it to run group bodies, hooks and test callbacks.
	GuestCallExport = "__call"
)

// Module is an instantiated guest exposing named exported entry points and a
// readable memory region.
type Module interface {
	// Call invokes an exported entry point. A trap is reported as an error.
	Call(ctx context.Context, name string, args ...uint64) ([]uint64, error)
	// ReadMemory reads from the guest's linear memory.
	ReadMemory(offset, length uint32) ([]byte, bool)
	// Close releases the instance. Each module is scoped to one unit's
	// lifetime; nothing is pooled or reused.
	Close(ctx context.Context) error
}

// Loader instantiates binary module bytes against a capability set, or fails.
type Loader interface {
	Instantiate(ctx context.Context, binary []byte, caps *CapabilitySet) (Module, error)
}
