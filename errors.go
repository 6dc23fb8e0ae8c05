package tinywasm

import (
	"errors"
	"fmt"

	"github.com/tinywasm/tinywasm/internal/registry"
	"github.com/tinywasm/tinywasm/internal/trap"
)

// Sentinel host-time errors, compared with errors.Is. These sit alongside
// *trap.Trap (a runtime fault inside a running function) as the second of
// the two error taxonomies: this one covers mistakes a host program makes
// calling the VM, not faults a Wasm function hits while running.
var (
	FuncNotFound        = registry.ErrFuncNotFound
	FuncExists          = errors.New("tinywasm: function already exported under that name")
	ModuleNotFound      = registry.ErrModuleNotFound
	ModuleExists        = registry.ErrModuleExists
	CannotModifyShared  = errors.New("tinywasm: VM registry already shared with a spawned instance")
)

// ParseError wraps a failure to decode a module's binary.
func ParseError(cause error) error {
	return fmt.Errorf("tinywasm: failed to parse wasm: %w", cause)
}

// ValidationError wraps a structurally-decoded module that is not
// semantically valid (e.g. a function whose type index is out of range).
func ValidationError(cause error) error {
	return fmt.Errorf("tinywasm: failed to validate wasm: %w", cause)
}

// RuntimeError wraps a *trap.Trap surfaced from a function call, so host
// code can errors.As into a *trap.Trap without internal/trap being part of
// the public import surface.
func RuntimeError(cause error) error {
	return fmt.Errorf("tinywasm: runtime trap: %w", cause)
}

// AsTrap unwraps err (as returned by VMInstance.Call) into its *trap.Trap
// cause, if it wraps one.
func AsTrap(err error) (*trap.Trap, bool) {
	var t *trap.Trap
	ok := errors.As(err, &t)
	return t, ok
}
