// Package tinywasm is an in-process WebAssembly virtual machine: a
// validated-module loader, two interchangeable execution back-ends
// (threaded-ISA and closure-tree), and a small VM/VMInstance facade over
// them.
package tinywasm

import (
	"errors"
	"io"

	"github.com/tinywasm/tinywasm/internal/registry"
	"github.com/tinywasm/tinywasm/internal/trace"
	"github.com/tinywasm/tinywasm/internal/wasmstack"
)

// Backend selects which compiled representation loaded modules use.
type Backend = registry.Backend

const (
	// BackendThreaded compiles functions to a flat, pre-resolved
	// Instruction vector executed by a fetch/decode/execute loop.
	BackendThreaded = registry.BackendThreaded
	// BackendClosure compiles functions to a tree of nested Blocks of
	// composed closures.
	BackendClosure = registry.BackendClosure
)

// VM is the mutable builder half of the VM/VMInstance split: it owns the
// registry while modules are being loaded. Once spawn is called the
// registry is considered shared and further loads fail with
// CannotModifyShared, mirroring the teacher's RuntimeConfig builder
// pattern scaled down to this package's smaller surface.
type VM struct {
	state *registry.State

	stackLimit int
	traceW     io.Writer
	traceScope trace.Scopes

	shared bool
}

// New returns a VM with no modules loaded, using BackendThreaded.
func New() *VM {
	return NewWithBackend(BackendThreaded)
}

// NewWithBackend returns a VM that compiles every loaded module with the
// given back-end.
func NewWithBackend(backend Backend) *VM {
	return &VM{
		state:      registry.NewState(backend),
		stackLimit: wasmstack.DefaultLimit,
	}
}

// WithStackLimit sets the maximum number of operand-stack cells any Store
// spawned from this VM may hold before trapping with StackOverflow.
func (vm *VM) WithStackLimit(limit int) *VM {
	vm.stackLimit = limit
	return vm
}

// WithTrace enables call tracing to w for the given scopes. Passing
// a nil Writer disables tracing again.
func (vm *VM) WithTrace(w io.Writer, scopes trace.Scopes) *VM {
	vm.traceW = w
	vm.traceScope = scopes
	return vm
}

// LoadFile decodes and compiles data, registering its exports under name.
// Fails with ModuleExists if name is already registered, or
// CannotModifyShared once this VM has been spawned from.
func (vm *VM) LoadFile(name string, data []byte) error {
	if vm.shared {
		return CannotModifyShared
	}
	if _, err := vm.state.Load(name, data); err != nil {
		switch {
		case errors.Is(err, registry.ErrModuleExists):
			return ModuleExists
		case errors.Is(err, registry.ErrValidation):
			return ValidationError(err)
		default:
			return ParseError(err)
		}
	}
	return nil
}

// Spawn yields a VMInstance bound to this VM's current registry. After the
// first Spawn, the registry is frozen: further LoadFile calls on vm fail
// with CannotModifyShared. Concurrent instances spawned from the same VM
// share the registry read-only and may run independently without
// synchronization.
func (vm *VM) Spawn() *VMInstance {
	vm.shared = true
	return &VMInstance{
		state:      vm.state,
		stack:      wasmstack.NewWithLimit(vm.stackLimit),
		traceW:     vm.traceW,
		traceScope: vm.traceScope,
	}
}
