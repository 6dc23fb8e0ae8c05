// Package registry is the function/module registry shared by every Store
// spawned off one VM: an append-only table of compiled functions plus, per
// loaded module, an export name lookup. It is the one place that knows how
// to turn a decoded module into runnable functions for either back-end and
// how to dispatch a cross-function call, so both internal/threaded and
// internal/closure can share it through their identical Caller interfaces.
package registry

import (
	"errors"
	"fmt"

	"github.com/tinywasm/tinywasm/api"
	"github.com/tinywasm/tinywasm/internal/binary"
	"github.com/tinywasm/tinywasm/internal/closure"
	"github.com/tinywasm/tinywasm/internal/isa"
	"github.com/tinywasm/tinywasm/internal/threaded"
	"github.com/tinywasm/tinywasm/internal/trap"
	"github.com/tinywasm/tinywasm/internal/wasmstack"
)

// Host-time errors a caller can recover from, as opposed to a *trap.Trap
// which is a runtime fault inside a running function.
var (
	ErrModuleExists   = errors.New("registry: module already exists")
	ErrModuleNotFound = errors.New("registry: module not found")
	ErrFuncNotFound   = errors.New("registry: exported function not found")

	// ErrValidation marks a module that decoded structurally but is not
	// semantically valid. Wrapped with %w so callers can errors.Is against
	// it to distinguish this from a structural decode failure.
	ErrValidation = errors.New("registry: module failed validation")
)

// Backend selects which execution engine compiled functions run on.
type Backend int

const (
	BackendThreaded Backend = iota
	BackendClosure
)

// FuncAddr is a registry-wide function index, stable for the registry's
// lifetime once assigned.
type FuncAddr = uint32

// ModuleAddr is the index of a loaded module's instance within State.
type ModuleAddr = int

// Function is one compiled function: its signature plus whichever
// back-end form State was configured to produce.
type Function struct {
	Name      string
	Type      *api.FunctionType
	NumLocals int

	backend      Backend
	threadedCode []isa.Instruction
	closureBlock *closure.Block
}

func compileFunction(name string, ft *api.FunctionType, fn binary.Function, backend Backend) (*Function, error) {
	switch backend {
	case BackendThreaded:
		code, err := isa.CompileFunction(fn.Body)
		if err != nil {
			return nil, err
		}
		return &Function{Name: name, Type: ft, NumLocals: len(fn.Locals), backend: backend, threadedCode: code}, nil
	case BackendClosure:
		block, err := closure.NewCompiler().CompileFunction(fn.Body)
		if err != nil {
			return nil, err
		}
		return &Function{Name: name, Type: ft, NumLocals: len(fn.Locals), backend: backend, closureBlock: block}, nil
	default:
		return nil, fmt.Errorf("registry: unknown backend %d", backend)
	}
}

// run dispatches to whichever engine compiled f, returning the function's
// single optional result cell. Both engines leave an implicit fall-through
// result on the operand stack rather than handing it back directly, so
// that case is normalized here too.
func (f *Function) run(stack *wasmstack.Stack, l0 *uint64, caller *State) (hasValue bool, value uint64, err error) {
	switch f.backend {
	case BackendThreaded:
		if err = threaded.Run(f.threadedCode, stack, l0, caller); err != nil {
			return false, 0, err
		}
	case BackendClosure:
		act, runErr := f.closureBlock.Run(stack, l0, caller)
		if runErr != nil {
			return false, 0, runErr
		}
		if act.Kind == closure.ActionReturn {
			return act.HasValue, act.Value, nil
		}
	default:
		return false, 0, fmt.Errorf("registry: unknown backend %d", f.backend)
	}
	if stack.FrameSize() > 0 {
		v, perr := stack.Pop()
		if perr != nil {
			return false, 0, perr
		}
		return true, v, nil
	}
	return false, 0, nil
}

type moduleInstance struct {
	exports map[string]FuncAddr
}

// State is the append-only-then-frozen function/module registry: "frozen"
// is enforced by the root VM facade, which stops calling Load once the
// registry has been shared with a spawned instance (spec.md §5/§4.7).
type State struct {
	backend         Backend
	funcs           []*Function
	moduleInstances []moduleInstance
	modules         map[string]ModuleAddr
}

// NewState returns an empty registry compiling every loaded module with
// the given back-end.
func NewState(backend Backend) *State {
	return &State{backend: backend, modules: map[string]ModuleAddr{}}
}

// Load decodes data as a Wasm module, compiles each of its functions, and
// publishes its exports under name. Fails with ErrModuleExists if name is
// already registered.
func (st *State) Load(name string, data []byte) (ModuleAddr, error) {
	if _, exists := st.modules[name]; exists {
		return 0, ErrModuleExists
	}
	mod, err := binary.Decode(data)
	if err != nil {
		return 0, err
	}

	base := FuncAddr(len(st.funcs))
	for i, fn := range mod.Functions {
		if int(fn.TypeIndex) >= len(mod.Types) {
			return 0, fmt.Errorf("%w: function %d: type index %d out of range", ErrValidation, i, fn.TypeIndex)
		}
		// Call immediates are module-local function indices; rebase them
		// onto this module's slice of the registry-wide function table.
		for j := range fn.Body {
			if fn.Body[j].Code == binary.OpCall {
				fn.Body[j].Idx += base
			}
		}
		compiled, err := compileFunction(fmt.Sprintf("%s#%d", name, i), mod.Types[fn.TypeIndex], fn, st.backend)
		if err != nil {
			return 0, fmt.Errorf("registry: compiling function %d: %w", i, err)
		}
		st.funcs = append(st.funcs, compiled)
	}

	mi := moduleInstance{exports: make(map[string]FuncAddr, len(mod.Exports))}
	for exportName, localIdx := range mod.Exports {
		mi.exports[exportName] = base + localIdx
	}

	addr := len(st.moduleInstances)
	st.moduleInstances = append(st.moduleInstances, mi)
	st.modules[name] = addr
	return addr, nil
}

// GetExported resolves an export by module and field name.
func (st *State) GetExported(module, name string) (FuncAddr, error) {
	addr, ok := st.modules[module]
	if !ok {
		return 0, ErrModuleNotFound
	}
	fa, ok := st.moduleInstances[addr].exports[name]
	if !ok {
		return 0, ErrFuncNotFound
	}
	return fa, nil
}

// GetFunction resolves a FuncAddr to its compiled Function. Unlike the
// lookups above this is a runtime-boundary check, so an invalid address
// traps rather than returning a host error: a bad call target is the
// execution engine's problem, not the caller's.
func (st *State) GetFunction(addr FuncAddr) (*Function, error) {
	if int(addr) >= len(st.funcs) {
		return nil, trap.New(trap.InvalidFunctionAddr)
	}
	return st.funcs[addr], nil
}

// Invoke pushes a frame over the nParams cells already sitting on top of
// stack's current frame, seeds local 0, runs addr's function body to
// completion, writes local 0 back, and pops the frame. It is the shared
// landing point for both a top-level Store.call and a nested OpCall/
// KindCall dispatched through CallByIndex.
func (st *State) Invoke(addr FuncAddr, stack *wasmstack.Stack) (fn *Function, hasValue bool, value uint64, err error) {
	fn, err = st.GetFunction(addr)
	if err != nil {
		return nil, false, 0, err
	}
	hasValue, value, err = st.invoke(fn, stack)
	return fn, hasValue, value, err
}

func (st *State) invoke(fn *Function, stack *wasmstack.Stack) (hasValue bool, value uint64, err error) {
	prev, err := stack.PushFrame(fn.Type.ParamCount(), fn.NumLocals)
	if err != nil {
		return false, 0, err
	}

	hasLocal0 := fn.Type.ParamCount() > 0 || fn.NumLocals > 0
	var l0 uint64
	if hasLocal0 {
		l0 = stack.SeedLocal0()
	}

	hasValue, value, runErr := fn.run(stack, &l0, st)
	if hasLocal0 {
		stack.WriteBackLocal0(l0)
	}
	stack.PopFrame(prev)
	if runErr != nil {
		return false, 0, runErr
	}
	return hasValue, value, nil
}

// CallByIndex implements the Caller interface both internal/threaded and
// internal/closure define, letting a running function's OpCall/KindCall
// dispatch back into this same registry.
func (st *State) CallByIndex(idx uint32, stack *wasmstack.Stack, _ *uint64) error {
	_, hasValue, value, err := st.Invoke(idx, stack)
	if err != nil {
		return err
	}
	if hasValue {
		return stack.Push(value)
	}
	return nil
}
