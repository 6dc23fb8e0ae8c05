package tinywasm

import (
	"io"

	"github.com/tinywasm/tinywasm/api"
	"github.com/tinywasm/tinywasm/internal/registry"
	"github.com/tinywasm/tinywasm/internal/trace"
	"github.com/tinywasm/tinywasm/internal/trap"
	"github.com/tinywasm/tinywasm/internal/wasmstack"
)

// VMInstance is the per-invocation mutable half of the VM/VMInstance
// split: its own operand stack over a shared, frozen registry. Multiple
// VMInstances spawned from one VM run independently; nothing here is
// synchronized, by design (spec's single-threaded-cooperative-per-Store
// model).
type VMInstance struct {
	state *registry.State
	stack *wasmstack.Stack

	traceW     io.Writer
	traceScope trace.Scopes
}

// GetExported resolves module.name to a FuncAddr without calling it,
// mirroring the registry lookup the teacher's namespace exposes directly.
func (vi *VMInstance) GetExported(module, name string) (uint32, error) {
	addr, err := vi.state.GetExported(module, name)
	return addr, mapRegistryError(err)
}

// Call resolves module.name, pushes params, seeds local 0 from the first
// parameter, runs the function to completion, and converts its optional
// raw return cell back to a tagged Value matching the function's declared
// result type. A nil *api.Value with a nil error means the function
// returned no value.
func (vi *VMInstance) Call(module, name string, params []api.Value) (*api.Value, error) {
	addr, err := vi.state.GetExported(module, name)
	if err != nil {
		return nil, mapRegistryError(err)
	}

	trace.Tracef(vi.traceW, vi.traceScope, trace.ScopeFunction, "call %s.%s%v", module, name, params)

	if _, err := vi.stack.PushParams(params); err != nil {
		return nil, RuntimeError(err)
	}

	fn, hasValue, raw, err := vi.state.Invoke(addr, vi.stack)
	if err != nil {
		return nil, RuntimeError(err)
	}
	if !hasValue {
		return nil, nil
	}
	resultType, ok := fn.Type.ResultType()
	if !ok {
		return nil, RuntimeError(trap.New(trap.UnexpectedSignature))
	}
	v := api.ValueFromRaw(resultType, raw)
	return &v, nil
}

func mapRegistryError(err error) error {
	switch err {
	case nil:
		return nil
	case registry.ErrModuleNotFound:
		return ModuleNotFound
	case registry.ErrFuncNotFound:
		return FuncNotFound
	default:
		return err
	}
}
