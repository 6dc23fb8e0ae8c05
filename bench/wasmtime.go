//go:build amd64 && cgo

package bench

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go"
)

func init() {
	newRuntimeFuncs["wasmtime"] = newWasmtimeRuntime
}

type wasmtimeRuntime struct {
	store *wasmtime.Store
	fn    *wasmtime.Func
}

func newWasmtimeRuntime(data []byte) (Runtime, error) {
	store := wasmtime.NewStore(wasmtime.NewEngine())
	module, err := wasmtime.NewModule(store.Engine, data)
	if err != nil {
		return nil, err
	}
	instance, err := wasmtime.NewInstance(store, module, nil)
	if err != nil {
		return nil, err
	}
	fn := instance.GetFunc(store, "fac-iter")
	if fn == nil {
		return nil, fmt.Errorf("wasmtime: fac-iter is not an exported function")
	}
	return &wasmtimeRuntime{store: store, fn: fn}, nil
}

func (r *wasmtimeRuntime) Name() string { return "wasmtime" }

func (r *wasmtimeRuntime) CallFacIter(n int32) (int64, error) {
	ret, err := r.fn.Call(r.store, n)
	if err != nil {
		return 0, err
	}
	return ret.(int64), nil
}

func (r *wasmtimeRuntime) Close() error {
	r.store = nil
	r.fn = nil
	return nil // wasmtime only closes via finalizer
}
