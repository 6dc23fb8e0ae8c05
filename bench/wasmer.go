//go:build amd64 && cgo && !windows

package bench

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

func init() {
	newRuntimeFuncs["wasmer"] = newWasmerRuntime
}

type wasmerRuntime struct {
	instance *wasmer.Instance
	fn       *wasmer.Function
}

func newWasmerRuntime(data []byte) (Runtime, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, data)
	if err != nil {
		return nil, err
	}
	importObject := wasmer.NewImportObject()
	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, err
	}
	fn, err := instance.Exports.GetRawFunction("fac-iter")
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("wasmer: fac-iter is not an exported function")
	}
	return &wasmerRuntime{instance: instance, fn: fn}, nil
}

func (r *wasmerRuntime) Name() string { return "wasmer" }

func (r *wasmerRuntime) CallFacIter(n int32) (int64, error) {
	ret, err := r.fn.Call(n)
	if err != nil {
		return 0, err
	}
	return ret.(int64), nil
}

func (r *wasmerRuntime) Close() error {
	r.instance.Close()
	r.instance = nil
	return nil
}
