// Package bench compares this module's two execution back-ends against
// other Wasm runtimes on the same purely-numeric workload (no memory, no
// host imports — this VM supports neither), grounded on the teacher's
// internal/integration_test/vs comparison harness scaled down to the
// surface this interpreter actually has.
package bench

import (
	"github.com/tinywasm/tinywasm"
	"github.com/tinywasm/tinywasm/api"
)

// Runtime runs one compiled module's "fac-iter" export repeatedly.
type Runtime interface {
	Name() string
	CallFacIter(n int32) (int64, error)
	Close() error
}

// newRuntimeFuncs is populated by this file (always) and by each
// build-tag-gated runtime file's init(), mirroring the teacher's
// runtimeTesters registry: a runtime whose cgo dependency isn't available
// on this platform simply never registers itself, instead of the bench
// package failing to build.
var newRuntimeFuncs = map[string]func(data []byte) (Runtime, error){
	"tinywasm-threaded": func(data []byte) (Runtime, error) {
		return newTinywasmRuntime("tinywasm-threaded", tinywasm.BackendThreaded, data)
	},
	"tinywasm-closure": func(data []byte) (Runtime, error) {
		return newTinywasmRuntime("tinywasm-closure", tinywasm.BackendClosure, data)
	},
}

type tinywasmRuntime struct {
	name     string
	instance *tinywasm.VMInstance
}

// newTinywasmRuntime loads data under the given back-end and returns a
// Runtime bound to one spawned VMInstance.
func newTinywasmRuntime(name string, backend tinywasm.Backend, data []byte) (Runtime, error) {
	vm := tinywasm.NewWithBackend(backend)
	if err := vm.LoadFile("m", data); err != nil {
		return nil, err
	}
	return &tinywasmRuntime{name: name, instance: vm.Spawn()}, nil
}

func (r *tinywasmRuntime) Name() string { return r.name }

func (r *tinywasmRuntime) CallFacIter(n int32) (int64, error) {
	v, err := r.instance.Call("m", "fac-iter", []api.Value{api.I32Value(n)})
	if err != nil {
		return 0, err
	}
	return v.I64(), nil
}

func (r *tinywasmRuntime) Close() error { return nil }
