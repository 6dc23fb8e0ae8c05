package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinywasm/tinywasm/internal/binary"
	"github.com/tinywasm/tinywasm/internal/leb128"
	"github.com/tinywasm/tinywasm/internal/trap"
	"github.com/tinywasm/tinywasm/internal/wasmstack"
)

const (
	sectionType     = 1
	sectionFunction = 3
	sectionExport   = 7
	sectionCode     = 10
	exportKindFunc  = 0x00
)

type fnSpec struct {
	Params, Results int
	Body            []byte
}

// buildModule hand-assembles a module with one type per function (each
// typed (i32^Params) -> i32^Results), exporting the names in exports.
func buildModule(t *testing.T, funcs []fnSpec, exports map[string]uint32) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d)
	buf = append(buf, 0x01, 0x00, 0x00, 0x00)

	var typeBody []byte
	typeBody = append(typeBody, leb128.EncodeUint32(uint32(len(funcs)))...)
	for _, f := range funcs {
		typeBody = append(typeBody, 0x60)
		typeBody = append(typeBody, leb128.EncodeUint32(uint32(f.Params))...)
		for i := 0; i < f.Params; i++ {
			typeBody = append(typeBody, 0x7f)
		}
		typeBody = append(typeBody, leb128.EncodeUint32(uint32(f.Results))...)
		for i := 0; i < f.Results; i++ {
			typeBody = append(typeBody, 0x7f)
		}
	}
	buf = append(buf, sectionType)
	buf = append(buf, leb128.EncodeUint32(uint32(len(typeBody)))...)
	buf = append(buf, typeBody...)

	var funcBody []byte
	funcBody = append(funcBody, leb128.EncodeUint32(uint32(len(funcs)))...)
	for i := range funcs {
		funcBody = append(funcBody, leb128.EncodeUint32(uint32(i))...)
	}
	buf = append(buf, sectionFunction)
	buf = append(buf, leb128.EncodeUint32(uint32(len(funcBody)))...)
	buf = append(buf, funcBody...)

	var codeBody []byte
	codeBody = append(codeBody, leb128.EncodeUint32(uint32(len(funcs)))...)
	for _, f := range funcs {
		code := append([]byte{}, f.Body...)
		code = append(code, byte(binary.OpEnd))
		var entry []byte
		entry = append(entry, leb128.EncodeUint32(0)...)
		entry = append(entry, code...)
		codeBody = append(codeBody, leb128.EncodeUint32(uint32(len(entry)))...)
		codeBody = append(codeBody, entry...)
	}
	buf = append(buf, sectionCode)
	buf = append(buf, leb128.EncodeUint32(uint32(len(codeBody)))...)
	buf = append(buf, codeBody...)

	var expBody []byte
	expBody = append(expBody, leb128.EncodeUint32(uint32(len(exports)))...)
	for name, idx := range exports {
		expBody = append(expBody, leb128.EncodeUint32(uint32(len(name)))...)
		expBody = append(expBody, []byte(name)...)
		expBody = append(expBody, exportKindFunc)
		expBody = append(expBody, leb128.EncodeUint32(idx)...)
	}
	buf = append(buf, sectionExport)
	buf = append(buf, leb128.EncodeUint32(uint32(len(expBody)))...)
	buf = append(buf, expBody...)

	return buf
}

func callExported(t *testing.T, st *State, module, name string, params []uint64) (uint64, bool, error) {
	t.Helper()
	addr, err := st.GetExported(module, name)
	require.NoError(t, err)

	s := wasmstack.New()
	for _, p := range params {
		require.NoError(t, s.Push(p))
	}
	fn, hasValue, value, err := st.Invoke(addr, s)
	require.NotNil(t, fn)
	return value, hasValue, err
}

func TestLoadAndInvokeSingleFunction(t *testing.T) {
	// double(x) = x + x
	body := []byte{
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpI32Add),
	}
	data := buildModule(t, []fnSpec{{Params: 1, Results: 1, Body: body}}, map[string]uint32{"double": 0})

	for _, backend := range []Backend{BackendThreaded, BackendClosure} {
		st := NewState(backend)
		_, err := st.Load("m", data)
		require.NoError(t, err)

		v, hasValue, err := callExported(t, st, "m", "double", []uint64{21})
		require.NoError(t, err)
		require.True(t, hasValue)
		require.Equal(t, uint64(42), v)
	}
}

func TestCrossFunctionCall(t *testing.T) {
	// func 0: double(x) = x + x
	// func 1: main(x) = double(x) + 1
	doubleBody := []byte{
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpI32Add),
	}
	mainBody := []byte{
		byte(binary.OpLocalGet), 0x00,
		byte(binary.OpCall), 0x00,
		byte(binary.OpI32Const), 0x01,
		byte(binary.OpI32Add),
	}
	data := buildModule(t, []fnSpec{
		{Params: 1, Results: 1, Body: doubleBody},
		{Params: 1, Results: 1, Body: mainBody},
	}, map[string]uint32{"main": 1})

	for _, backend := range []Backend{BackendThreaded, BackendClosure} {
		st := NewState(backend)
		_, err := st.Load("m", data)
		require.NoError(t, err)

		v, hasValue, err := callExported(t, st, "m", "main", []uint64{10})
		require.NoError(t, err)
		require.True(t, hasValue)
		require.Equal(t, uint64(21), v)
	}
}

func TestLoadDuplicateModuleNameFails(t *testing.T) {
	data := buildModule(t, []fnSpec{{Params: 0, Results: 0, Body: nil}}, map[string]uint32{"f": 0})
	st := NewState(BackendThreaded)
	_, err := st.Load("m", data)
	require.NoError(t, err)
	_, err = st.Load("m", data)
	require.ErrorIs(t, err, ErrModuleExists)
}

func TestGetExportedUnknownModuleOrFunc(t *testing.T) {
	data := buildModule(t, []fnSpec{{Params: 0, Results: 0, Body: nil}}, map[string]uint32{"f": 0})
	st := NewState(BackendThreaded)
	_, err := st.Load("m", data)
	require.NoError(t, err)

	_, err = st.GetExported("missing", "f")
	require.ErrorIs(t, err, ErrModuleNotFound)

	_, err = st.GetExported("m", "missing")
	require.ErrorIs(t, err, ErrFuncNotFound)
}

func TestGetFunctionInvalidAddrTraps(t *testing.T) {
	st := NewState(BackendThreaded)
	_, err := st.GetFunction(7)
	require.Error(t, err)
	require.Equal(t, trap.InvalidFunctionAddr, err.(*trap.Trap).Kind)
}
