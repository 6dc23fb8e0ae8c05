package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinywasm/tinywasm/internal/leb128"
)

// buildModule assembles a minimal single-function module by hand, the way
// a text-format assembler would, to exercise the decoder without a real
// wasm toolchain on hand.
func buildModule(t *testing.T, params, results int, body []byte) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d) // magic
	buf = append(buf, 0x01, 0x00, 0x00, 0x00) // version

	// type section: one type, `params` i32 params, `results` i32 results.
	var typeBody []byte
	typeBody = append(typeBody, leb128.EncodeUint32(1)...) // 1 type
	typeBody = append(typeBody, 0x60)
	typeBody = append(typeBody, leb128.EncodeUint32(uint32(params))...)
	for i := 0; i < params; i++ {
		typeBody = append(typeBody, 0x7f)
	}
	typeBody = append(typeBody, leb128.EncodeUint32(uint32(results))...)
	for i := 0; i < results; i++ {
		typeBody = append(typeBody, 0x7f)
	}
	buf = append(buf, sectionType)
	buf = append(buf, leb128.EncodeUint32(uint32(len(typeBody)))...)
	buf = append(buf, typeBody...)

	// function section: one function, type index 0.
	funcBody := leb128.EncodeUint32(1)
	funcBody = append(funcBody, leb128.EncodeUint32(0)...)
	buf = append(buf, sectionFunction)
	buf = append(buf, leb128.EncodeUint32(uint32(len(funcBody)))...)
	buf = append(buf, funcBody...)

	// code section: one function body, no locals, given code + implicit end.
	code := append([]byte{}, body...)
	code = append(code, byte(OpEnd))
	var entry []byte
	entry = append(entry, leb128.EncodeUint32(0)...) // 0 local groups
	entry = append(entry, code...)

	var codeBody []byte
	codeBody = append(codeBody, leb128.EncodeUint32(1)...)
	codeBody = append(codeBody, leb128.EncodeUint32(uint32(len(entry)))...)
	codeBody = append(codeBody, entry...)
	buf = append(buf, sectionCode)
	buf = append(buf, leb128.EncodeUint32(uint32(len(codeBody)))...)
	buf = append(buf, codeBody...)

	// export section: export function 0 as "run".
	var expBody []byte
	expBody = append(expBody, leb128.EncodeUint32(1)...)
	expBody = append(expBody, leb128.EncodeUint32(uint32(len("run")))...)
	expBody = append(expBody, []byte("run")...)
	expBody = append(expBody, exportKindFunc)
	expBody = append(expBody, leb128.EncodeUint32(0)...)
	buf = append(buf, sectionExport)
	buf = append(buf, leb128.EncodeUint32(uint32(len(expBody)))...)
	buf = append(buf, expBody...)

	return buf
}

func TestDecodeSimpleModule(t *testing.T) {
	body := []byte{
		byte(OpLocalGet), 0x00,
		byte(OpLocalGet), 0x01,
		byte(OpI32Add),
	}
	data := buildModule(t, 2, 1, body)

	m, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, m.Types, 1)
	require.Equal(t, 2, m.Types[0].ParamCount())
	require.Len(t, m.Functions, 1)

	fn := m.Functions[0]
	require.Equal(t, []Op{
		{Code: OpLocalGet, Idx: 0},
		{Code: OpLocalGet, Idx: 1},
		{Code: OpI32Add},
		{Code: OpEnd},
	}, fn.Body)

	idx, ok := m.Exports["run"]
	require.True(t, ok)
	require.Equal(t, uint32(0), idx)
}

func TestDecodeConstAndBranch(t *testing.T) {
	body := []byte{
		byte(OpI32Const), 0x7f, // -1 as sleb128
		byte(OpBlock), 0x40,
		byte(OpBr), 0x00,
		byte(OpEnd),
	}
	data := buildModule(t, 0, 0, body)
	m, err := Decode(data)
	require.NoError(t, err)
	fn := m.Functions[0]
	require.Equal(t, OpI32Const, fn.Body[0].Code)
	require.Equal(t, int32(-1), fn.Body[0].I32)
	require.Equal(t, OpBlock, fn.Body[1].Code)
	require.True(t, fn.Body[1].Block.Void)
	require.Equal(t, OpBr, fn.Body[2].Code)
	require.Equal(t, uint32(0), fn.Body[2].Idx)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.Error(t, err)
}
