package closure

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinywasm/tinywasm/internal/binary"
	"github.com/tinywasm/tinywasm/internal/trap"
	"github.com/tinywasm/tinywasm/internal/wasmstack"
)

func compile(t *testing.T, ops []binary.Op) *Block {
	t.Helper()
	block, err := NewCompiler().CompileFunction(ops)
	require.NoError(t, err)
	return block
}

// runFunction seeds a fresh frame with params, l0 from params[0], runs
// block, and returns the single result left on the stack (if any).
func runFunction(t *testing.T, block *Block, params []uint64, nLocals int) (uint64, error) {
	t.Helper()
	s := wasmstack.New()
	for _, p := range params {
		require.NoError(t, s.Push(p))
	}
	prev, err := s.PushFrame(len(params), nLocals)
	require.NoError(t, err)

	var l0 uint64
	if len(params) > 0 {
		l0 = params[0]
	}

	act, runErr := block.Run(s, &l0, nil)
	var result uint64
	if runErr == nil && act.Kind == ActionReturn && act.HasValue {
		result = act.Value
	} else if runErr == nil {
		if s.FrameSize() > 0 {
			result, _ = s.Pop()
		}
	}
	s.PopFrame(prev)
	return result, runErr
}

func TestSumOfFive(t *testing.T) {
	block := compile(t, []binary.Op{
		{Code: binary.OpLocalGet, Idx: 0},
		{Code: binary.OpLocalGet, Idx: 1},
		{Code: binary.OpI64Add},
		{Code: binary.OpLocalGet, Idx: 2},
		{Code: binary.OpI64Add},
		{Code: binary.OpLocalGet, Idx: 3},
		{Code: binary.OpI64Add},
		{Code: binary.OpLocalGet, Idx: 4},
		{Code: binary.OpI64Add},
		{Code: binary.OpEnd},
	})
	result, err := runFunction(t, block, []uint64{1, 2, 3, 4, 5}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(15), result)
}

func TestDivisionTrap(t *testing.T) {
	block := compile(t, []binary.Op{
		{Code: binary.OpLocalGet, Idx: 0},
		{Code: binary.OpLocalGet, Idx: 1},
		{Code: binary.OpI64DivS},
		{Code: binary.OpEnd},
	})
	_, err := runFunction(t, block, []uint64{10, 0}, 0)
	require.Error(t, err)
	require.Equal(t, trap.DivisionByZero, err.(*trap.Trap).Kind)
}

func TestParityIfElse(t *testing.T) {
	// parity(n) = if (n & 1) then 1 else 0
	block := compile(t, []binary.Op{
		{Code: binary.OpLocalGet, Idx: 0},
		{Code: binary.OpI64Const, I64: 1},
		{Code: binary.OpI64And},
		{Code: binary.OpI64Eqz},
		{Code: binary.OpIf, Block: binary.BlockType{Type: 0x7e}},
		{Code: binary.OpI64Const, I64: 0},
		{Code: binary.OpElse},
		{Code: binary.OpI64Const, I64: 1},
		{Code: binary.OpEnd},
		{Code: binary.OpEnd},
	})

	result, err := runFunction(t, block, []uint64{42}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), result)

	result, err = runFunction(t, block, []uint64{43}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result)
}

func TestIfWithoutElseFallsThroughOnFalse(t *testing.T) {
	// if (0) { unreachable } -- condition false and no else: must not trap.
	block := compile(t, []binary.Op{
		{Code: binary.OpI64Const, I64: 0},
		{Code: binary.OpIf, Block: binary.BlockType{Void: true}},
		{Code: binary.OpUnreachable},
		{Code: binary.OpEnd},
		{Code: binary.OpI64Const, I64: 9},
		{Code: binary.OpEnd},
	})
	result, err := runFunction(t, block, nil, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(9), result)
}

func TestNestedBlockBranchResumesOuter(t *testing.T) {
	// block { block { br 1 } } i64.const 7 -- only the post-block code runs.
	block := compile(t, []binary.Op{
		{Code: binary.OpBlock, Block: binary.BlockType{Void: true}},
		{Code: binary.OpBlock, Block: binary.BlockType{Void: true}},
		{Code: binary.OpBr, Idx: 1},
		{Code: binary.OpEnd},
		{Code: binary.OpEnd},
		{Code: binary.OpI64Const, I64: 7},
		{Code: binary.OpEnd},
	})
	result, err := runFunction(t, block, nil, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(7), result)
}

func TestLoopBranchZeroRestarts(t *testing.T) {
	// count down from local 0 to zero using a loop; result is always 0.
	block := compile(t, []binary.Op{
		{Code: binary.OpLoop, Block: binary.BlockType{Void: true}},
		{Code: binary.OpLocalGet, Idx: 0},
		{Code: binary.OpI64Const, I64: 1},
		{Code: binary.OpI64Sub},
		{Code: binary.OpLocalTee, Idx: 0},
		{Code: binary.OpI64Eqz},
		{Code: binary.OpBrIf, Idx: 1},
		{Code: binary.OpBr, Idx: 0},
		{Code: binary.OpEnd},
		{Code: binary.OpLocalGet, Idx: 0},
		{Code: binary.OpEnd},
	})
	result, err := runFunction(t, block, []uint64{5}, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), result)
}

func TestExplicitReturnPropagatesThroughNesting(t *testing.T) {
	// block { i64.const 42; return } -- return must unwind past the block
	// unchanged, not be treated as a plain End.
	block := compile(t, []binary.Op{
		{Code: binary.OpBlock, Block: binary.BlockType{Type: 0x7e}},
		{Code: binary.OpI64Const, I64: 42},
		{Code: binary.OpReturn},
		{Code: binary.OpUnreachable},
		{Code: binary.OpEnd},
		{Code: binary.OpEnd},
	})
	result, err := runFunction(t, block, nil, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(42), result)
}

func TestStackBalanceNoResult(t *testing.T) {
	block := compile(t, []binary.Op{
		{Code: binary.OpLocalGet, Idx: 0},
		{Code: binary.OpDrop},
		{Code: binary.OpEnd},
	})
	s := wasmstack.New()
	require.NoError(t, s.Push(5))
	prev, err := s.PushFrame(1, 0)
	require.NoError(t, err)
	l0 := uint64(5)
	act, err := block.Run(s, &l0, nil)
	require.NoError(t, err)
	require.Equal(t, ActionEnd, act.Kind)
	require.Equal(t, 0, s.FrameSize())
	s.PopFrame(prev)
}
