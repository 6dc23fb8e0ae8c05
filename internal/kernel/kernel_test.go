package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tinywasm/tinywasm/internal/trap"
)

func u32(v int32) uint64 { return uint64(uint32(v)) }
func u64(v int64) uint64 { return uint64(v) }

func TestWrapAround(t *testing.T) {
	require.Equal(t, u32(math.MinInt32), I32Add(u32(math.MaxInt32), u32(1)))
	require.Equal(t, u64(math.MinInt64), I64Add(u64(math.MaxInt64), u64(1)))
}

func TestArithmeticIdentities(t *testing.T) {
	for _, x := range []int32{0, 1, -1, 42, math.MinInt32, math.MaxInt32} {
		require.Equal(t, u32(0), I32Add(u32(x), u32(-x)), "add(x,neg(x))==0 for %d", x)
		require.Equal(t, u32(0), I32Sub(u32(x), u32(x)), "sub(x,x)==0 for %d", x)
		require.Equal(t, u32(x), I32Mul(u32(x), u32(1)), "mul(x,1)==x for %d", x)
		require.Equal(t, u32(x), I32And(u32(x), u32(x)), "and(x,x)==x for %d", x)
		require.Equal(t, u32(x), I32Or(u32(x), u32(0)), "or(x,0)==x for %d", x)
		require.Equal(t, u32(0), I32Xor(u32(x), u32(x)), "xor(x,x)==0 for %d", x)
	}
}

func TestShiftMaskWraps(t *testing.T) {
	require.Equal(t, I32Shl(u32(1), u32(1)), I32Shl(u32(1), u32(1+32)))
	require.Equal(t, I64Shl(u64(1), u64(1)), I64Shl(u64(1), u64(1+64)))
}

func TestShift64UsesWideMask(t *testing.T) {
	// A 64-bit shift masks its amount with 0x3F: 64 wraps to 0 (a no-op),
	// while 32 really shifts by 32. The source this is grounded on masks
	// both widths with 0x1F, which would reduce 32 to 0 and leave 1 here.
	require.Equal(t, u64(1), I64Shl(u64(1), u64(64)))
	require.Equal(t, uint64(1)<<32, I64Shl(u64(1), u64(32)))
}

func TestDivisionTraps(t *testing.T) {
	_, err := I32DivS(u32(10), u32(0))
	require.Equal(t, trap.DivisionByZero, err.(*trap.Trap).Kind)

	_, err = I32DivS(u32(math.MinInt32), u32(-1))
	require.Equal(t, trap.InvalidConversionToInt, err.(*trap.Trap).Kind)

	_, err = I64DivS(u64(math.MinInt64), u64(-1))
	require.Equal(t, trap.InvalidConversionToInt, err.(*trap.Trap).Kind)

	_, err = I64DivU(u64(10), u64(0))
	require.Equal(t, trap.DivisionByZero, err.(*trap.Trap).Kind)
}

func TestRemInt32MinByMinusOneDoesNotTrap(t *testing.T) {
	v, err := I32RemS(u32(math.MinInt32), u32(-1))
	require.NoError(t, err)
	require.Equal(t, u32(0), v)
}

func TestEqz(t *testing.T) {
	require.Equal(t, uint64(1), I32Eqz(u32(0)))
	require.Equal(t, uint64(0), I32Eqz(u32(1)))
}

func TestRelational(t *testing.T) {
	require.Equal(t, uint64(1), I32LtS(u32(-1), u32(1)))
	require.Equal(t, uint64(0), I32LtU(u32(-1), u32(1))) // -1 as u32 is huge
}

func TestBitCounts(t *testing.T) {
	require.Equal(t, uint64(31), I32Clz(u32(1)))
	require.Equal(t, uint64(0), I32Ctz(u32(1)))
	require.Equal(t, uint64(1), I32Popcnt(u32(1)))
}

func TestFloatArithmetic(t *testing.T) {
	require.Equal(t, float32(3), cellToF32(F32Add(f32ToCell(1), f32ToCell(2))))
	require.Equal(t, float64(3), cellToF64(F64Add(f64ToCell(1), f64ToCell(2))))
}

func TestIntegerConversions(t *testing.T) {
	require.Equal(t, u32(-1), I32WrapI64(u64(-1)))
	require.Equal(t, uint64(1), I32WrapI64(uint64(1)+1<<40))

	require.Equal(t, u64(-1), I64ExtendSI32(u32(-1)))
	require.Equal(t, u64(42), I64ExtendSI32(u32(42)))

	require.Equal(t, uint64(math.MaxUint32), I64ExtendUI32(u32(-1)))
	require.Equal(t, u64(42), I64ExtendUI32(u32(42)))
}
