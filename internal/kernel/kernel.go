// Package kernel implements the numeric and relational operator kernels
// shared by both execution back-ends. Every kernel takes raw 64-bit
// cells and returns a raw 64-bit cell (or a trap); width and signedness
// are applied by each function per the opcode it implements, never
// carried by the cell itself.
package kernel

import (
	"math"
	"math/bits"

	"github.com/tinywasm/tinywasm/internal/trap"
)

func cellToF32(a uint64) float32   { return math.Float32frombits(uint32(a)) }
func f32ToCell(f float32) uint64   { return uint64(math.Float32bits(f)) }
func cellToF64(a uint64) float64   { return math.Float64frombits(a) }
func f64ToCell(f float64) uint64   { return math.Float64bits(f) }

// I32Add through I32Xor: wrapping 32-bit integer binops, no trap.
func I32Add(a, b uint64) uint64 { return uint64(uint32(a) + uint32(b)) }
func I32Sub(a, b uint64) uint64 { return uint64(uint32(a) - uint32(b)) }
func I32Mul(a, b uint64) uint64 { return uint64(uint32(a) * uint32(b)) }
func I32And(a, b uint64) uint64 { return uint64(uint32(a) & uint32(b)) }
func I32Or(a, b uint64) uint64  { return uint64(uint32(a) | uint32(b)) }
func I32Xor(a, b uint64) uint64 { return uint64(uint32(a) ^ uint32(b)) }

// I64Add through I64Xor: wrapping 64-bit integer binops, no trap.
func I64Add(a, b uint64) uint64 { return a + b }
func I64Sub(a, b uint64) uint64 { return a - b }
func I64Mul(a, b uint64) uint64 { return a * b }
func I64And(a, b uint64) uint64 { return a & b }
func I64Or(a, b uint64) uint64  { return a | b }
func I64Xor(a, b uint64) uint64 { return a ^ b }

// Shift/rotate amounts are masked to the operand width: 0x1F for 32-bit,
// 0x3F for 64-bit. The source this was ported from masks both widths
// with 0x1F; that is a bug and is corrected here.
func I32Shl(a, b uint64) uint64  { return uint64(uint32(a) << (uint32(b) & 0x1F)) }
func I32ShrS(a, b uint64) uint64 { return uint64(uint32(int32(a) >> (uint32(b) & 0x1F))) }
func I32ShrU(a, b uint64) uint64 { return uint64(uint32(a) >> (uint32(b) & 0x1F)) }
func I32Rotl(a, b uint64) uint64 { return uint64(bits.RotateLeft32(uint32(a), int(uint32(b)&0x1F))) }
func I32Rotr(a, b uint64) uint64 { return uint64(bits.RotateLeft32(uint32(a), -int(uint32(b)&0x1F))) }

func I64Shl(a, b uint64) uint64  { return a << (b & 0x3F) }
func I64ShrS(a, b uint64) uint64 { return uint64(int64(a) >> (b & 0x3F)) }
func I64ShrU(a, b uint64) uint64 { return a >> (b & 0x3F) }
func I64Rotl(a, b uint64) uint64 { return bits.RotateLeft64(a, int(b&0x3F)) }
func I64Rotr(a, b uint64) uint64 { return bits.RotateLeft64(a, -int(b&0x3F)) }

// I32DivS divides two signed 32-bit integers, trapping DivisionByZero on
// a zero divisor and InvalidConversionToInt on INT_MIN / -1 overflow.
func I32DivS(a, b uint64) (uint64, error) {
	x, y := int32(a), int32(b)
	if y == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	if x == math.MinInt32 && y == -1 {
		return 0, trap.New(trap.InvalidConversionToInt)
	}
	return uint64(uint32(x / y)), nil
}

// I32DivU divides two unsigned 32-bit integers, trapping DivisionByZero
// on a zero divisor.
func I32DivU(a, b uint64) (uint64, error) {
	y := uint32(b)
	if y == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	return uint64(uint32(a) / y), nil
}

// I32RemS computes the signed 32-bit remainder, trapping DivisionByZero
// on a zero divisor. Unlike division, INT_MIN % -1 does not overflow
// (the result is always 0) so no InvalidConversionToInt trap applies.
func I32RemS(a, b uint64) (uint64, error) {
	x, y := int32(a), int32(b)
	if y == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	if x == math.MinInt32 && y == -1 {
		return 0, nil
	}
	return uint64(uint32(x % y)), nil
}

// I32RemU computes the unsigned 32-bit remainder, trapping DivisionByZero
// on a zero divisor.
func I32RemU(a, b uint64) (uint64, error) {
	y := uint32(b)
	if y == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	return uint64(uint32(a) % y), nil
}

// I64DivS is the 64-bit counterpart of I32DivS.
func I64DivS(a, b uint64) (uint64, error) {
	x, y := int64(a), int64(b)
	if y == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	if x == math.MinInt64 && y == -1 {
		return 0, trap.New(trap.InvalidConversionToInt)
	}
	return uint64(x / y), nil
}

// I64DivU is the 64-bit counterpart of I32DivU.
func I64DivU(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	return a / b, nil
}

// I64RemS is the 64-bit counterpart of I32RemS.
func I64RemS(a, b uint64) (uint64, error) {
	x, y := int64(a), int64(b)
	if y == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	if x == math.MinInt64 && y == -1 {
		return 0, nil
	}
	return uint64(x % y), nil
}

// I64RemU is the 64-bit counterpart of I32RemU.
func I64RemU(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, trap.New(trap.DivisionByZero)
	}
	return a % b, nil
}

// Clz/ctz/popcnt delegate to math/bits, the idiomatic Go replacement for
// hand-rolled bit-scan loops.
func I32Clz(a uint64) uint64    { return uint64(bits.LeadingZeros32(uint32(a))) }
func I32Ctz(a uint64) uint64    { return uint64(bits.TrailingZeros32(uint32(a))) }
func I32Popcnt(a uint64) uint64 { return uint64(bits.OnesCount32(uint32(a))) }
func I64Clz(a uint64) uint64    { return uint64(bits.LeadingZeros64(a)) }
func I64Ctz(a uint64) uint64    { return uint64(bits.TrailingZeros64(a)) }
func I64Popcnt(a uint64) uint64 { return uint64(bits.OnesCount64(a)) }

func boolCell(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// I32Eqz and I64Eqz return 1 if the argument equals zero, else 0.
func I32Eqz(a uint64) uint64 { return boolCell(uint32(a) == 0) }
func I64Eqz(a uint64) uint64 { return boolCell(a == 0) }

// 32-bit relational operators. Each returns 0 or 1, pushed as a 64-bit
// cell the way a Wasm i32 result is stored on the stack.
func I32Eq(a, b uint64) uint64   { return boolCell(uint32(a) == uint32(b)) }
func I32Ne(a, b uint64) uint64   { return boolCell(uint32(a) != uint32(b)) }
func I32LtS(a, b uint64) uint64  { return boolCell(int32(a) < int32(b)) }
func I32LtU(a, b uint64) uint64  { return boolCell(uint32(a) < uint32(b)) }
func I32GtS(a, b uint64) uint64  { return boolCell(int32(a) > int32(b)) }
func I32GtU(a, b uint64) uint64  { return boolCell(uint32(a) > uint32(b)) }
func I32LeS(a, b uint64) uint64  { return boolCell(int32(a) <= int32(b)) }
func I32LeU(a, b uint64) uint64  { return boolCell(uint32(a) <= uint32(b)) }
func I32GeS(a, b uint64) uint64  { return boolCell(int32(a) >= int32(b)) }
func I32GeU(a, b uint64) uint64  { return boolCell(uint32(a) >= uint32(b)) }

// 64-bit relational operators, analogous to the 32-bit set above.
func I64Eq(a, b uint64) uint64  { return boolCell(a == b) }
func I64Ne(a, b uint64) uint64  { return boolCell(a != b) }
func I64LtS(a, b uint64) uint64 { return boolCell(int64(a) < int64(b)) }
func I64LtU(a, b uint64) uint64 { return boolCell(a < b) }
func I64GtS(a, b uint64) uint64 { return boolCell(int64(a) > int64(b)) }
func I64GtU(a, b uint64) uint64 { return boolCell(a > b) }
func I64LeS(a, b uint64) uint64 { return boolCell(int64(a) <= int64(b)) }
func I64LeU(a, b uint64) uint64 { return boolCell(a <= b) }
func I64GeS(a, b uint64) uint64 { return boolCell(int64(a) >= int64(b)) }
func I64GeU(a, b uint64) uint64 { return boolCell(a >= b) }

// F32Add, F32Sub, and F32Mul are the only float operators implemented;
// every other float opcode is a NotImplemented stub (see NotImplemented).
func F32Add(a, b uint64) uint64 { return f32ToCell(cellToF32(a) + cellToF32(b)) }
func F32Sub(a, b uint64) uint64 { return f32ToCell(cellToF32(a) - cellToF32(b)) }
func F32Mul(a, b uint64) uint64 { return f32ToCell(cellToF32(a) * cellToF32(b)) }

// F64Add, F64Sub, and F64Mul are the 64-bit counterparts of the F32 set.
func F64Add(a, b uint64) uint64 { return f64ToCell(cellToF64(a) + cellToF64(b)) }
func F64Sub(a, b uint64) uint64 { return f64ToCell(cellToF64(a) - cellToF64(b)) }
func F64Mul(a, b uint64) uint64 { return f64ToCell(cellToF64(a) * cellToF64(b)) }

// I32WrapI64 truncates a 64-bit integer to its low 32 bits.
func I32WrapI64(a uint64) uint64 { return uint64(uint32(a)) }

// I64ExtendSI32 and I64ExtendUI32 widen a 32-bit integer to 64 bits,
// sign- or zero-extending respectively.
func I64ExtendSI32(a uint64) uint64 { return uint64(int64(int32(a))) }
func I64ExtendUI32(a uint64) uint64 { return uint64(uint32(a)) }

// NotImplemented builds the trap.NotImplemented trap that every
// declared-but-unimplemented float opcode (div, min, max, copysign, sqrt,
// the trunc/convert family, compares) and every memory/table/global
// opcode produces. Both engines construct that trap directly (KindTrap in
// the threaded loop, the fallback thunk in the closure compiler) rather
// than calling this helper.
func NotImplemented() error { return trap.New(trap.NotImplemented) }
