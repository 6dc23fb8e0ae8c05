// Package api includes constants and conversions used by both end-users and
// internal implementations.
package api

import (
	"fmt"
	"math"
)

// ValueType describes a numeric type used in WebAssembly 1.0 (MVP). Function
// parameters, locals, and results are only definable as a value type.
//
// The following describes how to convert between Wasm and Golang types:
//
//   - ValueTypeI32 - uint64(uint32,int32)
//   - ValueTypeI64 - uint64(int64)
//   - ValueTypeF32 - EncodeF32 DecodeF32 from float32
//   - ValueTypeF64 - EncodeF64 DecodeF64 from float64
//
// Note: This is a type alias as it is easier to encode and decode in the
// binary format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the type name of the given ValueType as a string.
// These type names match the names used in the WebAssembly text format.
//
// Note: This returns "unknown", if an undefined ValueType value is passed.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// EncodeI32 encodes the input as a ValueTypeI32.
func EncodeI32(input int32) uint64 {
	return uint64(uint32(input))
}

// EncodeI64 encodes the input as a ValueTypeI64.
func EncodeI64(input int64) uint64 {
	return uint64(input)
}

// EncodeF32 encodes the input as a ValueTypeF32.
//
// See DecodeF32
func EncodeF32(input float32) uint64 {
	return uint64(math.Float32bits(input))
}

// DecodeF32 decodes the input as a ValueTypeF32.
//
// See EncodeF32
func DecodeF32(input uint64) float32 {
	return math.Float32frombits(uint32(input))
}

// EncodeF64 encodes the input as a ValueTypeF64.
//
// See EncodeF32
func EncodeF64(input float64) uint64 {
	return math.Float64bits(input)
}

// DecodeF64 decodes the input as a ValueTypeF64.
//
// See EncodeF64
func DecodeF64(input uint64) float64 {
	return math.Float64frombits(input)
}

// Value is a tagged WebAssembly value of one of the four MVP numeric types.
// Unlike the untagged 64-bit cells used internally by the engines, Value
// carries its type so that host code and the CLI can format and convert it
// without additional context.
type Value struct {
	Type ValueType
	lo   uint64
}

// I32Value constructs a tagged 32-bit integer Value.
func I32Value(v int32) Value { return Value{Type: ValueTypeI32, lo: EncodeI32(v)} }

// I64Value constructs a tagged 64-bit integer Value.
func I64Value(v int64) Value { return Value{Type: ValueTypeI64, lo: EncodeI64(v)} }

// F32Value constructs a tagged 32-bit float Value.
func F32Value(v float32) Value { return Value{Type: ValueTypeF32, lo: EncodeF32(v)} }

// F64Value constructs a tagged 64-bit float Value.
func F64Value(v float64) Value { return Value{Type: ValueTypeF64, lo: EncodeF64(v)} }

// I32 returns the value as an int32. Panics if Type is not ValueTypeI32.
func (v Value) I32() int32 {
	v.mustBe(ValueTypeI32)
	return int32(uint32(v.lo))
}

// I64 returns the value as an int64. Panics if Type is not ValueTypeI64.
func (v Value) I64() int64 {
	v.mustBe(ValueTypeI64)
	return int64(v.lo)
}

// F32 returns the value as a float32. Panics if Type is not ValueTypeF32.
func (v Value) F32() float32 {
	v.mustBe(ValueTypeF32)
	return DecodeF32(v.lo)
}

// F64 returns the value as a float64. Panics if Type is not ValueTypeF64.
func (v Value) F64() float64 {
	v.mustBe(ValueTypeF64)
	return DecodeF64(v.lo)
}

func (v Value) mustBe(t ValueType) {
	if v.Type != t {
		panic(fmt.Sprintf("value is %s, not %s", ValueTypeName(v.Type), ValueTypeName(t)))
	}
}

// Raw returns the value reinterpreted as a raw 64-bit cell, the same bit
// pattern an internal StackValue carries for this type.
func (v Value) Raw() uint64 { return v.lo }

// ValueFromRaw converts a raw 64-bit cell into a tagged Value of the given
// type. It is the inverse of Value.Raw.
func ValueFromRaw(t ValueType, raw uint64) Value { return Value{Type: t, lo: raw} }

// String implements fmt.Stringer, used for CLI output.
func (v Value) String() string {
	switch v.Type {
	case ValueTypeI32:
		return fmt.Sprintf("%d", v.I32())
	case ValueTypeI64:
		return fmt.Sprintf("%d", v.I64())
	case ValueTypeF32:
		return fmt.Sprintf("%g", v.F32())
	case ValueTypeF64:
		return fmt.Sprintf("%g", v.F64())
	default:
		return fmt.Sprintf("<unknown value type %#x>", v.Type)
	}
}

// FunctionType is an ordered parameter-type sequence and an optional single
// return type, matching the WebAssembly MVP restriction of at most one
// result per function.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType // len(Results) is 0 or 1.
}

// ParamCount returns the number of parameters this function type declares.
func (ft *FunctionType) ParamCount() int { return len(ft.Params) }

// ResultType returns the function's single result type and true, or
// (0, false) if the function returns no value.
func (ft *FunctionType) ResultType() (ValueType, bool) {
	if len(ft.Results) == 0 {
		return 0, false
	}
	return ft.Results[0], true
}

// String formats the signature the way the WebAssembly text format would,
// e.g. "(i32, i64) -> i32".
func (ft *FunctionType) String() string {
	s := "("
	for i, p := range ft.Params {
		if i > 0 {
			s += ", "
		}
		s += ValueTypeName(p)
	}
	s += ")"
	if rt, ok := ft.ResultType(); ok {
		s += " -> " + ValueTypeName(rt)
	}
	return s
}
