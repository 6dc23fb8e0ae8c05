package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueTypeName(t *testing.T) {
	tests := []struct {
		name     string
		input    ValueType
		expected string
	}{
		{name: "i32", input: ValueTypeI32, expected: "i32"},
		{name: "i64", input: ValueTypeI64, expected: "i64"},
		{name: "f32", input: ValueTypeF32, expected: "f32"},
		{name: "f64", input: ValueTypeF64, expected: "f64"},
		{name: "unknown", input: 0x00, expected: "unknown"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, ValueTypeName(tc.input))
		})
	}
}

func TestEncodeDecodeFloat(t *testing.T) {
	require.Equal(t, float32(1.5), DecodeF32(EncodeF32(1.5)))
	require.Equal(t, float64(-2.25), DecodeF64(EncodeF64(-2.25)))
}

func TestValueRoundTrip(t *testing.T) {
	require.Equal(t, int32(-42), I32Value(-42).I32())
	require.Equal(t, int64(123456789), I64Value(123456789).I64())
	require.Equal(t, float32(3.25), F32Value(3.25).F32())
	require.Equal(t, float64(6.5), F64Value(6.5).F64())

	v := I64Value(7)
	require.Equal(t, v, ValueFromRaw(ValueTypeI64, v.Raw()))
}

func TestValueString(t *testing.T) {
	require.Equal(t, "15", I32Value(15).String())
	require.Equal(t, "-3", I64Value(-3).String())
}

func TestValueWrongTypePanics(t *testing.T) {
	require.Panics(t, func() { I32Value(1).I64() })
}

func TestFunctionTypeString(t *testing.T) {
	ft := &FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeI64}, Results: []ValueType{ValueTypeI32}}
	require.Equal(t, "(i32, i64) -> i32", ft.String())

	void := &FunctionType{}
	require.Equal(t, "()", void.String())
	_, ok := void.ResultType()
	require.False(t, ok)
}
