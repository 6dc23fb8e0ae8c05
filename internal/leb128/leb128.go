// Package leb128 implements the variable-length integer encoding used
// throughout the WebAssembly binary format (section sizes, indices, and
// const-expression immediates).
package leb128

import (
	"fmt"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = 5
	maxVarintLen64 = 10
)

// EncodeUint32 encodes v as an unsigned LEB128 varint.
func EncodeUint32(v uint32) []byte {
	return encodeUint64(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128 varint.
func EncodeUint64(v uint64) []byte {
	return encodeUint64(v)
}

func encodeUint64(v uint64) []byte {
	out := make([]byte, 0, maxVarintLen64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

// EncodeInt32 encodes v as a signed LEB128 varint.
func EncodeInt32(v int32) []byte {
	return encodeInt64(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128 varint.
func EncodeInt64(v int64) []byte {
	return encodeInt64(v)
}

func encodeInt64(v int64) []byte {
	out := make([]byte, 0, maxVarintLen64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// LoadUint32 decodes an unsigned 32-bit LEB128 varint from the start of buf,
// returning the value and the number of bytes consumed.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	v, n, err := loadVarUint(buf, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned 64-bit LEB128 varint from the start of buf.
func LoadUint64(buf []byte) (ret uint64, bytesRead uint64, err error) {
	return loadVarUint(buf, 64)
}

func loadVarUint(buf []byte, size int) (ret uint64, bytesRead uint64, err error) {
	var shift int
	var maxBytes int
	if size == 32 {
		maxBytes = maxVarintLen32
	} else {
		maxBytes = maxVarintLen64
	}
	for i := 0; ; i++ {
		if i == maxBytes {
			return 0, 0, fmt.Errorf("leb128: invalid %d-bit unsigned integer: too many bytes", size)
		}
		if i >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[i]
		if i == maxBytes-1 && size-shift < 7 {
			// The final byte must not set bits beyond the target width.
			mask := byte((uint64(1) << uint(size-shift)) - 1)
			if b&^mask&0x7f != 0 {
				return 0, 0, fmt.Errorf("leb128: invalid %d-bit unsigned integer: overflow", size)
			}
		}
		ret |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			return ret, uint64(i + 1), nil
		}
	}
}

// LoadInt32 decodes a signed 32-bit LEB128 varint from the start of buf.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	v, n, err := loadVarInt(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed 64-bit LEB128 varint from the start of buf.
func LoadInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	return loadVarInt(buf, 64)
}

func loadVarInt(buf []byte, size int) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	maxBytes := maxVarintLen64
	if size == 32 {
		maxBytes = maxVarintLen32
	}
	i := 0
	for {
		if i == maxBytes {
			return 0, 0, fmt.Errorf("leb128: invalid %d-bit signed integer: too many bytes", size)
		}
		if i >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b = buf[i]
		ret |= int64(b&0x7f) << shift
		shift += 7
		i++
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		ret |= -1 << shift
	}
	if size < 64 {
		// Overflow check: sign-extending back to int64 must recover ret exactly
		// within the target width.
		if size == 32 {
			if ret != int64(int32(ret)) {
				return 0, 0, fmt.Errorf("leb128: invalid 32-bit signed integer: overflow")
			}
		}
	}
	return ret, uint64(i), nil
}

// DecodeUint32 decodes an unsigned 32-bit LEB128 varint, reading one byte at
// a time from r.
func DecodeUint32(r io.ByteReader) (ret uint32, bytesRead uint64, err error) {
	v, n, err := decodeVarUintReader(r, 32)
	return uint32(v), n, err
}

// DecodeInt32 decodes a signed 32-bit LEB128 varint, reading one byte at a
// time from r.
func DecodeInt32(r io.ByteReader) (ret int32, bytesRead uint64, err error) {
	v, n, err := decodeVarIntReader(r, 32)
	return int32(v), n, err
}

// DecodeInt64 decodes a signed 64-bit LEB128 varint, reading one byte at a
// time from r.
func DecodeInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	return decodeVarIntReader(r, 64)
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128 varint (the width used by
// WebAssembly block types / s33 const expressions) sign-extended into an
// int64.
func DecodeInt33AsInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	return decodeVarIntReader(r, 33)
}

func decodeVarUintReader(r io.ByteReader, size int) (ret uint64, bytesRead uint64, err error) {
	var shift int
	maxBytes := maxVarintLen64
	if size == 32 {
		maxBytes = maxVarintLen32
	}
	for i := 0; ; i++ {
		if i == maxBytes {
			return 0, 0, fmt.Errorf("leb128: invalid %d-bit unsigned integer: too many bytes", size)
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		ret |= uint64(b&0x7f) << shift
		shift += 7
		bytesRead++
		if b&0x80 == 0 {
			return ret, bytesRead, nil
		}
	}
}

func decodeVarIntReader(r io.ByteReader, size int) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	maxBytes := maxVarintLen64
	if size <= 33 {
		maxBytes = maxVarintLen33
	}
	for {
		if int(bytesRead) == maxBytes {
			return 0, 0, fmt.Errorf("leb128: invalid %d-bit signed integer: too many bytes", size)
		}
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		ret |= int64(b&0x7f) << shift
		shift += 7
		bytesRead++
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		ret |= -1 << shift
	}
	return ret, bytesRead, nil
}
