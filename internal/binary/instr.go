package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tinywasm/tinywasm/internal/leb128"
)

// Op is one decoded source instruction: an opcode plus whichever
// immediate field(s) that opcode carries. Unused fields are simply
// zero; this mirrors the payload-per-variant shape of the Rust
// Instruction enum this format is ported from, flattened into one
// struct since Go has no tagged union.
type Op struct {
	Code Opcode

	Block BlockType // block / loop / if

	Idx uint32 // local/global/func/type index, or br/br_if depth

	I32 int32
	I64 int64
	F32 uint64 // raw bits
	F64 uint64 // raw bits

	MemAlign  uint32
	MemOffset uint32

	Table   []uint32 // br_table targets
	Default uint32   // br_table default
}

// DecodeFunctionBody decodes a function's raw instruction bytes (the
// contents of a code-section entry, after the locals vector) into a
// flat Op slice, stopping at the outermost `end`.
func DecodeFunctionBody(body []byte) ([]Op, error) {
	r := bytes.NewReader(body)
	var ops []Op
	depth := 0
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return nil, err
		}
		op := Op{Code: Opcode(b)}
		switch op.Code {
		case OpBlock, OpLoop, OpIf:
			bt, err := decodeBlockType(r)
			if err != nil {
				return nil, err
			}
			op.Block = bt
			depth++
		case OpElse:
			// no immediate; depth unchanged (still inside the same block)
		case OpEnd:
			if depth == 0 {
				ops = append(ops, op)
				return ops, nil
			}
			depth--
		case OpBr, OpBrIf:
			v, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			op.Idx = v
		case OpBrTable:
			count, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			table := make([]uint32, count)
			for i := range table {
				v, _, err := leb128.DecodeUint32(r)
				if err != nil {
					return nil, err
				}
				table[i] = v
			}
			def, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			op.Table = table
			op.Default = def
		case OpCall, OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
			v, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			op.Idx = v
		case OpCallIndirect:
			v, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			op.Idx = v
			if _, err := r.ReadByte(); err != nil { // reserved
				return nil, err
			}
		case OpMemorySize, OpMemoryGrow:
			if _, err := r.ReadByte(); err != nil { // reserved
				return nil, err
			}
		case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
			OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
			OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
			OpI32Store, OpI64Store, OpF32Store, OpF64Store,
			OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
			align, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			offset, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, err
			}
			op.MemAlign, op.MemOffset = align, offset
		case OpI32Const:
			v, _, err := leb128.DecodeInt32(r)
			if err != nil {
				return nil, err
			}
			op.I32 = v
		case OpI64Const:
			v, _, err := leb128.DecodeInt64(r)
			if err != nil {
				return nil, err
			}
			op.I64 = v
		case OpF32Const:
			var buf [4]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			op.F32 = uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24
		case OpF64Const:
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			var v uint64
			for i := 7; i >= 0; i-- {
				v = v<<8 | uint64(buf[i])
			}
			op.F64 = v
		default:
			// Unreachable, Nop, Return, Drop, Select, and every bare
			// numeric/comparison/conversion/reinterpret opcode carry no
			// immediate.
		}
		ops = append(ops, op)
	}
}

func decodeBlockType(r io.ByteReader) (BlockType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return BlockType{}, err
	}
	if b == 0x40 {
		return BlockType{Void: true}, nil
	}
	switch b {
	case 0x7f, 0x7e, 0x7d, 0x7c:
		return BlockType{Type: b}, nil
	}
	return BlockType{}, fmt.Errorf("binary: unsupported block type byte %#x", b)
}
