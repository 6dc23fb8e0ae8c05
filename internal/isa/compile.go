package isa

import (
	"github.com/tinywasm/tinywasm/internal/binary"
	"github.com/tinywasm/tinywasm/internal/kernel"
)

// CompileFunction translates a decoded function body into a flat,
// threaded Instruction vector with every branch target pre-resolved to
// an absolute PC.
func CompileFunction(body []binary.Op) ([]Instruction, error) {
	s := newSink()
	s.pushBlock(block{kind: blockPlain, endLabel: s.newLabel()})

	for _, op := range body {
		if err := compileOp(s, op); err != nil {
			return nil, err
		}
	}
	return s.code, nil
}

func compileOp(s *sink, op binary.Op) error {
	switch op.Code {
	case binary.OpBlock:
		s.pushBlock(block{kind: blockPlain, endLabel: s.newLabel()})
	case binary.OpLoop:
		head := s.newLabel()
		s.resolveLabel(head) // loop branches jump backward to here
		s.pushBlock(block{kind: blockLoop, head: head})
	case binary.OpIf:
		ifNot := s.newLabel()
		endLabel := s.newLabel()
		idx := s.emit(Instruction{Kind: KindBrIfEqz})
		s.code[idx].Target = s.refLabel(ifNot, idx, relocTarget, 0)
		s.pushBlock(block{kind: blockIf, endLabel: endLabel, ifNot: ifNot})
	case binary.OpElse:
		b := s.popBlock()
		idx := s.emit(Instruction{Kind: KindBr})
		s.code[idx].Target = s.refLabel(b.endLabel, idx, relocTarget, 0)
		s.resolveLabel(b.ifNot)
		s.pushBlock(block{kind: blockElse, endLabel: b.endLabel})
	case binary.OpEnd:
		b := s.popBlock()
		switch b.kind {
		case blockIf:
			s.resolveLabel(b.ifNot)
			s.resolveLabel(b.endLabel)
		case blockElse, blockPlain:
			s.resolveLabel(b.endLabel)
		case blockLoop:
			// nothing to resolve: head was resolved when the loop opened
			// and loops have no implicit end label.
		}
		if len(s.blocks) == 0 {
			s.emit(Instruction{Kind: KindReturn})
		}
	case binary.OpBr:
		emitBranch(s, KindBr, op.Idx)
	case binary.OpBrIf:
		emitBranch(s, KindBrIfNez, op.Idx)
	case binary.OpBrTable:
		idx := s.emit(Instruction{Kind: KindBrTable, Table: make([]PC, len(op.Table))})
		for i, depth := range op.Table {
			dest := s.refBlock(depth).brDestination()
			s.code[idx].Table[i] = s.refLabel(dest, idx, relocTableEntry, i)
		}
		defDest := s.refBlock(op.Default).brDestination()
		s.code[idx].Default = s.refLabel(defDest, idx, relocDefault, 0)
	case binary.OpReturn:
		s.emit(Instruction{Kind: KindReturn})
	case binary.OpUnreachable:
		s.emit(Instruction{Kind: KindUnreachable})
	case binary.OpNop:
		s.emit(Instruction{Kind: KindNop})
	case binary.OpCall:
		s.emit(Instruction{Kind: KindCall, FuncIdx: op.Idx})
	case binary.OpDrop:
		s.emit(Instruction{Kind: KindDrop})
	case binary.OpSelect:
		s.emit(Instruction{Kind: KindSelect})
	case binary.OpLocalGet:
		s.emit(Instruction{Kind: KindGetLocal, LocalIdx: int(op.Idx)})
	case binary.OpLocalSet:
		s.emit(Instruction{Kind: KindSetLocal, LocalIdx: int(op.Idx)})
	case binary.OpLocalTee:
		s.emit(Instruction{Kind: KindTeeLocal, LocalIdx: int(op.Idx)})
	case binary.OpI32Const:
		s.emit(Instruction{Kind: KindConst, Const: uint64(uint32(op.I32))})
	case binary.OpI64Const:
		s.emit(Instruction{Kind: KindConst, Const: uint64(op.I64)})
	case binary.OpF32Const:
		s.emit(Instruction{Kind: KindConst, Const: op.F32})
	case binary.OpF64Const:
		s.emit(Instruction{Kind: KindConst, Const: op.F64})
	default:
		if un, ok := unops[op.Code]; ok {
			s.emit(Instruction{Kind: KindUnop, Unop: un})
			return nil
		}
		if bin, ok := binops[op.Code]; ok {
			s.emit(Instruction{Kind: KindBinop, Binop: bin})
			return nil
		}
		// Memory, global, table, and unimplemented float opcodes:
		// declared but not executed, matching the spec's
		// external-collaborator and stub boundaries.
		s.emit(Instruction{Kind: KindTrap})
	}
	return nil
}

// emitBranch emits a Br/BrIfNez targeting the block `depth` levels up
// from the innermost open block, resolving through the label table.
func emitBranch(s *sink, kind Kind, depth uint32) {
	dest := s.refBlock(depth).brDestination()
	idx := s.emit(Instruction{Kind: kind})
	s.code[idx].Target = s.refLabel(dest, idx, relocTarget, 0)
}

func wrapBinop(f func(a, b uint64) uint64) func(a, b uint64) (uint64, error) {
	return func(a, b uint64) (uint64, error) { return f(a, b), nil }
}

func wrapTrapBinop(f func(a, b uint64) (uint64, error)) func(a, b uint64) (uint64, error) {
	return f
}

var unops = map[binary.Opcode]func(uint64) uint64{
	binary.OpI32Eqz:    kernel.I32Eqz,
	binary.OpI64Eqz:    kernel.I64Eqz,
	binary.OpI32Clz:    kernel.I32Clz,
	binary.OpI32Ctz:    kernel.I32Ctz,
	binary.OpI32Popcnt: kernel.I32Popcnt,
	binary.OpI64Clz:    kernel.I64Clz,
	binary.OpI64Ctz:    kernel.I64Ctz,
	binary.OpI64Popcnt: kernel.I64Popcnt,

	binary.OpI32WrapI64:    kernel.I32WrapI64,
	binary.OpI64ExtendSI32: kernel.I64ExtendSI32,
	binary.OpI64ExtendUI32: kernel.I64ExtendUI32,
}

var binops = map[binary.Opcode]func(a, b uint64) (uint64, error){
	binary.OpI32Add: wrapBinop(kernel.I32Add),
	binary.OpI32Sub: wrapBinop(kernel.I32Sub),
	binary.OpI32Mul: wrapBinop(kernel.I32Mul),
	binary.OpI32And: wrapBinop(kernel.I32And),
	binary.OpI32Or:  wrapBinop(kernel.I32Or),
	binary.OpI32Xor: wrapBinop(kernel.I32Xor),
	binary.OpI32Shl: wrapBinop(kernel.I32Shl),
	binary.OpI32ShrS: wrapBinop(kernel.I32ShrS),
	binary.OpI32ShrU: wrapBinop(kernel.I32ShrU),
	binary.OpI32Rotl: wrapBinop(kernel.I32Rotl),
	binary.OpI32Rotr: wrapBinop(kernel.I32Rotr),
	binary.OpI32DivS: wrapTrapBinop(kernel.I32DivS),
	binary.OpI32DivU: wrapTrapBinop(kernel.I32DivU),
	binary.OpI32RemS: wrapTrapBinop(kernel.I32RemS),
	binary.OpI32RemU: wrapTrapBinop(kernel.I32RemU),
	binary.OpI32Eq:  wrapBinop(kernel.I32Eq),
	binary.OpI32Ne:  wrapBinop(kernel.I32Ne),
	binary.OpI32LtS: wrapBinop(kernel.I32LtS),
	binary.OpI32LtU: wrapBinop(kernel.I32LtU),
	binary.OpI32GtS: wrapBinop(kernel.I32GtS),
	binary.OpI32GtU: wrapBinop(kernel.I32GtU),
	binary.OpI32LeS: wrapBinop(kernel.I32LeS),
	binary.OpI32LeU: wrapBinop(kernel.I32LeU),
	binary.OpI32GeS: wrapBinop(kernel.I32GeS),
	binary.OpI32GeU: wrapBinop(kernel.I32GeU),

	binary.OpI64Add: wrapBinop(kernel.I64Add),
	binary.OpI64Sub: wrapBinop(kernel.I64Sub),
	binary.OpI64Mul: wrapBinop(kernel.I64Mul),
	binary.OpI64And: wrapBinop(kernel.I64And),
	binary.OpI64Or:  wrapBinop(kernel.I64Or),
	binary.OpI64Xor: wrapBinop(kernel.I64Xor),
	binary.OpI64Shl: wrapBinop(kernel.I64Shl),
	binary.OpI64ShrS: wrapBinop(kernel.I64ShrS),
	binary.OpI64ShrU: wrapBinop(kernel.I64ShrU),
	binary.OpI64Rotl: wrapBinop(kernel.I64Rotl),
	binary.OpI64Rotr: wrapBinop(kernel.I64Rotr),
	binary.OpI64DivS: wrapTrapBinop(kernel.I64DivS),
	binary.OpI64DivU: wrapTrapBinop(kernel.I64DivU),
	binary.OpI64RemS: wrapTrapBinop(kernel.I64RemS),
	binary.OpI64RemU: wrapTrapBinop(kernel.I64RemU),
	binary.OpI64Eq:  wrapBinop(kernel.I64Eq),
	binary.OpI64Ne:  wrapBinop(kernel.I64Ne),
	binary.OpI64LtS: wrapBinop(kernel.I64LtS),
	binary.OpI64LtU: wrapBinop(kernel.I64LtU),
	binary.OpI64GtS: wrapBinop(kernel.I64GtS),
	binary.OpI64GtU: wrapBinop(kernel.I64GtU),
	binary.OpI64LeS: wrapBinop(kernel.I64LeS),
	binary.OpI64LeU: wrapBinop(kernel.I64LeU),
	binary.OpI64GeS: wrapBinop(kernel.I64GeS),
	binary.OpI64GeU: wrapBinop(kernel.I64GeU),

	binary.OpF32Add: wrapBinop(kernel.F32Add),
	binary.OpF32Sub: wrapBinop(kernel.F32Sub),
	binary.OpF32Mul: wrapBinop(kernel.F32Mul),
	binary.OpF64Add: wrapBinop(kernel.F64Add),
	binary.OpF64Sub: wrapBinop(kernel.F64Sub),
	binary.OpF64Mul: wrapBinop(kernel.F64Mul),
}
