// Package threaded implements the fetch/decode/execute loop over a flat,
// pre-resolved Instruction vector: the threaded-ISA execution back-end.
package threaded

import (
	"github.com/tinywasm/tinywasm/internal/isa"
	"github.com/tinywasm/tinywasm/internal/trap"
	"github.com/tinywasm/tinywasm/internal/wasmstack"
)

// Caller is the minimal host-call surface the loop needs: invoking
// another compiled function by registry address, which leaves its single
// optional return cell on the operand stack.
type Caller interface {
	CallByIndex(idx uint32, stack *wasmstack.Stack, l0 *uint64) error
}

// Run executes code against stack starting at PC 0, threading l0 as the
// local-0 register. It returns normally when it hits a KindReturn
// instruction or the end of the vector; any non-nil error is a *trap.Trap.
func Run(code []isa.Instruction, stack *wasmstack.Stack, l0 *uint64, caller Caller) error {
	pc := isa.PC(0)
	for int(pc) < len(code) {
		instr := code[pc]
		switch instr.Kind {
		case isa.KindUnreachable:
			return trap.New(trap.Unreachable)
		case isa.KindNop:
			pc++
			continue
		case isa.KindReturn:
			return nil
		case isa.KindBr:
			pc = instr.Target
			continue
		case isa.KindBrIfEqz:
			cond, err := stack.Pop()
			if err != nil {
				return err
			}
			if uint32(cond) == 0 {
				pc = instr.Target
				continue
			}
			pc++
			continue
		case isa.KindBrIfNez:
			cond, err := stack.Pop()
			if err != nil {
				return err
			}
			if uint32(cond) != 0 {
				pc = instr.Target
				continue
			}
			pc++
			continue
		case isa.KindBrTable:
			idx, err := stack.Pop()
			if err != nil {
				return err
			}
			i := uint32(idx)
			if i < uint32(len(instr.Table)) {
				pc = instr.Table[i]
			} else {
				pc = instr.Default
			}
			continue
		case isa.KindCall:
			if caller == nil {
				return trap.New(trap.InvalidFunctionAddr)
			}
			if err := caller.CallByIndex(instr.FuncIdx, stack, l0); err != nil {
				return err
			}
		case isa.KindDrop:
			if err := stack.Drop(1); err != nil {
				return err
			}
		case isa.KindSelect:
			cond, err := stack.Pop()
			if err != nil {
				return err
			}
			b, err := stack.Pop()
			if err != nil {
				return err
			}
			a, err := stack.Pop()
			if err != nil {
				return err
			}
			if uint32(cond) != 0 {
				if err := stack.Push(a); err != nil {
					return err
				}
			} else {
				if err := stack.Push(b); err != nil {
					return err
				}
			}
		case isa.KindGetLocal:
			if err := stack.Push(stack.GetLocalVal(instr.LocalIdx, l0)); err != nil {
				return err
			}
		case isa.KindSetLocal:
			v, err := stack.Pop()
			if err != nil {
				return err
			}
			stack.SetLocalVal(instr.LocalIdx, v, l0)
		case isa.KindTeeLocal:
			v, err := stack.Top()
			if err != nil {
				return err
			}
			stack.SetLocalVal(instr.LocalIdx, v, l0)
		case isa.KindConst:
			if err := stack.Push(instr.Const); err != nil {
				return err
			}
		case isa.KindUnop:
			v, err := stack.Pop()
			if err != nil {
				return err
			}
			if err := stack.Push(instr.Unop(v)); err != nil {
				return err
			}
		case isa.KindBinop:
			b, err := stack.Pop()
			if err != nil {
				return err
			}
			a, err := stack.Pop()
			if err != nil {
				return err
			}
			v, err := instr.Binop(a, b)
			if err != nil {
				return err
			}
			if err := stack.Push(v); err != nil {
				return err
			}
		case isa.KindTrap:
			return trap.New(trap.NotImplemented)
		}
		pc++
	}
	return nil
}
