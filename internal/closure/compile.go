package closure

import (
	"fmt"

	"github.com/tinywasm/tinywasm/internal/binary"
	"github.com/tinywasm/tinywasm/internal/kernel"
	"github.com/tinywasm/tinywasm/internal/trap"
	"github.com/tinywasm/tinywasm/internal/wasmstack"
)

// DefaultMaxBlockDepth is the nesting limit a Compiler enforces unless
// configured otherwise. The translation this is ported from hard-codes
// 4; this implementation makes it configurable per spec.md §4.3.
const DefaultMaxBlockDepth = 256

// Compiler translates a decoded function body into a tree of nested
// Blocks. unops/binops select the kernel used for each arithmetic or
// comparison opcode, the same lookup tables the threaded back-end uses.
type Compiler struct {
	MaxBlockDepth int
}

// NewCompiler returns a Compiler with DefaultMaxBlockDepth.
func NewCompiler() *Compiler { return &Compiler{MaxBlockDepth: DefaultMaxBlockDepth} }

// CompileFunction translates body into the function's root Block.
func (c *Compiler) CompileFunction(body []binary.Op) (*Block, error) {
	maxDepth := c.MaxBlockDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxBlockDepth
	}
	tr := &translator{maxDepth: maxDepth}
	block, _, rest, err := tr.compileBlock(KindBlock, body, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("closure: trailing instructions after function end")
	}
	return block, nil
}

type translator struct {
	maxDepth int
}

// compileBlock consumes ops belonging to one nested scope starting at
// depth, stopping at (and consuming) the matching `end`/`else`. It
// returns the compiled Block, the terminator that closed it (OpEnd or
// OpElse), and whatever ops remain after the terminator.
func (tr *translator) compileBlock(kind BlockKind, ops []binary.Op, depth int) (*Block, binary.Opcode, []binary.Op, error) {
	if depth > tr.maxDepth {
		return nil, 0, nil, fmt.Errorf("closure: block nesting exceeds max depth %d", tr.maxDepth)
	}
	b := &Block{Kind: kind}
	for len(ops) > 0 {
		op := ops[0]
		ops = ops[1:]

		switch op.Code {
		case binary.OpEnd:
			return b, binary.OpEnd, ops, nil
		case binary.OpElse:
			return b, binary.OpElse, ops, nil
		case binary.OpBlock:
			inner, _, rest, err := tr.compileBlock(KindBlock, ops, depth+1)
			if err != nil {
				return nil, 0, nil, err
			}
			ops = rest
			b.Evals = append(b.Evals, runNested(inner))
		case binary.OpLoop:
			inner, _, rest, err := tr.compileBlock(KindLoop, ops, depth+1)
			if err != nil {
				return nil, 0, nil, err
			}
			ops = rest
			b.Evals = append(b.Evals, runNested(inner))
		case binary.OpIf:
			then, term, rest, err := tr.compileBlock(KindIf, ops, depth+1)
			if err != nil {
				return nil, 0, nil, err
			}
			ops = rest
			var elseBlock *Block
			if term == binary.OpElse {
				elseBlock, _, rest, err = tr.compileBlock(KindElse, ops, depth+1)
				if err != nil {
					return nil, 0, nil, err
				}
				ops = rest
			}
			b.Evals = append(b.Evals, tr.compileIf(then, elseBlock))
		case binary.OpBr:
			depth := op.Idx
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				return Action{Kind: ActionBranch, Depth: int(depth)}, nil
			})
		case binary.OpBrIf:
			depth := op.Idx
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				cond, err := s.Pop()
				if err != nil {
					return Action{}, err
				}
				if uint32(cond) != 0 {
					return Action{Kind: ActionBranch, Depth: int(depth)}, nil
				}
				return Action{Kind: ActionEnd}, nil
			})
		case binary.OpBrTable:
			table, def := op.Table, op.Default
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				idx, err := s.Pop()
				if err != nil {
					return Action{}, err
				}
				d := def
				if uint32(idx) < uint32(len(table)) {
					d = table[uint32(idx)]
				}
				return Action{Kind: ActionBranch, Depth: int(d)}, nil
			})
		case binary.OpReturn:
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				if s.FrameSize() > 0 {
					v, err := s.Pop()
					if err != nil {
						return Action{}, err
					}
					return Action{Kind: ActionReturn, Value: v, HasValue: true}, nil
				}
				return Action{Kind: ActionReturn}, nil
			})
		case binary.OpUnreachable:
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				return Action{}, trap.New(trap.Unreachable)
			})
		case binary.OpNop:
			// no-op: emits no thunk.
		case binary.OpCall:
			idx := op.Idx
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				if c == nil {
					return Action{}, trap.New(trap.InvalidFunctionAddr)
				}
				if err := c.CallByIndex(idx, s, l0); err != nil {
					return Action{}, err
				}
				return Action{Kind: ActionEnd}, nil
			})
		case binary.OpDrop:
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				return Action{Kind: ActionEnd}, s.Drop(1)
			})
		case binary.OpSelect:
			b.Evals = append(b.Evals, evalSelect)
		case binary.OpLocalGet:
			i := int(op.Idx)
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				return Action{Kind: ActionEnd}, s.Push(s.GetLocalVal(i, l0))
			})
		case binary.OpLocalSet:
			i := int(op.Idx)
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				v, err := s.Pop()
				if err != nil {
					return Action{}, err
				}
				s.SetLocalVal(i, v, l0)
				return Action{Kind: ActionEnd}, nil
			})
		case binary.OpLocalTee:
			i := int(op.Idx)
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				v, err := s.Top()
				if err != nil {
					return Action{}, err
				}
				s.SetLocalVal(i, v, l0)
				return Action{Kind: ActionEnd}, nil
			})
		case binary.OpI32Const:
			v := uint64(uint32(op.I32))
			b.Evals = append(b.Evals, constEval(v))
		case binary.OpI64Const:
			v := uint64(op.I64)
			b.Evals = append(b.Evals, constEval(v))
		case binary.OpF32Const:
			b.Evals = append(b.Evals, constEval(op.F32))
		case binary.OpF64Const:
			b.Evals = append(b.Evals, constEval(op.F64))
		default:
			if un, ok := unops[op.Code]; ok {
				b.Evals = append(b.Evals, unopEval(un))
				continue
			}
			if bin, ok := binops[op.Code]; ok {
				b.Evals = append(b.Evals, binopEval(bin))
				continue
			}
			b.Evals = append(b.Evals, func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
				return Action{}, trap.New(trap.NotImplemented)
			})
		}
	}
	return b, binary.OpEnd, ops, nil
}

func constEval(v uint64) Eval {
	return func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
		return Action{Kind: ActionEnd}, s.Push(v)
	}
}

func unopEval(f func(uint64) uint64) Eval {
	return func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
		v, err := s.Pop()
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionEnd}, s.Push(f(v))
	}
}

func binopEval(f func(a, b uint64) (uint64, error)) Eval {
	return func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
		b, err := s.Pop()
		if err != nil {
			return Action{}, err
		}
		a, err := s.Pop()
		if err != nil {
			return Action{}, err
		}
		v, err := f(a, b)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionEnd}, s.Push(v)
	}
}

func evalSelect(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
	cond, err := s.Pop()
	if err != nil {
		return Action{}, err
	}
	b, err := s.Pop()
	if err != nil {
		return Action{}, err
	}
	a, err := s.Pop()
	if err != nil {
		return Action{}, err
	}
	if uint32(cond) != 0 {
		return Action{Kind: ActionEnd}, s.Push(a)
	}
	return Action{Kind: ActionEnd}, s.Push(b)
}

func runNested(inner *Block) Eval {
	return func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
		return inner.Run(s, l0, c)
	}
}

func (tr *translator) compileIf(then, els *Block) Eval {
	return func(s *wasmstack.Stack, l0 *uint64, c Caller) (Action, error) {
		cond, err := s.Pop()
		if err != nil {
			return Action{}, err
		}
		if uint32(cond) != 0 {
			return then.Run(s, l0, c)
		}
		if els != nil {
			return els.Run(s, l0, c)
		}
		return Action{Kind: ActionEnd}, nil
	}
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
	binary.OpI32Add: trapless(kernel.I32Add),
	binary.OpI32Sub: trapless(kernel.I32Sub),
	binary.OpI32Mul: trapless(kernel.I32Mul),
	binary.OpI32And: trapless(kernel.I32And),
	binary.OpI32Or:  trapless(kernel.I32Or),
	binary.OpI32Xor: trapless(kernel.I32Xor),
	binary.OpI32Shl: trapless(kernel.I32Shl),
	binary.OpI32ShrS: trapless(kernel.I32ShrS),
	binary.OpI32ShrU: trapless(kernel.I32ShrU),
	binary.OpI32Rotl: trapless(kernel.I32Rotl),
	binary.OpI32Rotr: trapless(kernel.I32Rotr),
	binary.OpI32DivS: kernel.I32DivS,
	binary.OpI32DivU: kernel.I32DivU,
	binary.OpI32RemS: kernel.I32RemS,
	binary.OpI32RemU: kernel.I32RemU,
	binary.OpI32Eq:  trapless(kernel.I32Eq),
	binary.OpI32Ne:  trapless(kernel.I32Ne),
	binary.OpI32LtS: trapless(kernel.I32LtS),
	binary.OpI32LtU: trapless(kernel.I32LtU),
	binary.OpI32GtS: trapless(kernel.I32GtS),
	binary.OpI32GtU: trapless(kernel.I32GtU),
	binary.OpI32LeS: trapless(kernel.I32LeS),
	binary.OpI32LeU: trapless(kernel.I32LeU),
	binary.OpI32GeS: trapless(kernel.I32GeS),
	binary.OpI32GeU: trapless(kernel.I32GeU),

	binary.OpI64Add: trapless(kernel.I64Add),
	binary.OpI64Sub: trapless(kernel.I64Sub),
	binary.OpI64Mul: trapless(kernel.I64Mul),
	binary.OpI64And: trapless(kernel.I64And),
	binary.OpI64Or:  trapless(kernel.I64Or),
	binary.OpI64Xor: trapless(kernel.I64Xor),
	binary.OpI64Shl: trapless(kernel.I64Shl),
	binary.OpI64ShrS: trapless(kernel.I64ShrS),
	binary.OpI64ShrU: trapless(kernel.I64ShrU),
	binary.OpI64Rotl: trapless(kernel.I64Rotl),
	binary.OpI64Rotr: trapless(kernel.I64Rotr),
	binary.OpI64DivS: kernel.I64DivS,
	binary.OpI64DivU: kernel.I64DivU,
	binary.OpI64RemS: kernel.I64RemS,
	binary.OpI64RemU: kernel.I64RemU,
	binary.OpI64Eq:  trapless(kernel.I64Eq),
	binary.OpI64Ne:  trapless(kernel.I64Ne),
	binary.OpI64LtS: trapless(kernel.I64LtS),
	binary.OpI64LtU: trapless(kernel.I64LtU),
	binary.OpI64GtS: trapless(kernel.I64GtS),
	binary.OpI64GtU: trapless(kernel.I64GtU),
	binary.OpI64LeS: trapless(kernel.I64LeS),
	binary.OpI64LeU: trapless(kernel.I64LeU),
	binary.OpI64GeS: trapless(kernel.I64GeS),
	binary.OpI64GeU: trapless(kernel.I64GeU),

	binary.OpF32Add: trapless(kernel.F32Add),
	binary.OpF32Sub: trapless(kernel.F32Sub),
	binary.OpF32Mul: trapless(kernel.F32Mul),
	binary.OpF64Add: trapless(kernel.F64Add),
	binary.OpF64Sub: trapless(kernel.F64Sub),
	binary.OpF64Mul: trapless(kernel.F64Mul),
}

func trapless(f func(a, b uint64) uint64) func(a, b uint64) (uint64, error) {
	return func(a, b uint64) (uint64, error) { return f(a, b), nil }
}
