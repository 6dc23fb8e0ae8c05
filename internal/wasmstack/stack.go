// Package wasmstack implements the single contiguous operand stack and
// activation-frame model shared by both execution back-ends: a flat
// []uint64 holding operands and local slots, addressed through a pair of
// frame pointers.
package wasmstack

import (
	"github.com/tinywasm/tinywasm/api"
	"github.com/tinywasm/tinywasm/internal/trap"
)

// DefaultLimit is the default maximum number of cells a Stack may hold.
const DefaultLimit = 1024 * 1024

const initCapacity = 1024

// Frame records the two pointers that define the current activation
// frame: bp is the base pointer (start of params+locals), sbp is the
// stack base pointer (start of the operand stack proper). Invariant:
// 0 <= bp <= sbp <= len <= limit.
type Frame struct {
	bp  int
	sbp int
}

// Stack is a contiguous sequence of raw 64-bit cells plus the current
// Frame. It carries no type information about its contents; callers
// reinterpret cells per the operator's declared width and signedness.
type Stack struct {
	cells []uint64
	frame Frame
	limit int
}

// New returns a Stack with the DefaultLimit.
func New() *Stack {
	return NewWithLimit(DefaultLimit)
}

// NewWithLimit returns a Stack that traps with trap.StackOverflow once it
// would grow past limit cells.
func NewWithLimit(limit int) *Stack {
	return &Stack{
		cells: make([]uint64, 0, initCapacity),
		limit: limit,
	}
}

// Len returns the number of cells currently on the stack (locals and
// operands for every open frame, not just the current one).
func (s *Stack) Len() int { return len(s.cells) }

// FrameSize returns the number of operand-stack cells pushed since the
// current frame's sbp.
func (s *Stack) FrameSize() int { return len(s.cells) - s.frame.sbp }

// Frame returns the current activation frame.
func (s *Stack) Frame() Frame { return s.frame }

// PushFrame starts a new activation frame. The nParams topmost cells of
// the caller's operand area become the new frame's parameters; nLocals
// zero-initialized cells are appended after them. It returns the frame
// that was active before the call, to be restored by PopFrame.
func (s *Stack) PushFrame(nParams, nLocals int) (Frame, error) {
	if s.FrameSize() < nParams {
		return Frame{}, trap.New(trap.StackOverflow)
	}
	old := s.frame
	bp := len(s.cells) - nParams
	s.frame = Frame{bp: bp, sbp: bp + nParams + nLocals}
	if nLocals > 0 {
		if err := s.reserveLocals(nLocals); err != nil {
			s.frame = old
			return Frame{}, err
		}
	}
	return old, nil
}

func (s *Stack) reserveLocals(n int) error {
	if len(s.cells)+n > s.limit {
		return trap.New(trap.StackOverflow)
	}
	for i := 0; i < n; i++ {
		s.cells = append(s.cells, 0)
	}
	return nil
}

// PopFrame discards the current frame's params, locals, and any leftover
// operands, then restores prev. The caller is responsible for moving a
// return value onto the caller's operand stack before or via an explicit
// copy after this call.
func (s *Stack) PopFrame(prev Frame) {
	s.cells = s.cells[:s.frame.bp]
	s.frame = prev
}

// PushParams reinterprets each tagged Value into a raw cell and pushes
// it, returning the stack length before the push.
func (s *Stack) PushParams(params []api.Value) (int, error) {
	if len(s.cells)+len(params) > s.limit {
		return 0, trap.New(trap.StackOverflow)
	}
	orig := len(s.cells)
	for _, v := range params {
		s.cells = append(s.cells, v.Raw())
	}
	return orig, nil
}

// Push appends one cell, failing with trap.StackOverflow past limit.
func (s *Stack) Push(v uint64) error {
	if len(s.cells) >= s.limit {
		return trap.New(trap.StackOverflow)
	}
	s.cells = append(s.cells, v)
	return nil
}

// Pop removes and returns the top cell. Fails if the current frame has
// no operands left, i.e. len == sbp.
func (s *Stack) Pop() (uint64, error) {
	if len(s.cells) <= s.frame.sbp {
		return 0, trap.New(trap.StackOverflow)
	}
	v := s.cells[len(s.cells)-1]
	s.cells = s.cells[:len(s.cells)-1]
	return v, nil
}

// Top returns the top cell without removing it.
func (s *Stack) Top() (uint64, error) {
	if len(s.cells) <= s.frame.sbp {
		return 0, trap.New(trap.StackOverflow)
	}
	return s.cells[len(s.cells)-1], nil
}

// Drop discards the top n cells of the operand stack.
func (s *Stack) Drop(n int) error {
	if len(s.cells)-n < s.frame.sbp {
		return trap.New(trap.StackOverflow)
	}
	s.cells = s.cells[:len(s.cells)-n]
	return nil
}

// GetLocal pushes the value of local slot i (relative to bp) onto the
// operand stack.
func (s *Stack) GetLocal(i int) error {
	idx := s.frame.bp + i
	return s.Push(s.cells[idx])
}

// SetLocal pops the top operand and stores it into local slot i.
func (s *Stack) SetLocal(i int) error {
	v, err := s.Pop()
	if err != nil {
		return err
	}
	s.cells[s.frame.bp+i] = v
	return nil
}

// TeeLocal stores the top operand into local slot i without consuming it.
func (s *Stack) TeeLocal(i int) error {
	v, err := s.Top()
	if err != nil {
		return err
	}
	s.cells[s.frame.bp+i] = v
	return nil
}

// GetLocalVal and SetLocalVal implement the local-0 fast path: local
// index 0 is threaded through l0 by reference rather than through the
// generic cells slice. Every other index falls through to bp+i.
func (s *Stack) GetLocalVal(i int, l0 *uint64) uint64 {
	if i == 0 {
		return *l0
	}
	return s.cells[s.frame.bp+i]
}

// SetLocalVal is the set-side counterpart of GetLocalVal.
func (s *Stack) SetLocalVal(i int, val uint64, l0 *uint64) {
	if i == 0 {
		*l0 = val
		return
	}
	s.cells[s.frame.bp+i] = val
}

// SeedLocal0 reads the current frame's slot 0 directly from the cells
// array, for the moment at call setup before l0 has taken over as the
// register of record for that slot.
func (s *Stack) SeedLocal0() uint64 {
	return s.cells[s.frame.bp]
}

// WriteBackLocal0 copies l0 into the current frame's slot 0, so a caller
// that inspects the frame after the function returns or traps observes a
// consistent locals[0] rather than the stale value left by PushFrame's
// zero-initialization.
func (s *Stack) WriteBackLocal0(l0 uint64) {
	s.cells[s.frame.bp] = l0
}
