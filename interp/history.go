package interp

import "github.com/m68kschool/interpreter/machine"

// MutationKind tags one recorded, invertible state change.
type MutationKind uint8

const (
	MutWriteRegister MutationKind = iota
	MutWriteMemory
	MutWriteMemoryBytes
	MutWriteFlags
	MutWritePc
)

// Mutation is the inverse record of one primitive state change. Old
// always holds enough to restore the pre-change state exactly:
// register mutations store the full 32-bit previous value regardless
// of the write size, so undoing a word write to an address register
// does not re-sign-extend.
type Mutation struct {
	Kind MutationKind

	Reg  machine.Register // MutWriteRegister
	Size machine.Size     // MutWriteRegister, MutWriteMemory: size of the write being undone

	Addr     uint32 // MutWriteMemory, MutWriteMemoryBytes
	Old      uint32 // previous register/memory/pc value
	OldBytes []byte // MutWriteMemoryBytes
	OldFlags machine.Flags
}

// ExecutionStep is the complete mutation record of one executed
// instruction, sufficient to restore the pre-step state bit for bit.
type ExecutionStep struct {
	PCBefore  uint32
	LineIndex int
	Mutations []Mutation
}

// history is a bounded ring of ExecutionSteps: oldest entries are
// dropped first once the configured size is reached. With keep=false
// nothing is recorded and undo is never available.
type history struct {
	keep  bool
	size  int
	steps []ExecutionStep
}

func (h *history) push(step ExecutionStep) {
	if !h.keep {
		return
	}
	if h.size > 0 && len(h.steps) >= h.size {
		drop := len(h.steps) - h.size + 1
		h.steps = append(h.steps[:0], h.steps[drop:]...)
	}
	h.steps = append(h.steps, step)
}

func (h *history) pop() (ExecutionStep, bool) {
	if len(h.steps) == 0 {
		return ExecutionStep{}, false
	}
	step := h.steps[len(h.steps)-1]
	h.steps = h.steps[:len(h.steps)-1]
	return step, true
}

func (h *history) last() *ExecutionStep {
	if len(h.steps) == 0 {
		return nil
	}
	return &h.steps[len(h.steps)-1]
}

// tail returns up to k of the most recent steps, oldest first.
func (h *history) tail(k int) []ExecutionStep {
	if k <= 0 || len(h.steps) == 0 {
		return nil
	}
	if k > len(h.steps) {
		k = len(h.steps)
	}
	out := make([]ExecutionStep, k)
	copy(out, h.steps[len(h.steps)-k:])
	return out
}

// recorder appends mutations to the open step. A nil receiver is the
// disabled-history recorder: instruction code stays unaware of the
// policy and recording quietly becomes a no-op.
type recorder struct {
	step *ExecutionStep
}

func (r *recorder) add(m Mutation) {
	if r == nil || r.step == nil {
		return
	}
	r.step.Mutations = append(r.step.Mutations, m)
}
