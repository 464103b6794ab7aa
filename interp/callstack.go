package interp

// CallFrame is one observational entry of the logical call stack:
// pushed on BSR/JSR, popped on RTS. It snapshots names and values
// rather than pointing into the compiled program, and is never
// consulted for control flow.
type CallFrame struct {
	Label         string // target label, when one names the target address
	TargetAddress uint32
	ReturnAddress uint32
	SP            uint32 // stack pointer after the return address was pushed
}

// CallStack returns a copy of the logical call stack, outermost call
// first.
func (it *Interpreter) CallStack() []CallFrame {
	out := make([]CallFrame, len(it.callStack))
	copy(out, it.callStack)
	return out
}

func (it *Interpreter) pushCallFrame(target, returnAddr uint32) {
	it.callStack = append(it.callStack, CallFrame{
		Label:         it.labelAt(target),
		TargetAddress: target,
		ReturnAddress: returnAddr,
		SP:            it.regs.SP(),
	})
}

func (it *Interpreter) popCallFrame() {
	if len(it.callStack) > 0 {
		it.callStack = it.callStack[:len(it.callStack)-1]
	}
}

// labelAt finds a label naming addr, if any.
func (it *Interpreter) labelAt(addr uint32) string {
	for name, labelAddr := range it.program.Labels {
		if labelAddr == addr {
			return name
		}
	}
	return ""
}
