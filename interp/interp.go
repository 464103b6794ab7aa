// Package interp executes a CompiledProgram against a modeled M68k
// CPU and memory. It owns the fetch-execute loop, the per-instruction
// flag updates, effective-address resolution, the trap #15 interrupt
// handshake, and a reversible mutation history for undo.
package interp

import (
	"log"
	"time"

	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
)

// Status is the interpreter's execution state.
type Status uint8

const (
	Running Status = iota
	Interrupted
	Terminated
	TerminatedWithException
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Interrupted:
		return "Interrupt"
	case Terminated:
		return "Terminated"
	case TerminatedWithException:
		return "TerminatedWithException"
	}
	return "Unknown"
}

// Options configures history retention. The zero value keeps no
// history; use DefaultOptions for the teaching-friendly default.
type Options struct {
	KeepHistory bool
	HistorySize int
}

// DefaultHistorySize bounds the undo ring when the caller does not
// choose one.
const DefaultHistorySize = 1024

// DefaultOptions enables a bounded undo history.
func DefaultOptions() Options {
	return Options{KeepHistory: true, HistorySize: DefaultHistorySize}
}

type opFunc func(*Interpreter, *compiler.InstructionLine) *RuntimeError

// opTable dispatches mnemonics to their implementations. Populated by
// the register* functions in the ops_* files at init time.
var opTable = map[string]opFunc{}

// Interpreter executes one compiled program. Every instance owns its
// CPU registers, flags, memory, call stack, history, and interrupt
// slot; nothing is shared or global.
type Interpreter struct {
	program *compiler.CompiledProgram
	regs    machine.Registers
	flags   machine.Flags
	mem     *machine.Memory

	status        Status
	reachedBottom bool
	terminalError *RuntimeError

	history history
	rec     *recorder // open history entry during a step
	pcSet   bool      // the executing instruction wrote PC explicitly

	pendingInterrupt *Interrupt
	callStack        []CallFrame

	lastLineIndex int
	started       time.Time
}

// New builds an interpreter for a compiled program with a memory of
// the given size. The initial memory image is laid down, SP starts at
// the top of memory (kept even), and PC at the first instruction.
func New(program *compiler.CompiledProgram, memorySize int, opts Options) (*Interpreter, error) {
	if memorySize <= 0 {
		memorySize = machine.DefaultMemorySize
	}
	it := &Interpreter{
		program: program,
		mem:     machine.NewMemory(memorySize),
		history: history{keep: opts.KeepHistory, size: opts.HistorySize},
		started: time.Now(),
		status:  Running,
	}
	for _, region := range program.InitialMemory {
		if err := it.mem.WriteBytes(region.Address, region.Bytes); err != nil {
			return nil, err
		}
	}
	it.regs.SetSP(uint32(memorySize) &^ 1)
	if len(program.Instructions) == 0 {
		it.reachedBottom = true
		it.status = Terminated
	} else {
		it.regs.PC = program.Instructions[0].Address
		it.lastLineIndex = program.Instructions[0].LineIndex
	}
	return it, nil
}

// Step executes the instruction at PC. It returns the executed
// instruction (nil when nothing ran), the resulting status, and the
// runtime error if the instruction faulted.
//
// A faulting step rolls its partial mutations back before raising, so
// the machine state is exactly the pre-step state; its history entry
// is kept (empty) so every executed instruction still maps to one
// entry.
func (it *Interpreter) Step() (*compiler.InstructionLine, Status, error) {
	switch it.status {
	case Interrupted:
		return nil, it.status, runtimeErrorf(ErrUnansweredInterrupt, "step while an interrupt is pending")
	case Terminated, TerminatedWithException:
		return nil, it.status, nil
	}

	pc := it.regs.PC
	ins, ok := it.program.InstructionAt(pc)
	if !ok {
		it.reachedBottom = true
		it.status = Terminated
		return nil, it.status, nil
	}
	it.lastLineIndex = ins.LineIndex

	step := ExecutionStep{PCBefore: pc, LineIndex: ins.LineIndex}
	if it.history.keep {
		it.rec = &recorder{step: &step}
	} else {
		it.rec = nil
	}
	it.pcSet = false

	err := it.execute(&ins)
	if err != nil {
		err.PC = pc
		it.rollback(step.Mutations)
		step.Mutations = nil
		it.history.push(step)
		it.rec = nil
		it.terminalError = err
		it.status = TerminatedWithException
		log.Printf("interp: %v", err)
		return &ins, it.status, err
	}

	if !it.pcSet {
		it.setPC(pc + compiler.InstructionStride)
	}
	it.history.push(step)
	it.rec = nil
	return &ins, it.status, nil
}

func (it *Interpreter) execute(ins *compiler.InstructionLine) *RuntimeError {
	op, ok := opTable[ins.Op.Mnemonic]
	if !ok {
		return runtimeErrorf(ErrIllegalInstruction, "no implementation for %q", ins.Op.Mnemonic)
	}
	return op(it, ins)
}

// Run steps until the program leaves the Running status.
func (it *Interpreter) Run() (Status, error) {
	for it.status == Running {
		if _, _, err := it.Step(); err != nil {
			return it.status, err
		}
	}
	return it.status, nil
}

// RunWithLimit steps at most limit times, returning Running if the
// budget ran out with the program still live.
func (it *Interpreter) RunWithLimit(limit int) (Status, error) {
	for i := 0; i < limit && it.status == Running; i++ {
		if _, _, err := it.Step(); err != nil {
			return it.status, err
		}
	}
	return it.status, nil
}

// RunWithBreakpoints runs until the program stops, the optional limit
// (limit > 0) runs out, or PC reaches an address in the breakpoint
// set. The breakpoint check applies before executing an instruction,
// but not to the very first one, so resuming from a breakpoint makes
// progress.
func (it *Interpreter) RunWithBreakpoints(breakpoints map[uint32]bool, limit int) (Status, error) {
	for steps := 0; it.status == Running; steps++ {
		if limit > 0 && steps >= limit {
			break
		}
		if steps > 0 && breakpoints[it.regs.PC] {
			break
		}
		if _, _, err := it.Step(); err != nil {
			return it.status, err
		}
	}
	return it.status, nil
}

// --- state-mutating primitives ---
//
// Every primitive records its inverse through the open recorder; when
// history is off the recorder is nil and recording is a no-op, so the
// instruction implementations never see the policy.

func (it *Interpreter) writeRegister(reg machine.Register, sz machine.Size, val uint32) {
	it.writeRegisterRec(it.rec, reg, sz, val)
}

func (it *Interpreter) writeRegisterRec(rec *recorder, reg machine.Register, sz machine.Size, val uint32) {
	rec.add(Mutation{
		Kind: MutWriteRegister,
		Reg:  reg,
		Size: sz,
		Old:  it.regs.Get(reg, machine.Long),
	})
	it.regs.Set(reg, sz, val)
}

func (it *Interpreter) writeMemory(sz machine.Size, addr uint32, val uint32) *RuntimeError {
	old, err := it.mem.Read(sz, addr)
	if err != nil {
		return it.memFault(err)
	}
	it.rec.add(Mutation{Kind: MutWriteMemory, Size: sz, Addr: addr, Old: old})
	if err := it.mem.Write(sz, addr, val); err != nil {
		return it.memFault(err)
	}
	return nil
}

func (it *Interpreter) writeMemoryBytesRec(rec *recorder, addr uint32, data []byte) *RuntimeError {
	old, err := it.mem.ReadBytes(addr, len(data))
	if err != nil {
		return it.memFault(err)
	}
	rec.add(Mutation{Kind: MutWriteMemoryBytes, Addr: addr, OldBytes: old})
	if err := it.mem.WriteBytes(addr, data); err != nil {
		return it.memFault(err)
	}
	return nil
}

func (it *Interpreter) setFlags(f machine.Flags) {
	it.rec.add(Mutation{Kind: MutWriteFlags, OldFlags: it.flags})
	it.flags = f
}

func (it *Interpreter) setPC(v uint32) {
	it.rec.add(Mutation{Kind: MutWritePc, Old: it.regs.PC})
	it.regs.PC = v
}

// jump is setPC plus the marker that suppresses the automatic PC
// advance after the instruction.
func (it *Interpreter) jump(target uint32) {
	it.setPC(target)
	it.pcSet = true
}

func (it *Interpreter) readMemory(sz machine.Size, addr uint32) (uint32, *RuntimeError) {
	v, err := it.mem.Read(sz, addr)
	if err != nil {
		return 0, it.memFault(err)
	}
	return v, nil
}

func (it *Interpreter) memFault(err error) *RuntimeError {
	if oob, ok := err.(*machine.OutOfBoundsError); ok {
		return &RuntimeError{
			Kind:    ErrAddressOutOfBounds,
			Address: oob.Addr,
			Message: oob.Error(),
		}
	}
	return runtimeErrorf(ErrAddressOutOfBounds, "%v", err)
}

// pushLong predecrements SP and stores a longword, the BSR/JSR/PEA/
// LINK stack convention.
func (it *Interpreter) pushLong(v uint32) *RuntimeError {
	sp := it.regs.SP() - 4
	it.writeRegister(machine.SPRegister, machine.Long, sp)
	return it.writeMemory(machine.Long, sp, v)
}

// popLong loads a longword at SP and postincrements. Popping past the
// end of memory is a stack underflow, not a plain bounds fault.
func (it *Interpreter) popLong() (uint32, *RuntimeError) {
	sp := it.regs.SP()
	v, err := it.mem.Read(machine.Long, sp)
	if err != nil {
		return 0, &RuntimeError{Kind: ErrStackUnderflow, Address: sp,
			Message: "pop from an empty stack"}
	}
	it.writeRegister(machine.SPRegister, machine.Long, sp+4)
	return v, nil
}

// rollback applies the inverses of a partial step, newest first.
func (it *Interpreter) rollback(muts []Mutation) {
	it.applyInverses(muts)
}

func (it *Interpreter) applyInverses(muts []Mutation) {
	for i := len(muts) - 1; i >= 0; i-- {
		m := muts[i]
		switch m.Kind {
		case MutWriteRegister:
			it.regs.Set(m.Reg, machine.Long, m.Old)
		case MutWriteMemory:
			it.mem.Write(m.Size, m.Addr, m.Old)
		case MutWriteMemoryBytes:
			it.mem.WriteBytes(m.Addr, m.OldBytes)
		case MutWriteFlags:
			it.flags = m.OldFlags
		case MutWritePc:
			it.regs.PC = m.Old
		}
	}
}

// --- undo ---

// CanUndo reports whether at least one recorded step can be undone.
func (it *Interpreter) CanUndo() bool {
	return len(it.history.steps) > 0
}

// Undo reverses the most recent ExecutionStep, restoring registers,
// memory, flags, and PC to their pre-step values, and removes the
// entry. Collaborator-visible interrupt effects (text already printed,
// input already consumed) are not undone. The execution status is
// left unchanged.
func (it *Interpreter) Undo() error {
	step, ok := it.history.pop()
	if !ok {
		return runtimeErrorf(ErrIllegalInstruction, "no history to undo")
	}
	it.applyInverses(step.Mutations)
	it.regs.PC = step.PCBefore
	return nil
}

// UndoHistory returns up to k of the most recent steps, oldest first.
func (it *Interpreter) UndoHistory(k int) []ExecutionStep {
	return it.history.tail(k)
}

// PreviousMutations returns the mutation list of the most recent step,
// in the order the mutations occurred.
func (it *Interpreter) PreviousMutations() []Mutation {
	last := it.history.last()
	if last == nil {
		return nil
	}
	out := make([]Mutation, len(last.Mutations))
	copy(out, last.Mutations)
	return out
}

// --- observation ---

// GetStatus returns the current execution status.
func (it *Interpreter) GetStatus() Status { return it.status }

// TerminalError returns the fault that ended execution, or nil.
func (it *Interpreter) TerminalError() *RuntimeError { return it.terminalError }

// PC returns the program counter.
func (it *Interpreter) PC() uint32 { return it.regs.PC }

// SP returns the stack pointer (A7).
func (it *Interpreter) SP() uint32 { return it.regs.SP() }

// Flag selects one condition code for GetFlag.
type Flag uint8

const (
	FlagX Flag = iota
	FlagN
	FlagZ
	FlagV
	FlagC
)

// GetFlag reads a single condition code.
func (it *Interpreter) GetFlag(f Flag) bool {
	switch f {
	case FlagX:
		return it.flags.X
	case FlagN:
		return it.flags.N
	case FlagZ:
		return it.flags.Z
	case FlagV:
		return it.flags.V
	case FlagC:
		return it.flags.C
	}
	return false
}

// FlagsAsArray returns [X,N,Z,V,C].
func (it *Interpreter) FlagsAsArray() [5]bool { return it.flags.Array() }

// FlagsAsBitfield returns the CCR byte (X=bit4 down to C=bit0).
func (it *Interpreter) FlagsAsBitfield() uint8 { return it.flags.Bitfield() }

// ReadMemoryBytes copies length bytes starting at addr.
func (it *Interpreter) ReadMemoryBytes(addr uint32, length int) ([]byte, error) {
	return it.mem.ReadBytes(addr, length)
}

// RegisterValue reads a register at the given size.
func (it *Interpreter) RegisterValue(reg machine.Register, sz machine.Size) uint32 {
	return it.regs.Get(reg, sz)
}

// SetRegisterValue writes a register directly. The write is not
// recorded in history: it models the UI poking a register between
// steps, not program execution. Byte writes to address registers are
// rejected.
func (it *Interpreter) SetRegisterValue(reg machine.Register, sz machine.Size, val uint32) error {
	if reg.Kind == machine.AddressReg && sz == machine.Byte {
		return runtimeErrorf(ErrIllegalAddressingMode, "byte write to %s", reg)
	}
	it.regs.Set(reg, sz, val)
	return nil
}

// InstructionAt returns the instruction table entry at addr.
func (it *Interpreter) InstructionAt(addr uint32) (compiler.InstructionLine, bool) {
	return it.program.InstructionAt(addr)
}

// NextInstruction returns the instruction PC currently points at,
// which Step would execute next.
func (it *Interpreter) NextInstruction() (compiler.InstructionLine, bool) {
	return it.program.InstructionAt(it.regs.PC)
}

// CurrentLineIndex returns the source line index of the most recently
// fetched instruction.
func (it *Interpreter) CurrentLineIndex() int { return it.lastLineIndex }

// HasTerminated reports whether execution has ended, normally or not.
func (it *Interpreter) HasTerminated() bool {
	return it.status == Terminated || it.status == TerminatedWithException
}

// HasReachedBottom reports whether execution ran past the last
// instruction rather than stopping at an explicit Terminate.
func (it *Interpreter) HasReachedBottom() bool { return it.reachedBottom }

func (it *Interpreter) elapsedMillis() uint32 {
	return uint32(time.Since(it.started).Milliseconds())
}
