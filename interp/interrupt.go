package interp

import (
	"log"

	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
)

func init() {
	opTable["trap"] = opTrap
}

// InterruptKind is the trap #15 operation selected by D0.
type InterruptKind uint8

const (
	DisplayStringWithCRLF    InterruptKind = 0
	DisplayStringWithoutCRLF InterruptKind = 1
	ReadKeyboardString       InterruptKind = 2
	DisplayNumber            InterruptKind = 3
	ReadNumber               InterruptKind = 4
	ReadChar                 InterruptKind = 5
	DisplayChar              InterruptKind = 6
	GetTime                  InterruptKind = 8
	Terminate                InterruptKind = 9
)

func (k InterruptKind) String() string {
	switch k {
	case DisplayStringWithCRLF:
		return "DisplayStringWithCRLF"
	case DisplayStringWithoutCRLF:
		return "DisplayStringWithoutCRLF"
	case ReadKeyboardString:
		return "ReadKeyboardString"
	case DisplayNumber:
		return "DisplayNumber"
	case ReadNumber:
		return "ReadNumber"
	case ReadChar:
		return "ReadChar"
	case DisplayChar:
		return "DisplayChar"
	case GetTime:
		return "GetTime"
	case Terminate:
		return "Terminate"
	}
	return "Unknown"
}

// Interrupt is the request half of the trap #15 handshake: everything
// the collaborator needs to service the operation. Exactly the fields
// relevant to Kind are populated.
type Interrupt struct {
	Kind InterruptKind

	Text    string // DisplayString*: the string at (A1) with length D1.w
	Value   int32  // DisplayNumber: D1 as a signed number
	Char    rune   // DisplayChar: D1.b
	Address uint32 // ReadKeyboardString: destination buffer (A1)
	Elapsed uint32 // GetTime: milliseconds since the interpreter started
}

// InterruptResult is the response half. Its Kind must match the
// pending interrupt's Kind or AnswerInterrupt rejects it with
// ErrInterruptMismatch and the interrupt stays pending.
type InterruptResult struct {
	Kind InterruptKind

	Number int32  // ReadNumber: value to store in D1
	Text   string // ReadKeyboardString: line read, truncated to 80 bytes
	Char   rune   // ReadChar: character to store in D1.b
}

// readBufferLimit caps ReadKeyboardString transfers, the classic
// teaching-monitor 80-column line.
const readBufferLimit = 80

// opTrap services trap #15: D0 selects the operation, D1/A1 carry its
// arguments. All codes except Terminate suspend execution in the
// Interrupt status until AnswerInterrupt is called.
func opTrap(it *Interpreter, _ *compiler.InstructionLine) *RuntimeError {
	code := it.regs.D[0]

	intr := &Interrupt{Kind: InterruptKind(code)}
	switch InterruptKind(code) {
	case DisplayStringWithCRLF, DisplayStringWithoutCRLF:
		length := it.regs.D[1] & 0xFFFF
		bytes, err := it.mem.ReadBytes(it.regs.A[1], int(length))
		if err != nil {
			return it.memFault(err)
		}
		intr.Text = string(bytes)

	case ReadKeyboardString:
		intr.Address = it.regs.A[1]

	case DisplayNumber:
		intr.Value = int32(it.regs.D[1])

	case ReadNumber, ReadChar:
		// No request payload.

	case DisplayChar:
		intr.Char = rune(it.regs.D[1] & 0xFF)

	case GetTime:
		intr.Elapsed = it.elapsedMillis()

	case Terminate:
		it.status = Terminated
		return nil

	default:
		return runtimeErrorf(ErrIllegalInstruction, "unsupported interrupt code %d in D0", code)
	}

	it.pendingInterrupt = intr
	it.status = Interrupted
	return nil
}

// CurrentInterrupt returns the pending interrupt, or nil when the
// interpreter is not suspended.
func (it *Interpreter) CurrentInterrupt() *Interrupt {
	return it.pendingInterrupt
}

// AnswerInterrupt applies the collaborator's response to the pending
// interrupt and resumes execution. A missing or mismatched pending
// interrupt is reported as an error without terminating: the interrupt
// stays pending and the machine state is untouched.
//
// Mutations the answer performs (the read number landing in D1, the
// read line landing in the buffer at A1) are appended to the trap
// step's history entry, so undoing past the trap restores them; the
// collaborator-side effects (printed text, consumed input) are outside
// the machine and are not rolled back.
func (it *Interpreter) AnswerInterrupt(result InterruptResult) error {
	if it.status != Interrupted || it.pendingInterrupt == nil {
		err := runtimeErrorf(ErrInterruptMismatch, "no interrupt is pending")
		log.Printf("interp: %v", err)
		return err
	}
	pending := it.pendingInterrupt
	if result.Kind != pending.Kind {
		err := runtimeErrorf(ErrInterruptMismatch, "answer %s does not match pending %s", result.Kind, pending.Kind)
		log.Printf("interp: %v", err)
		return err
	}

	rec := &recorder{step: it.history.last()}

	switch pending.Kind {
	case ReadNumber:
		it.writeRegisterRec(rec, machine.D(1), machine.Long, uint32(result.Number))

	case ReadChar:
		it.writeRegisterRec(rec, machine.D(1), machine.Byte, uint32(result.Char))

	case ReadKeyboardString:
		text := []byte(result.Text)
		if len(text) > readBufferLimit {
			text = text[:readBufferLimit]
		}
		if err := it.writeMemoryBytesRec(rec, pending.Address, text); err != nil {
			return err
		}
		it.writeRegisterRec(rec, machine.D(1), machine.Word, uint32(len(text)))

	case GetTime:
		it.writeRegisterRec(rec, machine.D(1), machine.Long, pending.Elapsed)

	case DisplayStringWithCRLF, DisplayStringWithoutCRLF, DisplayNumber, DisplayChar:
		// Pure output; nothing flows back into the machine.
	}

	it.pendingInterrupt = nil
	it.status = Running
	return nil
}
