// Package hart implements the fetch-decode-execute-trap loop: the decoder
// (decode.go), the per-opcode executor (execute.go), and the step loop that
// ties them to the bus, the CSR file, the trap controller, and the CLINT
// timer (this file).
package hart

import (
	"github.com/rcornwell/rv32im/internal/bus"
	"github.com/rcornwell/rv32im/internal/clint"
	"github.com/rcornwell/rv32im/internal/csr"
	"github.com/rcornwell/rv32im/internal/trap"
)

// ResetPC is the architectural reset value of PC.
const ResetPC uint32 = 0x8000_0000

// Hart is the entire state of the simulated machine: registers, PC, CSRs,
// and the devices reachable through the bus. Nothing outside Step touches
// any of it, matching the strictly sequential, lock-free model this
// simulator commits to.
type Hart struct {
	X  [32]uint32
	PC uint32

	CSRs  *csr.File
	Bus   *bus.Bus
	Clint *clint.CLINT
	Trap  *trap.Controller

	Halted bool
}

// New returns a Hart wired to the given bus and timer, PC at ResetPC, all
// registers and CSRs zero, mtimecmp at all-ones (see clint.New).
func New(b *bus.Bus, c *clint.CLINT) *Hart {
	csrs := &csr.File{}
	return &Hart{
		PC:    ResetPC,
		CSRs:  csrs,
		Bus:   b,
		Clint: c,
		Trap:  trap.New(csrs),
	}
}

func (h *Hart) writeReg(i uint8, v uint32) {
	if i != 0 {
		h.X[i] = v
	}
}

// Step retires at most one instruction. It returns the trace line to emit
// (empty if none), and whether the loop should stop after this step.
func (h *Hart) Step() (traceLine string, halt bool) {
	if h.PC == 0 {
		return "", true
	}

	if h.PC%4 != 0 || !h.Bus.Mem.Contains(h.PC, 4) {
		h.Trap.Clear()
		h.Trap.Raise(&h.PC, trap.InstructionAccessFault, h.PC)
		h.X[0] = 0
		return "", false
	}

	inst := h.Bus.Mem.Read(h.PC, 4)
	if inst == 0 {
		return "", true
	}

	h.Trap.Clear()
	line, forceEmit := h.execute(inst)
	h.X[0] = 0
	trapDuringExec := h.Trap.Occurred

	h.Clint.Tick()
	h.CSRs.SetMTIP(h.Clint.Pending())

	if h.CSRs.MIE() && h.CSRs.MTIE() && h.CSRs.MTIP() {
		next := h.PC
		h.Trap.Raise(&next, trap.MachineTimerInterrupt, 0)
		h.PC = next
	}

	if h.Halted {
		return emitLine(line, forceEmit, false), true
	}
	return emitLine(line, forceEmit, trapDuringExec), false
}

// emitLine applies the suppress-on-trap rule: a trace line is dropped if a
// trap occurred during the instruction, unless forceEmit is set (ecall,
// ebreak, mret always emit their minimal line).
func emitLine(line string, forceEmit bool, trapOccurredAfterExec bool) string {
	if forceEmit {
		return line
	}
	if trapOccurredAfterExec {
		return ""
	}
	return line
}

// RegSnapshot is a point-in-time copy of hart state, for callers that want
// to inspect the machine without reaching into Hart's fields directly.
type RegSnapshot struct {
	X      [32]uint32
	PC     uint32
	Mcause uint32
	Mepc   uint32
	Mtval  uint32
}

// Snapshot captures the current register file, PC, and trap CSR trio. It
// has no guest-visible effect; it exists purely as a testability seam.
func (h *Hart) Snapshot() RegSnapshot {
	return RegSnapshot{
		X:      h.X,
		PC:     h.PC,
		Mcause: h.CSRs.Read(csr.Mcause),
		Mepc:   h.CSRs.Read(csr.Mepc),
		Mtval:  h.CSRs.Read(csr.Mtval),
	}
}
