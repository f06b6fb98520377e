// Package trap implements the machine-mode trap controller: the single
// raise operation that redirects control flow to the handler installed at
// mtvec, writing the mepc/mcause/mtval trio, and the per-instruction
// first-trap-wins flag the rest of the hart consults before any writeback.
package trap

import "github.com/rcornwell/rv32im/internal/csr"

// Cause codes, as written to mcause.
const (
	InstructionAccessFault uint32 = 0x01
	IllegalInstruction     uint32 = 0x02
	LoadAccessFault        uint32 = 0x05
	StoreAccessFault       uint32 = 0x07
	EnvironmentCallM       uint32 = 0x0B
	MachineTimerInterrupt  uint32 = 0x8000_0007
)

// Controller raises synchronous exceptions and the asynchronous timer
// interrupt against a CSR file, and tracks whether a trap has already been
// raised during the instruction in progress.
type Controller struct {
	csrs     *csr.File
	Occurred bool
}

// New returns a Controller writing into csrs.
func New(csrs *csr.File) *Controller {
	return &Controller{csrs: csrs}
}

// Clear resets the first-trap-wins flag; called once per step, before
// decode.
func (c *Controller) Clear() {
	c.Occurred = false
}

// Raise redirects *pc to mtvec and records mepc/mcause/mtval, unless a trap
// has already been raised this instruction, in which case the call is a
// no-op (first-trap-wins). pc is the pre-execute PC for synchronous
// exceptions, or the already-advanced next PC for the timer interrupt —
// callers choose which to pass in, per §4.9.
func (c *Controller) Raise(pc *uint32, cause, tval uint32) {
	if c.Occurred {
		return
	}
	c.csrs.Write(csr.Mepc, *pc)
	c.csrs.Write(csr.Mcause, cause)
	c.csrs.Write(csr.Mtval, tval)
	*pc = c.csrs.Mtvec()
	c.Occurred = true
}
