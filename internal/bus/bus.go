// Package bus implements the memory-mapped address-range dispatcher: it
// routes every load and store to RAM, the CLINT timer, the PLIC stub, or
// the UART, by address range, and reports access faults for anything that
// falls outside all four.
package bus

import (
	"github.com/rcornwell/rv32im/internal/clint"
	"github.com/rcornwell/rv32im/internal/memory"
	"github.com/rcornwell/rv32im/internal/uart"
)

// PlicBase and PlicSize bound the PLIC stub: reads return zero, writes are
// discarded, nothing else is modeled.
const (
	PlicBase uint32 = 0x0C00_0000
	PlicSize uint32 = 0x40_0000
)

// Bus ties the four memory-mapped ranges together behind one dispatcher.
type Bus struct {
	Mem   *memory.Memory
	Clint *clint.CLINT
	Uart  *uart.UART
}

// New returns a Bus over the given devices.
func New(mem *memory.Memory, c *clint.CLINT, u *uart.UART) *Bus {
	return &Bus{Mem: mem, Clint: c, Uart: u}
}

// Load reads size (1, 2, or 4) bytes at addr, zero-extended into a 32-bit
// word. ok is false if addr falls outside every mapped range or the access
// crosses a range boundary, in which case the caller must raise a load
// access fault and must not use value.
func (b *Bus) Load(addr uint32, size uint32) (value uint32, ok bool) {
	switch {
	case b.Mem.Contains(addr, size):
		return b.Mem.Read(addr, size), true
	case inRange(addr, size, clint.Base, clint.Size):
		return b.Clint.Load(addr - clint.Base), true
	case inRange(addr, size, PlicBase, PlicSize):
		return 0, true
	case inRange(addr, size, uart.Base, uart.Size):
		if addr != uart.Base {
			return 0, true
		}
		return b.Uart.Load(), true
	default:
		return 0, false
	}
}

// Store writes the low size bytes of value at addr. ok is false under the
// same conditions as Load, in which case the caller must raise a store
// access fault; no device or memory state is mutated on a fault.
func (b *Bus) Store(addr uint32, value uint32, size uint32) (ok bool) {
	switch {
	case b.Mem.Contains(addr, size):
		b.Mem.Write(addr, value, size)
		return true
	case inRange(addr, size, clint.Base, clint.Size):
		b.Clint.Store(addr-clint.Base, value)
		return true
	case inRange(addr, size, PlicBase, PlicSize):
		return true
	case inRange(addr, size, uart.Base, uart.Size):
		if addr == uart.Base {
			b.Uart.Store(value)
		}
		return true
	default:
		return false
	}
}

// inRange reports whether [addr, addr+size) lies wholly within
// [base, base+span).
func inRange(addr, size, base, span uint32) bool {
	if addr < base {
		return false
	}
	off := addr - base
	end := off + size
	return end >= off && end <= span
}
