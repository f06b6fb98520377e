// Package trace formats retired instructions into the simulator's
// disassembly-with-effects trace line, one line per instruction, in the
// spirit of the teacher's opcode-table-plus-piecewise-Sprintf style for
// building operand text (compare emu/disassemble.go), but targeting this
// machine's instruction set instead.
package trace

import "fmt"

// RegNames are the standard ABI register mnemonics, indexed by register
// number.
var RegNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// Reg returns the ABI name of register r.
func Reg(r uint8) string {
	return RegNames[r&0x1F]
}

// Line assembles the common "pc:mnemonic operands   effect" shape: a
// hex-prefixed PC, a 7-character left-justified mnemonic field, the operand
// text, three spaces, then the effect tail.
func Line(pc uint32, mnemonic, operands, effect string) string {
	return fmt.Sprintf("0x%x:%-7s %s   %s", pc, mnemonic, operands, effect)
}

// Simple renders a bare mnemonic with no operands or effect, used for
// ecall/ebreak/mret.
func Simple(pc uint32, mnemonic string) string {
	return fmt.Sprintf("0x%x:%s", pc, mnemonic)
}
