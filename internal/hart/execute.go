package hart

import (
	"fmt"
	"math"

	"github.com/rcornwell/rv32im/internal/csr"
	"github.com/rcornwell/rv32im/internal/trace"
	"github.com/rcornwell/rv32im/internal/trap"
)

// advance moves PC to the next sequential instruction, unless a trap has
// already redirected it this step.
func (h *Hart) advance() {
	if !h.Trap.Occurred {
		h.PC += 4
	}
}

// execute decodes and runs one instruction at the current PC. It returns
// the trace line for the instruction (empty if none should be emitted) and
// whether the line must be emitted even though a trap occurred (true for
// ecall, ebreak and mret).
func (h *Hart) execute(inst uint32) (line string, forceEmit bool) {
	pc := h.PC
	opcode := uint8(bitrange(inst, 0, 7))

	switch opcode {
	case opOpImm:
		line = h.execOpImm(pc, inst)
	case opOp:
		line = h.execOp(pc, inst)
	case opLui:
		line = h.execLui(pc, inst)
	case opAuipc:
		line = h.execAuipc(pc, inst)
	case opJal:
		line = h.execJal(pc, inst)
	case opJalr:
		line = h.execJalr(pc, inst)
	case opBranch:
		line = h.execBranch(pc, inst)
	case opLoad:
		line = h.execLoad(pc, inst)
	case opStore:
		line = h.execStore(pc, inst)
	case opSystem:
		line, forceEmit = h.execSystem(pc, inst)
	default:
		h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
	}
	return line, forceEmit
}

func (h *Hart) execOpImm(pc uint32, inst uint32) string {
	f := decodeI(inst)
	v1 := h.X[f.rs1]
	raw12 := f.imm & 0xFFF
	shamt := raw12 & 0x1F
	funct7 := (raw12 >> 5) & 0x7F

	var res uint32
	var mnemonic, opSym string

	switch f.funct3 {
	case 0:
		mnemonic, opSym = "addi", "+"
		res = v1 + f.imm
	case 1:
		if funct7 != 0x00 {
			h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
			return ""
		}
		mnemonic, opSym = "slli", "<<"
		res = v1 << shamt
	case 2:
		mnemonic, opSym = "slti", "<s"
		if int32(v1) < int32(f.imm) {
			res = 1
		}
	case 3:
		mnemonic, opSym = "sltiu", "<u"
		if v1 < f.imm {
			res = 1
		}
	case 4:
		mnemonic, opSym = "xori", "^"
		res = v1 ^ f.imm
	case 5:
		switch funct7 {
		case 0x00:
			mnemonic, opSym = "srli", ">>"
			res = v1 >> shamt
		case 0x20:
			mnemonic, opSym = "srai", "a>>"
			res = uint32(int32(v1) >> shamt)
		default:
			h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
			return ""
		}
	case 6:
		mnemonic, opSym = "ori", "|"
		res = v1 | f.imm
	case 7:
		mnemonic, opSym = "andi", "&"
		res = v1 & f.imm
	default:
		h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
		return ""
	}

	h.writeReg(f.rd, res)
	h.advance()

	operands := fmt.Sprintf("%s,%s,0x%x", trace.Reg(f.rd), trace.Reg(f.rs1), raw12)
	effect := fmt.Sprintf("%s=0x%x%s0x%x=0x%x", trace.Reg(f.rd), v1, opSym, f.imm, res)
	return trace.Line(pc, mnemonic, operands, effect)
}

func (h *Hart) execOp(pc uint32, inst uint32) string {
	f := decodeR(inst)
	v1, v2 := h.X[f.rs1], h.X[f.rs2]
	var res uint32
	var mnemonic, opSym string

	switch f.funct7 {
	case 0x00:
		switch f.funct3 {
		case 0:
			mnemonic, opSym = "add", "+"
			res = v1 + v2
		case 1:
			mnemonic, opSym = "sll", "<<"
			res = v1 << (v2 & 0x1F)
		case 2:
			mnemonic, opSym = "slt", "<s"
			if int32(v1) < int32(v2) {
				res = 1
			}
		case 3:
			mnemonic, opSym = "sltu", "<u"
			if v1 < v2 {
				res = 1
			}
		case 4:
			mnemonic, opSym = "xor", "^"
			res = v1 ^ v2
		case 5:
			mnemonic, opSym = "srl", ">>"
			res = v1 >> (v2 & 0x1F)
		case 6:
			mnemonic, opSym = "or", "|"
			res = v1 | v2
		case 7:
			mnemonic, opSym = "and", "&"
			res = v1 & v2
		default:
			h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
			return ""
		}
	case 0x20:
		switch f.funct3 {
		case 0:
			mnemonic, opSym = "sub", "-"
			res = v1 - v2
		case 5:
			mnemonic, opSym = "sra", "a>>"
			res = uint32(int32(v1) >> (v2 & 0x1F))
		default:
			h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
			return ""
		}
	case 0x01:
		mnemonic, opSym = mulDivOp(f.funct3, v1, v2, &res)
		if mnemonic == "" {
			h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
			return ""
		}
	default:
		h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
		return ""
	}

	h.writeReg(f.rd, res)
	h.advance()

	operands := fmt.Sprintf("%s,%s,%s", trace.Reg(f.rd), trace.Reg(f.rs1), trace.Reg(f.rs2))
	effect := fmt.Sprintf("%s=0x%x%s0x%x=0x%x", trace.Reg(f.rd), v1, opSym, v2, res)
	return trace.Line(pc, mnemonic, operands, effect)
}

// mulDivOp computes one M-extension result into *res and returns the
// mnemonic and its display operator; an empty mnemonic means funct3 named
// no defined operation.
func mulDivOp(funct3 uint8, v1, v2 uint32, res *uint32) (mnemonic, opSym string) {
	switch funct3 {
	case 0:
		*res = v1 * v2
		return "mul", "*"
	case 1:
		p := int64(int32(v1)) * int64(int32(v2))
		*res = uint32(p >> 32)
		return "mulh", "*h"
	case 2:
		p := int64(int32(v1)) * int64(v2)
		*res = uint32(uint64(p) >> 32)
		return "mulhsu", "*hsu"
	case 3:
		p := uint64(v1) * uint64(v2)
		*res = uint32(p >> 32)
		return "mulhu", "*hu"
	case 4:
		a, b := int32(v1), int32(v2)
		switch {
		case b == 0:
			*res = 0xFFFF_FFFF
		case a == math.MinInt32 && b == -1:
			*res = uint32(a)
		default:
			*res = uint32(a / b)
		}
		return "div", "/"
	case 5:
		if v2 == 0 {
			*res = 0xFFFF_FFFF
		} else {
			*res = v1 / v2
		}
		return "divu", "/u"
	case 6:
		a, b := int32(v1), int32(v2)
		switch {
		case b == 0:
			*res = v1
		case a == math.MinInt32 && b == -1:
			*res = 0
		default:
			*res = uint32(a % b)
		}
		return "rem", "%"
	case 7:
		if v2 == 0 {
			*res = v1
		} else {
			*res = v1 % v2
		}
		return "remu", "%u"
	default:
		return "", ""
	}
}

func (h *Hart) execLui(pc uint32, inst uint32) string {
	f := decodeU(inst)
	h.writeReg(f.rd, f.imm)
	h.advance()
	return trace.Line(pc, "lui", fmt.Sprintf("%s,0x%x", trace.Reg(f.rd), f.imm>>12),
		fmt.Sprintf("%s=0x%x", trace.Reg(f.rd), f.imm))
}

func (h *Hart) execAuipc(pc uint32, inst uint32) string {
	f := decodeU(inst)
	res := pc + f.imm
	h.writeReg(f.rd, res)
	h.advance()
	return trace.Line(pc, "auipc", fmt.Sprintf("%s,0x%x", trace.Reg(f.rd), f.imm>>12),
		fmt.Sprintf("%s=0x%x+0x%x=0x%x", trace.Reg(f.rd), pc, f.imm, res))
}

func (h *Hart) execJal(pc uint32, inst uint32) string {
	f := decodeJ(inst)
	ret := pc + 4
	target := pc + f.imm
	h.writeReg(f.rd, ret)
	h.PC = target
	return trace.Line(pc, "jal", fmt.Sprintf("%s,0x%05x", trace.Reg(f.rd), (f.imm>>1)&0xFFFFF),
		fmt.Sprintf("pc=0x%x,%s=0x%x", target, trace.Reg(f.rd), ret))
}

func (h *Hart) execJalr(pc uint32, inst uint32) string {
	f := decodeI(inst)
	v1 := h.X[f.rs1]
	ret := pc + 4
	target := (v1 + f.imm) &^ 1
	h.writeReg(f.rd, ret)
	h.PC = target
	return trace.Line(pc, "jalr", fmt.Sprintf("%s,%s,0x%x", trace.Reg(f.rd), trace.Reg(f.rs1), f.imm&0xFFF),
		fmt.Sprintf("pc=0x%x+0x%x,%s=0x%x", v1, f.imm&0xFFF, trace.Reg(f.rd), ret))
}

func (h *Hart) execBranch(pc uint32, inst uint32) string {
	f := decodeB(inst)
	v1, v2 := h.X[f.rs1], h.X[f.rs2]
	var taken bool
	var mnemonic, cmp string

	switch f.funct3 {
	case 0:
		mnemonic, cmp = "beq", "=="
		taken = v1 == v2
	case 1:
		mnemonic, cmp = "bne", "!="
		taken = v1 != v2
	case 4:
		mnemonic, cmp = "blt", "<s"
		taken = int32(v1) < int32(v2)
	case 5:
		mnemonic, cmp = "bge", ">=s"
		taken = int32(v1) >= int32(v2)
	case 6:
		mnemonic, cmp = "bltu", "<u"
		taken = v1 < v2
	case 7:
		mnemonic, cmp = "bgeu", ">=u"
		taken = v1 >= v2
	default:
		h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
		return ""
	}

	var next uint32
	if taken {
		next = pc + f.imm
	} else {
		next = pc + 4
	}
	h.PC = next

	takenBit := 0
	if taken {
		takenBit = 1
	}
	operands := fmt.Sprintf("%s,%s,0x%03x", trace.Reg(f.rs1), trace.Reg(f.rs2), (f.imm>>1)&0xFFF)
	effect := fmt.Sprintf("(0x%x%s0x%x)=%d->pc=0x%x", v1, cmp, v2, takenBit, next)
	return trace.Line(pc, mnemonic, operands, effect)
}

func (h *Hart) execLoad(pc uint32, inst uint32) string {
	f := decodeI(inst)
	addr := h.X[f.rs1] + f.imm

	var size uint32
	var mnemonic string
	var signed bool
	switch f.funct3 {
	case 0:
		mnemonic, size, signed = "lb", 1, true
	case 1:
		mnemonic, size, signed = "lh", 2, true
	case 2:
		mnemonic, size, signed = "lw", 4, false
	case 4:
		mnemonic, size, signed = "lbu", 1, false
	case 5:
		mnemonic, size, signed = "lhu", 2, false
	default:
		h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
		return ""
	}

	raw, ok := h.Bus.Load(addr, size)
	if !ok {
		h.Trap.Raise(&h.PC, trap.LoadAccessFault, addr)
		return ""
	}

	val := raw
	if signed {
		switch size {
		case 1:
			val = signExtend(raw, 7)
		case 2:
			val = signExtend(raw, 15)
		}
	}

	h.writeReg(f.rd, val)
	h.advance()
	operands := fmt.Sprintf("%s,0x%x(%s)", trace.Reg(f.rd), f.imm&0xFFF, trace.Reg(f.rs1))
	effect := fmt.Sprintf("%s=mem[0x%x]=0x%x", trace.Reg(f.rd), addr, val)
	return trace.Line(pc, mnemonic, operands, effect)
}

func (h *Hart) execStore(pc uint32, inst uint32) string {
	f := decodeS(inst)
	addr := h.X[f.rs1] + f.imm
	v2 := h.X[f.rs2]

	var size uint32
	var mnemonic string
	switch f.funct3 {
	case 0:
		mnemonic, size = "sb", 1
	case 1:
		mnemonic, size = "sh", 2
	case 2:
		mnemonic, size = "sw", 4
	default:
		h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
		return ""
	}

	if ok := h.Bus.Store(addr, v2, size); !ok {
		h.Trap.Raise(&h.PC, trap.StoreAccessFault, addr)
		return ""
	}

	h.advance()
	operands := fmt.Sprintf("%s,0x%x(%s)", trace.Reg(f.rs2), f.imm&0xFFF, trace.Reg(f.rs1))
	effect := fmt.Sprintf("mem[0x%x]=0x%x", addr, v2)
	return trace.Line(pc, mnemonic, operands, effect)
}

func (h *Hart) execSystem(pc uint32, inst uint32) (line string, forceEmit bool) {
	f := decodeI(inst)
	raw12 := f.imm & 0xFFF

	switch f.funct3 {
	case 0:
		switch raw12 {
		case 0x000:
			h.Trap.Raise(&h.PC, trap.EnvironmentCallM, 0)
			return trace.Simple(pc, "ecall"), true
		case 0x001:
			h.Halted = true
			h.advance()
			return trace.Simple(pc, "ebreak"), true
		case 0x302:
			h.PC = h.CSRs.Read(csr.Mepc)
			return trace.Simple(pc, "mret"), true
		default:
			h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
			return "", false
		}
	case 1, 2, 3, 5, 6, 7:
		return h.execCSR(pc, inst, f, raw12), false
	default:
		h.Trap.Raise(&h.PC, trap.IllegalInstruction, inst)
		return "", false
	}
}

func (h *Hart) execCSR(pc uint32, inst uint32, f itypeFields, csrIdx uint32) string {
	old := h.CSRs.Read(csrIdx)
	uimm := uint32(f.rs1)

	var mnemonic string
	var newVal uint32
	var srcText string

	switch f.funct3 {
	case 1:
		mnemonic = "csrrw"
		newVal = h.X[f.rs1]
		srcText = trace.Reg(f.rs1)
	case 2:
		mnemonic = "csrrs"
		newVal = old | h.X[f.rs1]
		srcText = trace.Reg(f.rs1)
	case 3:
		mnemonic = "csrrc"
		newVal = old &^ h.X[f.rs1]
		srcText = trace.Reg(f.rs1)
	case 5:
		mnemonic = "csrrwi"
		newVal = uimm
		srcText = fmt.Sprintf("0x%x", uimm)
	case 6:
		mnemonic = "csrrsi"
		newVal = old | uimm
		srcText = fmt.Sprintf("0x%x", uimm)
	case 7:
		mnemonic = "csrrci"
		newVal = old &^ uimm
		srcText = fmt.Sprintf("0x%x", uimm)
	}

	h.CSRs.Write(csrIdx, newVal)
	h.writeReg(f.rd, old)
	h.advance()

	operands := fmt.Sprintf("%s,%s,0x%x", trace.Reg(f.rd), srcText, csrIdx)
	effect := fmt.Sprintf("%s=0x%x", trace.Reg(f.rd), old)
	return trace.Line(pc, mnemonic, operands, effect)
}
