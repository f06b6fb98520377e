package hart

// Major opcodes (instruction bits [6:0]).
const (
	opLoad   = 0x03
	opOpImm  = 0x13
	opAuipc  = 0x17
	opStore  = 0x23
	opOp     = 0x33
	opLui    = 0x37
	opBranch = 0x63
	opJalr   = 0x67
	opJal    = 0x6F
	opSystem = 0x73
)

// bitrange extracts a len-bit field starting at bit fromBit.
func bitrange(inst uint32, fromBit, length uint) uint32 {
	return (inst >> fromBit) & ((1 << length) - 1)
}

// signExtend replicates bit `bit` of n into every higher bit.
func signExtend(n uint32, bit uint) uint32 {
	if n&(1<<bit) != 0 {
		n |= ^((uint32(1) << bit) - 1)
	}
	return n
}

type itypeFields struct {
	opcode, rd, funct3, rs1 uint8
	imm                     uint32
}

func decodeI(inst uint32) itypeFields {
	return itypeFields{
		opcode:  uint8(bitrange(inst, 0, 7)),
		rd:      uint8(bitrange(inst, 7, 5)),
		funct3:  uint8(bitrange(inst, 12, 3)),
		rs1:     uint8(bitrange(inst, 15, 5)),
		imm:     signExtend(bitrange(inst, 20, 12), 11),
	}
}

type rtypeFields struct {
	opcode, rd, funct3, rs1, rs2, funct7 uint8
}

func decodeR(inst uint32) rtypeFields {
	return rtypeFields{
		opcode: uint8(bitrange(inst, 0, 7)),
		rd:     uint8(bitrange(inst, 7, 5)),
		funct3: uint8(bitrange(inst, 12, 3)),
		rs1:    uint8(bitrange(inst, 15, 5)),
		rs2:    uint8(bitrange(inst, 20, 5)),
		funct7: uint8(bitrange(inst, 25, 7)),
	}
}

type stypeFields struct {
	opcode, funct3, rs1, rs2 uint8
	imm                      uint32
}

func decodeS(inst uint32) stypeFields {
	imm := bitrange(inst, 7, 5) | bitrange(inst, 25, 7)<<5
	return stypeFields{
		opcode: uint8(bitrange(inst, 0, 7)),
		funct3: uint8(bitrange(inst, 12, 3)),
		rs1:    uint8(bitrange(inst, 15, 5)),
		rs2:    uint8(bitrange(inst, 20, 5)),
		imm:    signExtend(imm, 11),
	}
}

type btypeFields struct {
	opcode, funct3, rs1, rs2 uint8
	imm                      uint32
}

func decodeB(inst uint32) btypeFields {
	imm := bitrange(inst, 8, 4)<<1 |
		bitrange(inst, 25, 6)<<5 |
		bitrange(inst, 7, 1)<<11 |
		bitrange(inst, 31, 1)<<12
	return btypeFields{
		opcode: uint8(bitrange(inst, 0, 7)),
		funct3: uint8(bitrange(inst, 12, 3)),
		rs1:    uint8(bitrange(inst, 15, 5)),
		rs2:    uint8(bitrange(inst, 20, 5)),
		imm:    signExtend(imm, 12),
	}
}

type utypeFields struct {
	opcode, rd uint8
	imm        uint32
}

func decodeU(inst uint32) utypeFields {
	return utypeFields{
		opcode: uint8(bitrange(inst, 0, 7)),
		rd:     uint8(bitrange(inst, 7, 5)),
		imm:    inst & 0xFFFF_F000,
	}
}

type jtypeFields struct {
	opcode, rd uint8
	imm        uint32
}

func decodeJ(inst uint32) jtypeFields {
	imm := bitrange(inst, 21, 10)<<1 |
		bitrange(inst, 20, 1)<<11 |
		bitrange(inst, 12, 8)<<12 |
		bitrange(inst, 31, 1)<<20
	return jtypeFields{
		opcode: uint8(bitrange(inst, 0, 7)),
		rd:     uint8(bitrange(inst, 7, 5)),
		imm:    signExtend(imm, 20),
	}
}
