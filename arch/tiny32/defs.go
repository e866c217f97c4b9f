package tiny32

// register enums
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	SP
	PC
	ZF
)

var regNames = map[int]string{
	R0: "r0", R1: "r1", R2: "r2", R3: "r3",
	R4: "r4", R5: "r5", R6: "r6", R7: "r7",
	SP: "sp", PC: "pc", ZF: "zf",
}

// Every instruction is InsnSize bytes: op, ra, rb, pad, imm32.
const InsnSize = 8

const (
	OP_NOP  = 0x00
	OP_HLT  = 0x01
	OP_MOV  = 0x02
	OP_MOVI = 0x03
	OP_LD   = 0x04
	OP_ST   = 0x05
	OP_LDB  = 0x06
	OP_STB  = 0x07
	OP_ADD  = 0x08
	OP_SUB  = 0x09
	OP_AND  = 0x0a
	OP_OR   = 0x0b
	OP_XOR  = 0x0c
	OP_ADDI = 0x0d
	OP_CMP  = 0x0e
	OP_JMP  = 0x10
	OP_JZ   = 0x11
	OP_JNZ  = 0x12
	OP_CALL = 0x13
	OP_RET  = 0x14
	OP_PUSH = 0x15
	OP_POP  = 0x16
	OP_SYS  = 0x17
	OP_IN   = 0x18
	OP_OUT  = 0x19
)

// instruction enums for HOOK_INSN
const (
	INSN_IN = 1 + iota
	INSN_OUT
)

// operand kinds, for the disassembler
const (
	argNone = iota
	argRa
	argRaRb
	argRaImm
	argRaMem // ra, [rb+imm]
	argMemRa // [rb+imm], ra
	argImm
	argImmRa
)

type opdef struct {
	name string
	args int
}

var opData = map[uint8]opdef{
	OP_NOP:  {"nop", argNone},
	OP_HLT:  {"hlt", argImm},
	OP_MOV:  {"mov", argRaRb},
	OP_MOVI: {"movi", argRaImm},
	OP_LD:   {"ld", argRaMem},
	OP_ST:   {"st", argMemRa},
	OP_LDB:  {"ldb", argRaMem},
	OP_STB:  {"stb", argMemRa},
	OP_ADD:  {"add", argRaRb},
	OP_SUB:  {"sub", argRaRb},
	OP_AND:  {"and", argRaRb},
	OP_OR:   {"or", argRaRb},
	OP_XOR:  {"xor", argRaRb},
	OP_ADDI: {"addi", argRaImm},
	OP_CMP:  {"cmp", argRaRb},
	OP_JMP:  {"jmp", argImm},
	OP_JZ:   {"jz", argImm},
	OP_JNZ:  {"jnz", argImm},
	OP_CALL: {"call", argImm},
	OP_RET:  {"ret", argNone},
	OP_PUSH: {"push", argRa},
	OP_POP:  {"pop", argRa},
	OP_SYS:  {"sys", argImm},
	OP_IN:   {"in", argRaImm},
	OP_OUT:  {"out", argImmRa},
}
