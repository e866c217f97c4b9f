// Package tiny32 is the reference decode/execute backend: a little
// 32/16-bit load-store machine with a fixed 8-byte encoding, port IO and a
// syscall trap, enough to exercise every engine surface.
package tiny32

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/minicorn-engine/minicorn/cpu"
	"github.com/minicorn-engine/minicorn/emu"
)

type instruction struct {
	Op  uint8
	Ra  uint8
	Rb  uint8
	Pad uint8 `struc:"pad"`
	Imm uint32
}

func decode(code []byte, order binary.ByteOrder) (*instruction, error) {
	var ins instruction
	if err := struc.UnpackWithOrder(bytes.NewReader(code), &ins, order); err != nil {
		return nil, errors.Wrap(cpu.ERR_INSN_INVALID, err.Error())
	}
	return &ins, nil
}

type Builder struct{}

func (b *Builder) New(c cpu.Cpu, mode emu.Mode) (*emu.Machine, error) {
	if mode&^(emu.MODE_16|emu.MODE_32|emu.MODE_BIG_ENDIAN) != 0 {
		return nil, cpu.ERR_MODE
	}
	bits := uint(32)
	word := 4
	switch mode & (emu.MODE_16 | emu.MODE_32) {
	case emu.MODE_16:
		bits, word = 16, 2
	case emu.MODE_32, 0:
	default:
		return nil, cpu.ERR_MODE
	}
	var order binary.ByteOrder = binary.LittleEndian
	if mode&emu.MODE_BIG_ENDIAN != 0 {
		order = binary.BigEndian
	}

	mem := cpu.NewMem(bits, order)
	mem.SetStrictAlign(true)
	regs := cpu.NewRegs(bits, []int{
		R0, R1, R2, R3, R4, R5, R6, R7,
		SP, PC, ZF,
	})
	hooks := cpu.NewHooks(c, mem)
	t := &CPU{
		c:     c,
		mem:   mem,
		regs:  regs,
		hooks: hooks,
		order: order,
		mask:  ^uint64(0) >> (64 - bits),
		word:  word,
	}
	return &emu.Machine{
		Mem:      mem,
		Regs:     regs,
		Hooks:    hooks,
		Backend:  t,
		Bits:     bits,
		Order:    order,
		RegNames: regNames,
		PC:       PC,
		SP:       SP,
	}, nil
}

func init() {
	emu.Register(emu.ARCH_TINY32, &Builder{})
}

type CPU struct {
	c     cpu.Cpu
	mem   *cpu.Mem
	regs  *cpu.Regs
	hooks *cpu.Hooks
	order binary.ByteOrder
	mask  uint64
	word  int
}

func (t *CPU) get(n uint8) uint64 {
	val, _ := t.regs.RegRead(int(n))
	return val
}

func validReg(n uint8) bool {
	return n <= SP
}

func rbool(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Step executes the instruction at addr. Faults are raised before any
// register or memory state changes, so a failed unit commits nothing.
func (t *CPU) Step(addr uint64) (uint64, bool, error) {
	if !cpu.Aligned(addr, uint64(InsnSize)) {
		return addr, false, errors.Wrapf(cpu.ERR_FETCH_UNALIGNED, "at %#x", addr)
	}
	code, err := t.mem.ReadProt(addr, InsnSize, cpu.PROT_EXEC)
	if err != nil {
		return addr, false, err
	}
	ins, err := decode(code, t.order)
	if err != nil {
		return addr, false, err
	}
	data, ok := opData[ins.Op]
	if !ok {
		return addr, false, errors.Wrapf(cpu.ERR_INSN_INVALID, "op %#x at %#x", ins.Op, addr)
	}
	if (data.args != argNone && data.args != argImm) && !validReg(ins.Ra) ||
		(data.args == argRaRb || data.args == argRaMem || data.args == argMemRa) && !validReg(ins.Rb) {
		return addr, false, errors.Wrapf(cpu.ERR_INSN_INVALID, "bad register at %#x", addr)
	}

	t.hooks.OnCode(addr, InsnSize)
	// a hook may have requested a stop; this instruction must not run
	if t.c.StopRequested() {
		return addr, false, nil
	}

	next := (addr + InsnSize) & t.mask
	imm := uint64(ins.Imm) & t.mask
	branched := false
	zf := t.get(ZF) == 1
	sp := t.get(SP)

	// deferred register commits, applied only once the unit cannot fault
	type regWrite struct {
		enum int
		val  uint64
	}
	var commits []regWrite
	set := func(enum int, val uint64) {
		commits = append(commits, regWrite{enum, val})
	}
	zfcheck := func(val uint64) uint64 {
		zf = val&t.mask == 0
		return val
	}

	switch ins.Op {
	case OP_NOP:
	case OP_HLT:
		return next, false, cpu.ExitStatus(ins.Imm)

	case OP_MOV:
		set(int(ins.Ra), t.get(ins.Rb))
	case OP_MOVI:
		set(int(ins.Ra), imm)

	case OP_ADD:
		set(int(ins.Ra), zfcheck(t.get(ins.Ra)+t.get(ins.Rb)))
	case OP_SUB:
		set(int(ins.Ra), zfcheck(t.get(ins.Ra)-t.get(ins.Rb)))
	case OP_AND:
		set(int(ins.Ra), zfcheck(t.get(ins.Ra)&t.get(ins.Rb)))
	case OP_OR:
		set(int(ins.Ra), zfcheck(t.get(ins.Ra)|t.get(ins.Rb)))
	case OP_XOR:
		set(int(ins.Ra), zfcheck(t.get(ins.Ra)^t.get(ins.Rb)))
	case OP_ADDI:
		set(int(ins.Ra), zfcheck(t.get(ins.Ra)+imm))
	case OP_CMP:
		zf = t.get(ins.Ra) == t.get(ins.Rb)

	case OP_LD, OP_LDB:
		size := t.word
		if ins.Op == OP_LDB {
			size = 1
		}
		ea := (t.get(ins.Rb) + imm) & t.mask
		val, err := t.mem.ReadUint(ea, size, cpu.PROT_READ)
		if err != nil {
			return addr, false, err
		}
		set(int(ins.Ra), val)
	case OP_ST, OP_STB:
		size := t.word
		if ins.Op == OP_STB {
			size = 1
		}
		ea := (t.get(ins.Rb) + imm) & t.mask
		if err := t.mem.WriteUint(ea, size, cpu.PROT_WRITE, t.get(ins.Ra)); err != nil {
			return addr, false, err
		}

	case OP_JMP:
		next = imm
		branched = true
	case OP_JZ:
		if zf {
			next = imm
		}
		branched = true
	case OP_JNZ:
		if !zf {
			next = imm
		}
		branched = true

	case OP_CALL:
		sp = (sp - uint64(t.word)) & t.mask
		if err := t.mem.WriteUint(sp, t.word, cpu.PROT_WRITE, next); err != nil {
			return addr, false, err
		}
		set(SP, sp)
		next = imm
		branched = true
	case OP_RET:
		val, err := t.mem.ReadUint(sp, t.word, cpu.PROT_READ)
		if err != nil {
			return addr, false, err
		}
		set(SP, sp+uint64(t.word))
		next = val
		branched = true

	case OP_PUSH:
		sp = (sp - uint64(t.word)) & t.mask
		if err := t.mem.WriteUint(sp, t.word, cpu.PROT_WRITE, t.get(ins.Ra)); err != nil {
			return addr, false, err
		}
		set(SP, sp)
	case OP_POP:
		val, err := t.mem.ReadUint(sp, t.word, cpu.PROT_READ)
		if err != nil {
			return addr, false, err
		}
		set(int(ins.Ra), val)
		set(SP, sp+uint64(t.word))

	case OP_SYS:
		t.hooks.OnIntr(ins.Imm)

	case OP_IN:
		set(int(ins.Ra), uint64(t.hooks.OnInsnIn(INSN_IN, ins.Imm, t.word)))
	case OP_OUT:
		t.hooks.OnInsnOut(INSN_OUT, ins.Imm, t.word, uint32(t.get(ins.Ra)))

	default:
		return addr, false, errors.Wrapf(cpu.ERR_INSN_INVALID, "op %#x at %#x", ins.Op, addr)
	}

	for _, w := range commits {
		t.regs.RegWrite(w.enum, w.val)
	}
	t.regs.RegWrite(ZF, rbool(zf))
	t.regs.RegWrite(PC, next)
	return next, branched, nil
}
