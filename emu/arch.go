package emu

import (
	"encoding/binary"

	"github.com/minicorn-engine/minicorn/cpu"
)

// Arch selects an instruction set at Open time.
type Arch int

const (
	ARCH_TINY32 Arch = 1 + iota
)

// Mode refines an architecture. Width and endianness bits combine.
type Mode int

const (
	MODE_LITTLE_ENDIAN Mode = 0
	MODE_16            Mode = 1 << 1
	MODE_32            Mode = 1 << 2
	MODE_64            Mode = 1 << 3
	MODE_BIG_ENDIAN    Mode = 1 << 30
)

// Machine is everything a Builder assembles for one engine instance.
type Machine struct {
	Mem     *cpu.Mem
	Regs    *cpu.Regs
	Hooks   *cpu.Hooks
	Backend cpu.Backend

	Bits  uint
	Order binary.ByteOrder

	// register metadata for dumps and snapshots
	RegNames map[int]string
	PC, SP   int
}

// Builder constructs a Machine for one architecture. The cpu.Cpu passed in
// is the engine handle under construction; hook callbacks receive it.
type Builder interface {
	New(c cpu.Cpu, mode Mode) (*Machine, error)
}

var archs = map[Arch]Builder{}

// Register installs a Builder for an architecture. Called from architecture
// package init; duplicate registration is a programming error.
func Register(a Arch, b Builder) {
	if _, ok := archs[a]; ok {
		panic("duplicate architecture registration")
	}
	archs[a] = b
}

// ArchSupported reports whether Open can build the given architecture.
func ArchSupported(a Arch) bool {
	_, ok := archs[a]
	return ok
}
