package cpu

import "time"

// Hook is an opaque handle for a registered callback. Handles are unique for
// the lifetime of the engine that issued them and are never reused.
type Hook uint64

// Cpu is the engine surface visible to hook callbacks and decode backends.
// Callbacks run synchronously on the execution context that triggered them
// and may call back into the engine; a nested Start fails with ERR_RUNNING.
type Cpu interface {
	// memory mapping
	MemMap(addr, size uint64, prot int) error
	MemProtect(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error

	// memory IO, permission-blind
	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error

	// register IO
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error

	// execution
	Start(begin, until uint64, timeout time.Duration, count int) error
	Stop() error
	StopRequested() bool

	// hooks
	HookAdd(htype int, cb interface{}, begin, end uint64, extra ...int) (Hook, error)
	HookDel(hook Hook) error

	// cleanup
	Close() error
}

// Backend decodes and executes instructions against the engine core. One
// Step is one instruction: it returns the address of the next instruction
// and whether this one ended a basic block.
//
// A unit is all-or-nothing: a backend must raise any fault before mutating
// register or memory state, so a failing Step leaves nothing behind.
type Backend interface {
	Step(addr uint64) (next uint64, branched bool, err error)
}

// Ins is one decoded instruction, as produced by an architecture's
// disassembler.
type Ins interface {
	Addr() uint64
	Bytes() []byte
	Mnemonic() string
	OpStr() string
}
