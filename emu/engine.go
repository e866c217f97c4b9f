package emu

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/minicorn-engine/minicorn/cpu"
)

// Engine is one emulated machine instance. It owns an address space, a hook
// registry and a register file, and drives an architecture backend through
// them. An Engine is not safe for concurrent mutation; the exception is
// Stop, which may be called from any goroutine.
type Engine struct {
	arch Arch
	mode Mode

	mem     *cpu.Mem
	regs    *cpu.Regs
	hooks   *cpu.Hooks
	backend cpu.Backend

	bits     uint
	order    binary.ByteOrder
	regNames map[int]string
	pcReg    int
	spReg    int

	running int32
	stopReq int32
	closed  bool

	lastErr cpu.Errno
}

// Open creates an engine for an architecture and mode combination.
func Open(arch Arch, mode Mode) (*Engine, error) {
	b, ok := archs[arch]
	if !ok {
		return nil, cpu.ERR_ARCH
	}
	e := &Engine{arch: arch, mode: mode}
	m, err := b.New(e, mode)
	if err != nil {
		return nil, err
	}
	e.mem = m.Mem
	e.regs = m.Regs
	e.hooks = m.Hooks
	e.backend = m.Backend
	e.bits = m.Bits
	e.order = m.Order
	e.regNames = m.RegNames
	e.pcReg = m.PC
	e.spReg = m.SP
	return e, nil
}

func (e *Engine) Arch() Arch { return e.arch }
func (e *Engine) Mode() Mode { return e.mode }
func (e *Engine) Bits() uint { return e.bits }

func (e *Engine) ByteOrder() binary.ByteOrder { return e.order }

// Mem exposes the address space facade, e.g. for the emulated access path.
func (e *Engine) Mem() *cpu.Mem { return e.mem }

// PCReg and SPReg return the architecture's enums for the program counter
// and stack pointer, so arch-neutral callers can seed or inspect them.
func (e *Engine) PCReg() int { return e.pcReg }
func (e *Engine) SPReg() int { return e.spReg }

// Errno returns the error recorded by the most recent fallible operation.
// It is overwritten by the next fallible call.
func (e *Engine) Errno() cpu.Errno {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.lastErr
}

// record stores err in the last-error slot and passes it through.
func (e *Engine) record(err error) error {
	e.lastErr = cpu.ToErrno(err)
	return err
}

func (e *Engine) MemMap(addr, size uint64, prot int) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.mem.MemMap(addr, size, prot))
}

func (e *Engine) MemProtect(addr, size uint64, prot int) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.mem.MemProtect(addr, size, prot))
}

func (e *Engine) MemUnmap(addr, size uint64) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.mem.MemUnmap(addr, size))
}

func (e *Engine) MemRead(addr, size uint64) ([]byte, error) {
	if e.closed {
		return nil, cpu.ERR_HANDLE
	}
	p, err := e.mem.MemRead(addr, size)
	return p, e.record(err)
}

func (e *Engine) MemReadInto(p []byte, addr uint64) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.mem.MemReadInto(p, addr))
}

func (e *Engine) MemWrite(addr uint64, p []byte) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.mem.MemWrite(addr, p))
}

// MemRegions lists the current mappings in address order.
func (e *Engine) MemRegions() ([]cpu.MemRegion, error) {
	if e.closed {
		return nil, cpu.ERR_HANDLE
	}
	return e.mem.Regions(), nil
}

func (e *Engine) RegRead(reg int) (uint64, error) {
	if e.closed {
		return 0, cpu.ERR_HANDLE
	}
	val, err := e.regs.RegRead(reg)
	return val, e.record(err)
}

func (e *Engine) RegWrite(reg int, val uint64) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.regs.RegWrite(reg, val))
}

func (e *Engine) RegReadBatch(regs []int) ([]uint64, error) {
	if e.closed {
		return nil, cpu.ERR_HANDLE
	}
	vals, err := e.regs.RegReadBatch(regs)
	return vals, e.record(err)
}

func (e *Engine) RegWriteBatch(regs []int, vals []uint64) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.regs.RegWriteBatch(regs, vals))
}

func (e *Engine) HookAdd(htype int, cb interface{}, begin, end uint64, extra ...int) (cpu.Hook, error) {
	if e.closed {
		return 0, cpu.ERR_HANDLE
	}
	hh, err := e.hooks.HookAdd(htype, cb, begin, end, extra...)
	return hh, e.record(err)
}

func (e *Engine) HookDel(hook cpu.Hook) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.hooks.HookDel(hook))
}

// ContextSave snapshots the register file; pass a previous snapshot to
// reuse its storage.
func (e *Engine) ContextSave(reuse interface{}) (interface{}, error) {
	if e.closed {
		return nil, cpu.ERR_HANDLE
	}
	ctx, err := e.regs.ContextSave(reuse)
	return ctx, e.record(err)
}

func (e *Engine) ContextRestore(ctx interface{}) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	return e.record(e.regs.ContextRestore(ctx))
}

// Close releases the engine. Hook handles become invalid and every further
// operation fails with ERR_HANDLE. Closing while running is a caller error.
func (e *Engine) Close() error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	if atomic.LoadInt32(&e.running) != 0 {
		return e.record(cpu.ERR_RUNNING)
	}
	e.closed = true
	e.mem = nil
	e.regs = nil
	e.hooks = nil
	e.backend = nil
	return nil
}
