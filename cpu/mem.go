package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Mem wraps MemSim with the rules the engine needs: page alignment, an
// address-width mask, and hook dispatch around emulated accesses.
type Mem struct {
	bits uint
	// methods reject ranges that do not fit inside mask
	mask uint64
	// Mem.hooks is set when passing *Mem to NewHooks()
	hooks *Hooks
	sim   *MemSim

	order binary.ByteOrder

	// reject unaligned uint accesses on the emulated path
	strictAlign bool
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		sim:   &MemSim{},
		order: order,
	}
}

// SetStrictAlign makes ReadUint/WriteUint require natural alignment, for
// architectures that fault on unaligned access.
func (m *Mem) SetStrictAlign(on bool) {
	m.strictAlign = on
}

func (m *Mem) ByteOrder() binary.ByteOrder {
	return m.order
}

// Regions lists the current mappings in address order.
func (m *Mem) Regions() []MemRegion {
	return m.sim.Regions()
}

func (m *Mem) MemMap(addr, size uint64, prot int) error {
	end := addr + size
	if end&m.mask != end || end < addr {
		return errors.Wrap(ERR_ARG, "region outside memory range")
	}
	if size == 0 || !Aligned(addr, uint64(PageSize)) || !Aligned(size, uint64(PageSize)) {
		return errors.Wrap(ERR_ARG, "unaligned mapping")
	}
	if prot&^PROT_ALL != 0 {
		return errors.Wrap(ERR_ARG, "bad protection bits")
	}
	return m.sim.Map(addr, size, prot)
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	if size == 0 || !Aligned(addr, uint64(PageSize)) || !Aligned(size, uint64(PageSize)) {
		return errors.Wrap(ERR_ARG, "unaligned unmap")
	}
	return m.sim.Unmap(addr, size)
}

func (m *Mem) MemProtect(addr, size uint64, prot int) error {
	if size == 0 || !Aligned(addr, uint64(PageSize)) || !Aligned(size, uint64(PageSize)) {
		return errors.Wrap(ERR_ARG, "unaligned protect")
	}
	if prot&^PROT_ALL != 0 {
		return errors.Wrap(ERR_ARG, "bad protection bits")
	}
	return m.sim.Prot(addr, size, prot)
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.sim.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p, 0)
}

// Replace swaps in an entirely new set of mappings with their contents.
// The new regions are validated and populated against a fresh store, so the
// current address space survives any failure intact.
func (m *Mem) Replace(regions []MemRegion, data [][]byte) error {
	if len(data) != len(regions) {
		return errors.Wrap(ERR_ARG, "region/data count mismatch")
	}
	old := m.sim
	m.sim = &MemSim{}
	for i, r := range regions {
		if uint64(len(data[i])) != r.Size {
			m.sim = old
			return errors.Wrapf(ERR_ARG, "region %#x content length mismatch", r.Addr)
		}
		if err := m.MemMap(r.Addr, r.Size, r.Prot); err != nil {
			m.sim = old
			return err
		}
		if err := m.MemWrite(r.Addr, data[i]); err != nil {
			m.sim = old
			return err
		}
	}
	return nil
}

// faultCheck validates an emulated access, giving fault hooks one chance to
// resolve it (typically by mapping the range) before the fault is final.
func (m *Mem) faultCheck(addr, size uint64, prot int, write bool, val int64) error {
	err := m.sim.check(addr, size, prot, write)
	if err == nil {
		return nil
	}
	merr := err.(*MemError)
	if m.hooks == nil || !m.hooks.OnFault(merr.Enum, addr, int(size), val) {
		return err
	}
	return m.sim.check(addr, size, prot, write)
}

// ReadProt reads while checking protections. This is the fetch/load path
// used during emulation; read hooks fire before the value is returned.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	if err := m.faultCheck(addr, size, prot, false, 0); err != nil {
		return nil, err
	}
	if m.hooks != nil {
		if prot&PROT_EXEC == PROT_EXEC {
			m.hooks.OnMem(MEM_FETCH, addr, int(size), 0)
		} else {
			m.hooks.OnMem(MEM_READ, addr, int(size), 0)
		}
	}
	p := make([]byte, size)
	if err := m.sim.Read(addr, p, prot); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteProt writes while checking protections. Write hooks fire before the
// bytes are committed.
func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	if err := m.faultCheck(addr, uint64(len(p)), prot, true, 0); err != nil {
		return err
	}
	if m.hooks != nil {
		m.hooks.OnMem(MEM_WRITE, addr, len(p), 0)
	}
	return m.sim.Write(addr, p, prot)
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	if size > 8 {
		return 0, errors.Wrapf(ERR_ARG, "read size too large: %d > 8", size)
	}
	if m.strictAlign && size > 1 && !Aligned(addr, uint64(size)) {
		return 0, errors.Wrapf(ERR_READ_UNALIGNED, "at %#x(%d)", addr, size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	return UnpackUint(m.order, size, p)
}

func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Wrapf(ERR_ARG, "write size too large: %d > 8", size)
	}
	if m.strictAlign && size > 1 && !Aligned(addr, uint64(size)) {
		return errors.Wrapf(ERR_WRITE_UNALIGNED, "at %#x(%d)", addr, size)
	}
	if _, err := PackUint(m.order, size, buf[:], val); err != nil {
		return err
	}
	if err := m.faultCheck(addr, uint64(size), prot, true, int64(val)); err != nil {
		return err
	}
	if m.hooks != nil {
		m.hooks.OnMem(MEM_WRITE, addr, size, int64(val))
	}
	return m.sim.Write(addr, buf[:size], prot)
}
