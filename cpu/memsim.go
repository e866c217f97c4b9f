package cpu

import "sort"

// MemRegion describes one mapped region without exposing its backing storage.
type MemRegion struct {
	Addr uint64
	Size uint64
	Prot int
}

// MemSim is a sorted collection of non-overlapping regions. It knows nothing
// about alignment or architectures; Mem layers those rules on top.
type MemSim struct {
	Mem Pages
}

// Checks whether the address range exists in the currently-mapped memory.
// If prot > 0, ensures that each region has the entire protection mask provided.
func (m *MemSim) RangeValid(addr, size uint64, prot int) (mapGood bool, protGood bool) {
	first := m.Mem.bsearch(addr)
	if first == -1 {
		return false, false
	}
	protGood = true
	end := addr + size
	for _, mm := range m.Mem[first:] {
		if !mm.Contains(addr) {
			break
		}
		if prot > 0 && mm.Prot&prot != prot {
			protGood = false
		}
		addr = mm.Addr + mm.Size
		if addr >= end {
			break
		}
	}
	return addr >= end, protGood
}

// Overlaps reports whether any part of [addr, addr+size) is mapped.
func (m *MemSim) Overlaps(addr, size uint64) bool {
	for _, mm := range m.Mem {
		if mm.Addr >= addr+size {
			break
		}
		if mm.Overlaps(addr, size) {
			return true
		}
	}
	return false
}

// Map inserts a zero-filled region. The range must not intersect an existing
// region; the caller validates alignment.
func (m *MemSim) Map(addr, size uint64, prot int) error {
	if m.Overlaps(addr, size) {
		return ERR_MAP
	}
	page := &Page{Addr: addr, Size: size, Prot: prot, Data: make([]byte, size)}
	m.Mem = append(m.Mem, page)
	sort.Sort(m.Mem)
	return nil
}

// span returns the regions exactly tiling [addr, addr+size): the range must
// begin and end on region boundaries with no gaps. A range touching unmapped
// space fails with ERR_MAP; one cutting into the middle of a region fails
// with ERR_ARG.
func (m *MemSim) span(addr, size uint64) (Pages, error) {
	first := m.Mem.bsearch(addr)
	if first == -1 {
		return nil, ERR_MAP
	}
	if m.Mem[first].Addr != addr {
		return nil, ERR_ARG
	}
	end := addr + size
	var out Pages
	pos := addr
	for _, mm := range m.Mem[first:] {
		if mm.Addr != pos {
			return nil, ERR_MAP
		}
		out = append(out, mm)
		pos = mm.Addr + mm.Size
		if pos == end {
			return out, nil
		}
		if pos > end {
			return nil, ERR_ARG
		}
	}
	return nil, ERR_MAP
}

// Unmap removes the regions tiling [addr, addr+size). Partial unmap of a
// region is not allowed.
func (m *MemSim) Unmap(addr, size uint64) error {
	doomed, err := m.span(addr, size)
	if err != nil {
		return err
	}
	tmp := make(Pages, 0, len(m.Mem)-len(doomed))
	for _, mm := range m.Mem {
		if !mm.Overlaps(addr, size) {
			tmp = append(tmp, mm)
		}
	}
	m.Mem = tmp
	return nil
}

// Prot changes the protection of the regions tiling [addr, addr+size).
func (m *MemSim) Prot(addr, size uint64, prot int) error {
	pages, err := m.span(addr, size)
	if err != nil {
		return err
	}
	for _, mm := range pages {
		mm.Prot = prot
	}
	return nil
}

// Regions lists the current mappings in address order.
func (m *MemSim) Regions() []MemRegion {
	out := make([]MemRegion, len(m.Mem))
	for i, mm := range m.Mem {
		out[i] = MemRegion{Addr: mm.Addr, Size: mm.Size, Prot: mm.Prot}
	}
	return out
}

// Read copies out of mapped memory, spanning adjacent regions. If prot > 0
// every touched region must carry the full mask.
func (m *MemSim) Read(addr uint64, p []byte, prot int) error {
	if err := m.check(addr, uint64(len(p)), prot, false); err != nil {
		return err
	}
	i := m.Mem.bsearch(addr)
	if i >= 0 {
		for _, mm := range m.Mem[i:] {
			if !mm.Contains(addr) {
				break
			}
			o := addr - mm.Addr
			n := copy(p, mm.Data[o:])
			addr, p = addr+uint64(n), p[n:]
		}
	}
	return nil
}

// Write copies into mapped memory, spanning adjacent regions.
func (m *MemSim) Write(addr uint64, p []byte, prot int) error {
	if err := m.check(addr, uint64(len(p)), prot, true); err != nil {
		return err
	}
	i := m.Mem.bsearch(addr)
	if i >= 0 {
		for _, mm := range m.Mem[i:] {
			if !mm.Contains(addr) {
				break
			}
			o := addr - mm.Addr
			n := copy(mm.Data[o:], p)
			addr, p = addr+uint64(n), p[n:]
		}
	}
	return nil
}

func (m *MemSim) check(addr, size uint64, prot int, write bool) error {
	gmap, gprot := m.RangeValid(addr, size, prot)
	if gmap && gprot {
		return nil
	}
	enum := MEM_READ_UNMAPPED
	switch {
	case write && gmap:
		enum = MEM_WRITE_PROT
	case write:
		enum = MEM_WRITE_UNMAPPED
	case prot&PROT_EXEC == PROT_EXEC && gmap:
		enum = MEM_FETCH_PROT
	case prot&PROT_EXEC == PROT_EXEC:
		enum = MEM_FETCH_UNMAPPED
	case gmap:
		enum = MEM_READ_PROT
	}
	return &MemError{Addr: addr, Size: int(size), Enum: enum}
}
