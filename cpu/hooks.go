package cpu

import "github.com/pkg/errors"

// callback signatures by category:
//   code/block:  func(Cpu, addr uint64, size uint32)
//   interrupt:   func(Cpu, intno uint32)
//   mem access:  func(Cpu, access int, addr uint64, size int, val int64)
//   mem fault:   func(Cpu, access int, addr uint64, size int, val int64) bool
//   insn input:  func(Cpu, port uint32, size int) uint32
//   insn output: func(Cpu, port uint32, size int, val uint32)

type hookInfo struct {
	id    Hook
	htype int
	start uint64
	end   uint64
}

func (h *hookInfo) Contains(addr uint64) bool {
	return h.start > h.end || addr >= h.start && addr <= h.end
}

type codeHook struct {
	hookInfo
	cb func(Cpu, uint64, uint32)
}

type intrHook struct {
	hookInfo
	cb func(Cpu, uint32)
}

type memHook struct {
	hookInfo
	cb func(Cpu, int, uint64, int, int64)
}

type memFaultHook struct {
	hookInfo
	cb func(Cpu, int, uint64, int, int64) bool
}

type insnHook struct {
	hookInfo
	insn int
	in   func(Cpu, uint32, int) uint32
	out  func(Cpu, uint32, int, uint32)
}

// Hooks owns every registered callback for one engine and dispatches them in
// registration order at the contracted execution points.
type Hooks struct {
	cpu    Cpu
	nextID Hook
	owned  map[Hook]interface{}

	code  []*codeHook
	block []*codeHook
	intr  []*intrHook
	mem   []*memHook
	fault []*memFaultHook
	insn  map[int]*insnHook
}

// NewHooks creates an empty registry, optionally attaching to a *Mem so
// memory accesses dispatch automatically.
func NewHooks(cpu Cpu, mem *Mem) *Hooks {
	h := &Hooks{
		cpu:   cpu,
		owned: make(map[Hook]interface{}),
		insn:  make(map[int]*insnHook),
	}
	if mem != nil {
		mem.hooks = h
	}
	return h
}

const hookMemValid = HOOK_MEM_READ | HOOK_MEM_WRITE | HOOK_MEM_FETCH

func (h *Hooks) issue(htype int, start, end uint64) hookInfo {
	h.nextID++
	return hookInfo{id: h.nextID, htype: htype, start: start, end: end}
}

// HookAdd registers a callback and returns its handle. Handles are unique
// for the registry's lifetime. For HOOK_INSN the instruction enum is passed
// as the single extra argument and only one hook per instruction may exist.
func (h *Hooks) HookAdd(htype int, cb interface{}, start uint64, end uint64, extra ...int) (Hook, error) {
	info := h.issue(htype, start, end)
	switch {
	case htype == HOOK_BLOCK:
		cbc, ok := cb.(func(Cpu, uint64, uint32))
		if !ok {
			return 0, errors.Wrap(ERR_ARG, "bad block callback")
		}
		hh := &codeHook{info, cbc}
		h.block = append(h.block, hh)
		h.owned[info.id] = hh

	case htype == HOOK_CODE:
		cbc, ok := cb.(func(Cpu, uint64, uint32))
		if !ok {
			return 0, errors.Wrap(ERR_ARG, "bad code callback")
		}
		hh := &codeHook{info, cbc}
		h.code = append(h.code, hh)
		h.owned[info.id] = hh

	case htype == HOOK_INTR:
		cbc, ok := cb.(func(Cpu, uint32))
		if !ok {
			return 0, errors.Wrap(ERR_ARG, "bad interrupt callback")
		}
		hh := &intrHook{info, cbc}
		h.intr = append(h.intr, hh)
		h.owned[info.id] = hh

	case htype == HOOK_INSN:
		if len(extra) != 1 {
			return 0, errors.Wrap(ERR_ARG, "instruction hook needs an instruction enum")
		}
		if _, ok := h.insn[extra[0]]; ok {
			return 0, ERR_HOOK_EXIST
		}
		hh := &insnHook{hookInfo: info, insn: extra[0]}
		switch cbc := cb.(type) {
		case func(Cpu, uint32, int) uint32:
			hh.in = cbc
		case func(Cpu, uint32, int, uint32):
			hh.out = cbc
		default:
			return 0, errors.Wrap(ERR_ARG, "bad instruction callback")
		}
		h.insn[extra[0]] = hh
		h.owned[info.id] = hh

	case htype != 0 && htype&hookMemValid == htype:
		cbc, ok := cb.(func(Cpu, int, uint64, int, int64))
		if !ok {
			return 0, errors.Wrap(ERR_ARG, "bad memory callback")
		}
		hh := &memHook{info, cbc}
		h.mem = append(h.mem, hh)
		h.owned[info.id] = hh

	case htype != 0 && htype&HOOK_MEM_INVALID == htype:
		cbc, ok := cb.(func(Cpu, int, uint64, int, int64) bool)
		if !ok {
			return 0, errors.Wrap(ERR_ARG, "bad fault callback")
		}
		hh := &memFaultHook{info, cbc}
		h.fault = append(h.fault, hh)
		h.owned[info.id] = hh

	default:
		return 0, ERR_HOOK
	}
	return info.id, nil
}

// HookDel removes a hook by handle. A handle not issued by this registry, or
// already deleted, fails with ERR_HANDLE.
func (h *Hooks) HookDel(hh Hook) error {
	entry, ok := h.owned[hh]
	if !ok {
		return ERR_HANDLE
	}
	delete(h.owned, hh)
	// removal always builds a fresh slice: a callback may delete hooks while
	// a dispatch loop is still ranging over the old one
	switch e := entry.(type) {
	case *codeHook:
		if e.htype == HOOK_BLOCK {
			h.block = delCode(h.block, e)
		} else {
			h.code = delCode(h.code, e)
		}
	case *intrHook:
		var tmp []*intrHook
		for _, v := range h.intr {
			if v != e {
				tmp = append(tmp, v)
			}
		}
		h.intr = tmp
	case *memHook:
		var tmp []*memHook
		for _, v := range h.mem {
			if v != e {
				tmp = append(tmp, v)
			}
		}
		h.mem = tmp
	case *memFaultHook:
		var tmp []*memFaultHook
		for _, v := range h.fault {
			if v != e {
				tmp = append(tmp, v)
			}
		}
		h.fault = tmp
	case *insnHook:
		delete(h.insn, e.insn)
	}
	return nil
}

func delCode(list []*codeHook, e *codeHook) []*codeHook {
	var tmp []*codeHook
	for _, v := range list {
		if v != e {
			tmp = append(tmp, v)
		}
	}
	return tmp
}

func (h *Hooks) OnBlock(addr uint64, size uint32) {
	for _, v := range h.block {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, size)
		}
	}
}

func (h *Hooks) OnCode(addr uint64, size uint32) {
	for _, v := range h.code {
		if v.Contains(addr) {
			v.cb(h.cpu, addr, size)
		}
	}
}

func (h *Hooks) OnIntr(intno uint32) {
	for _, v := range h.intr {
		v.cb(h.cpu, intno)
	}
}

func (h *Hooks) OnMem(access int, addr uint64, size int, val int64) {
	bit := hookBitFor(access)
	for _, v := range h.mem {
		if v.htype&bit != 0 && v.Contains(addr) {
			v.cb(h.cpu, access, addr, size, val)
		}
	}
}

// OnFault dispatches an invalid access to every matching fault hook, in
// registration order. The access may continue only if at least one hook
// fired and none voted to stop.
func (h *Hooks) OnFault(access int, addr uint64, size int, val int64) bool {
	bit := hookBitFor(access)
	fired := false
	cont := true
	for _, v := range h.fault {
		if v.htype&bit != 0 && v.Contains(addr) {
			fired = true
			if !v.cb(h.cpu, access, addr, size, val) {
				cont = false
			}
		}
	}
	return fired && cont
}

// OnInsnIn asks the input hook for the given instruction enum to supply a
// value. Without a hook the input reads as zero.
func (h *Hooks) OnInsnIn(insn int, port uint32, size int) uint32 {
	if v, ok := h.insn[insn]; ok && v.in != nil {
		return v.in(h.cpu, port, size)
	}
	return 0
}

func (h *Hooks) OnInsnOut(insn int, port uint32, size int, val uint32) {
	if v, ok := h.insn[insn]; ok && v.out != nil {
		v.out(h.cpu, port, size, val)
	}
}
