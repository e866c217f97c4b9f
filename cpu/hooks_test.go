package cpu

import "testing"

func codeCb(hits *[]int, n int) func(Cpu, uint64, uint32) {
	return func(c Cpu, addr uint64, size uint32) {
		*hits = append(*hits, n)
	}
}

func TestHookHandles(t *testing.T) {
	h := NewHooks(nil, nil)
	var hits []int
	h1, err := h.HookAdd(HOOK_CODE, codeCb(&hits, 1), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := h.HookAdd(HOOK_CODE, codeCb(&hits, 2), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("handles must be unique")
	}
	if err := h.HookDel(h1); err != nil {
		t.Fatal(err)
	}
	if err := h.HookDel(h1); err != ERR_HANDLE {
		t.Fatalf("double delete: expected ERR_HANDLE, got %v", err)
	}
	if err := h.HookDel(Hook(0xdead)); err != ERR_HANDLE {
		t.Fatalf("unknown handle: expected ERR_HANDLE, got %v", err)
	}
	h.OnCode(0x1000, 4)
	if len(hits) != 1 || hits[0] != 2 {
		t.Fatalf("deleted hook still firing: %v", hits)
	}
	// handles are never reissued
	h3, err := h.HookAdd(HOOK_CODE, codeCb(&hits, 3), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if h3 == h1 || h3 == h2 {
		t.Fatalf("handle reuse: %d", h3)
	}
}

func TestHookDelDuringDispatch(t *testing.T) {
	h := NewHooks(nil, nil)
	var hits []int
	var self Hook
	var err error
	// the first hook removes itself while OnCode is still dispatching
	self, err = h.HookAdd(HOOK_CODE, func(c Cpu, addr uint64, size uint32) {
		hits = append(hits, 1)
		if err := h.HookDel(self); err != nil {
			t.Errorf("self delete: %v", err)
		}
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 2; i <= 3; i++ {
		if _, err := h.HookAdd(HOOK_CODE, codeCb(&hits, i), 1, 0); err != nil {
			t.Fatal(err)
		}
	}
	h.OnCode(0x1000, 4)
	want := []int{1, 2, 3}
	if len(hits) != len(want) {
		t.Fatalf("in-dispatch delete broke ordering: %v", hits)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Fatalf("in-dispatch delete broke ordering: %v", hits)
		}
	}
	// the deleted hook is gone on the next dispatch
	hits = nil
	h.OnCode(0x1000, 4)
	if len(hits) != 2 || hits[0] != 2 || hits[1] != 3 {
		t.Fatalf("second dispatch: %v", hits)
	}
}

func TestFaultHookDelDuringDispatch(t *testing.T) {
	h := NewHooks(nil, nil)
	var fired []int
	var first Hook
	var err error
	first, err = h.HookAdd(HOOK_MEM_UNMAPPED, func(c Cpu, access int, addr uint64, size int, val int64) bool {
		fired = append(fired, 1)
		h.HookDel(first)
		return true
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.HookAdd(HOOK_MEM_UNMAPPED, func(c Cpu, access int, addr uint64, size int, val int64) bool {
		fired = append(fired, 2)
		return true
	}, 1, 0); err != nil {
		t.Fatal(err)
	}
	if !h.OnFault(MEM_READ_UNMAPPED, 0x1000, 4, 0) {
		t.Fatal("fault should have been resolved")
	}
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Fatalf("in-dispatch delete broke fault voting: %v", fired)
	}
}

func TestHookOrder(t *testing.T) {
	h := NewHooks(nil, nil)
	var hits []int
	for i := 1; i <= 4; i++ {
		if _, err := h.HookAdd(HOOK_CODE, codeCb(&hits, i), 1, 0); err != nil {
			t.Fatal(err)
		}
	}
	h.OnCode(0x1000, 4)
	for i, v := range hits {
		if v != i+1 {
			t.Fatalf("dispatch out of registration order: %v", hits)
		}
	}
}

func TestHookRange(t *testing.T) {
	h := NewHooks(nil, nil)
	var hits []int
	// bounded to [0x1000, 0x1fff]
	if _, err := h.HookAdd(HOOK_CODE, codeCb(&hits, 1), 0x1000, 0x1fff); err != nil {
		t.Fatal(err)
	}
	// start > end hooks everything
	if _, err := h.HookAdd(HOOK_CODE, codeCb(&hits, 2), 1, 0); err != nil {
		t.Fatal(err)
	}
	h.OnCode(0x0800, 4)
	h.OnCode(0x1000, 4)
	h.OnCode(0x1fff, 4)
	h.OnCode(0x2000, 4)
	want := []int{2, 1, 2, 1, 2, 2}
	if len(hits) != len(want) {
		t.Fatalf("%v != %v", hits, want)
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Fatalf("%v != %v", hits, want)
		}
	}
}

func TestHookAddErrors(t *testing.T) {
	h := NewHooks(nil, nil)
	// callback shape must match the hook type
	if _, err := h.HookAdd(HOOK_CODE, func() {}, 1, 0); ToErrno(err) != ERR_ARG {
		t.Fatalf("expected ERR_ARG, got %v", err)
	}
	if _, err := h.HookAdd(HOOK_INTR, func(c Cpu, addr uint64, size uint32) {}, 1, 0); ToErrno(err) != ERR_ARG {
		t.Fatalf("expected ERR_ARG, got %v", err)
	}
	// unknown or empty hook types
	if _, err := h.HookAdd(0, func(c Cpu, addr uint64, size uint32) {}, 1, 0); err != ERR_HOOK {
		t.Fatalf("expected ERR_HOOK, got %v", err)
	}
	if _, err := h.HookAdd(1<<20, func(c Cpu, addr uint64, size uint32) {}, 1, 0); err != ERR_HOOK {
		t.Fatalf("expected ERR_HOOK, got %v", err)
	}
	// mixing valid-access and fault bits is not a dispatchable type
	if _, err := h.HookAdd(HOOK_MEM_READ|HOOK_MEM_READ_UNMAPPED, func(c Cpu, access int, addr uint64, size int, val int64) {}, 1, 0); err != ERR_HOOK {
		t.Fatalf("expected ERR_HOOK, got %v", err)
	}
}

func TestInsnHookSingleton(t *testing.T) {
	h := NewHooks(nil, nil)
	const insnIn = 1
	in := func(c Cpu, port uint32, size int) uint32 { return 0x41 }
	h1, err := h.HookAdd(HOOK_INSN, in, 1, 0, insnIn)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.HookAdd(HOOK_INSN, in, 1, 0, insnIn); err != ERR_HOOK_EXIST {
		t.Fatalf("expected ERR_HOOK_EXIST, got %v", err)
	}
	if _, err := h.HookAdd(HOOK_INSN, in, 1, 0); ToErrno(err) != ERR_ARG {
		t.Fatalf("missing insn enum: expected ERR_ARG, got %v", err)
	}
	if got := h.OnInsnIn(insnIn, 7, 4); got != 0x41 {
		t.Fatalf("%#x != 0x41", got)
	}
	if err := h.HookDel(h1); err != nil {
		t.Fatal(err)
	}
	// deleted, so input reads as zero and re-adding works
	if got := h.OnInsnIn(insnIn, 7, 4); got != 0 {
		t.Fatalf("deleted insn hook still firing: %#x", got)
	}
	if _, err := h.HookAdd(HOOK_INSN, in, 1, 0, insnIn); err != nil {
		t.Fatal(err)
	}
}

func TestFaultVoting(t *testing.T) {
	h := NewHooks(nil, nil)
	// no hook fired: fault is fatal
	if h.OnFault(MEM_READ_UNMAPPED, 0x1000, 4, 0) {
		t.Fatal("unhandled fault should not continue")
	}
	vote := func(v bool) func(Cpu, int, uint64, int, int64) bool {
		return func(c Cpu, access int, addr uint64, size int, val int64) bool { return v }
	}
	h1, err := h.HookAdd(HOOK_MEM_UNMAPPED, vote(true), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !h.OnFault(MEM_READ_UNMAPPED, 0x1000, 4, 0) {
		t.Fatal("resolved fault should continue")
	}
	// a write-prot fault does not match an unmapped-only hook
	if h.OnFault(MEM_WRITE_PROT, 0x1000, 4, 0) {
		t.Fatal("fault outside hook mask should not continue")
	}
	// one dissenting hook vetoes the rest
	if _, err := h.HookAdd(HOOK_MEM_UNMAPPED, vote(false), 1, 0); err != nil {
		t.Fatal(err)
	}
	if h.OnFault(MEM_READ_UNMAPPED, 0x1000, 4, 0) {
		t.Fatal("veto should stop the access")
	}
	if err := h.HookDel(h1); err != nil {
		t.Fatal(err)
	}
}

func TestMemHookFilter(t *testing.T) {
	h := NewHooks(nil, nil)
	var got []int
	cb := func(c Cpu, access int, addr uint64, size int, val int64) {
		got = append(got, access)
	}
	if _, err := h.HookAdd(HOOK_MEM_WRITE, cb, 1, 0); err != nil {
		t.Fatal(err)
	}
	h.OnMem(MEM_READ, 0x1000, 4, 0)
	h.OnMem(MEM_WRITE, 0x1000, 4, 99)
	h.OnMem(MEM_FETCH, 0x1000, 8, 0)
	if len(got) != 1 || got[0] != MEM_WRITE {
		t.Fatalf("expected one write event, got %v", got)
	}
}
