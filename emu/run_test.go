package emu_test

import (
	"testing"
	"time"

	"github.com/minicorn-engine/minicorn/arch/tiny32"
	"github.com/minicorn-engine/minicorn/cpu"
)

func TestRunHalt(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_MOVI, tiny32.R0, 0, 5),
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 2),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if e.Errno() != cpu.ERR_OK {
		t.Fatalf("errno %v after clean halt", e.Errno())
	}
	if val, _ := e.RegRead(tiny32.R0); val != 7 {
		t.Fatalf("r0=%d, expected 7", val)
	}
}

func TestRunUntil(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	// stops before the instruction at until executes
	if err := e.Start(base, base+2*tiny32.InsnSize, 0, 0); err != nil {
		t.Fatal(err)
	}
	if val, _ := e.RegRead(tiny32.R0); val != 2 {
		t.Fatalf("r0=%d, expected 2", val)
	}
	if pc, _ := e.RegRead(tiny32.PC); pc != base+2*tiny32.InsnSize {
		t.Fatalf("pc=%#x", pc)
	}
}

func TestRunUntilImmediate(t *testing.T) {
	e := mkEngine(t, prog(asm(tiny32.OP_ADDI, tiny32.R0, 0, 1)))
	e.RegWrite(tiny32.R0, 7)
	// until == begin: a successful zero-instruction run
	if err := e.Start(base, base, 0, 0); err != nil {
		t.Fatal(err)
	}
	if e.Errno() != cpu.ERR_OK {
		t.Fatalf("errno %v", e.Errno())
	}
	if val, _ := e.RegRead(tiny32.R0); val != 7 {
		t.Fatalf("r0=%d, nothing should have run", val)
	}
}

func TestRunCount(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_JMP, 0, 0, base),
	))
	if err := e.Start(base, noUntil, 0, 5); err != nil {
		t.Fatal(err)
	}
	// 5 units: addi, jmp, addi, jmp, addi
	if val, _ := e.RegRead(tiny32.R0); val != 3 {
		t.Fatalf("r0=%d, expected 3", val)
	}
}

func TestRunTimeout(t *testing.T) {
	e := mkEngine(t, prog(asm(tiny32.OP_JMP, 0, 0, base)))
	done := make(chan error, 1)
	go func() { done <- e.Start(base, noUntil, 50*time.Millisecond, 0) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timeout did not stop the run")
	}
	if e.Errno() != cpu.ERR_OK {
		t.Fatalf("errno %v after timeout", e.Errno())
	}
}

func TestRunStopFromHook(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	// stop as the second instruction is entered; it must not commit
	_, err := e.HookAdd(cpu.HOOK_CODE, func(c cpu.Cpu, addr uint64, size uint32) {
		if addr == base+tiny32.InsnSize {
			c.Stop()
		}
	}, base+tiny32.InsnSize, base+tiny32.InsnSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if val, _ := e.RegRead(tiny32.R0); val != 1 {
		t.Fatalf("r0=%d, stop should abort the second unit", val)
	}
}

func TestRunStopIdle(t *testing.T) {
	e := mkEngine(t, nil)
	if err := e.Stop(); err != cpu.ERR_NOEXEC {
		t.Fatalf("expected ERR_NOEXEC, got %v", err)
	}
}

func TestRunNestedStart(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	var nested error
	_, err := e.HookAdd(cpu.HOOK_CODE, func(c cpu.Cpu, addr uint64, size uint32) {
		nested = c.Start(base, noUntil, 0, 0)
	}, base, base)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if nested != cpu.ERR_RUNNING {
		t.Fatalf("nested start: expected ERR_RUNNING, got %v", nested)
	}
}

func TestRunFetchUnmapped(t *testing.T) {
	e := mkEngine(t, nil)
	e.RegWrite(tiny32.R0, 42)
	err := e.Start(0x900000, noUntil, 0, 0)
	if cpu.ToErrno(err) != cpu.ERR_FETCH_UNMAPPED {
		t.Fatalf("expected ERR_FETCH_UNMAPPED, got %v", err)
	}
	if e.Errno() != cpu.ERR_FETCH_UNMAPPED {
		t.Fatalf("errno %v", e.Errno())
	}
	// the faulting unit committed nothing
	if val, _ := e.RegRead(tiny32.R0); val != 42 {
		t.Fatalf("r0=%d mutated by a faulting fetch", val)
	}
}

func TestRunFetchProt(t *testing.T) {
	e := mkEngine(t, nil)
	// the data page is mapped RW, not executable
	err := e.Start(base+0x1000, noUntil, 0, 0)
	if cpu.ToErrno(err) != cpu.ERR_FETCH_PROT {
		t.Fatalf("expected ERR_FETCH_PROT, got %v", err)
	}
}

func TestRunWriteProt(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_MOVI, tiny32.R1, 0, base), // code page is read/exec only
		asm(tiny32.OP_ST, tiny32.R0, tiny32.R1, 0),
	))
	err := e.Start(base, noUntil, 0, 0)
	if cpu.ToErrno(err) != cpu.ERR_WRITE_PROT {
		t.Fatalf("expected ERR_WRITE_PROT, got %v", err)
	}
}

func TestRunInvalidInsn(t *testing.T) {
	e := mkEngine(t, prog(asm(0xff, 0, 0, 0)))
	err := e.Start(base, noUntil, 0, 0)
	if cpu.ToErrno(err) != cpu.ERR_INSN_INVALID {
		t.Fatalf("expected ERR_INSN_INVALID, got %v", err)
	}
	// bad register operands decode but do not execute
	e2 := mkEngine(t, prog(asm(tiny32.OP_MOV, 12, 0, 0)))
	err = e2.Start(base, noUntil, 0, 0)
	if cpu.ToErrno(err) != cpu.ERR_INSN_INVALID {
		t.Fatalf("expected ERR_INSN_INVALID, got %v", err)
	}
}

func TestRunUnaligned(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_MOVI, tiny32.R1, 0, base+0x1001),
		asm(tiny32.OP_LD, tiny32.R0, tiny32.R1, 0),
	))
	err := e.Start(base, noUntil, 0, 0)
	if cpu.ToErrno(err) != cpu.ERR_READ_UNALIGNED {
		t.Fatalf("expected ERR_READ_UNALIGNED, got %v", err)
	}
}

func TestRunFaultResolve(t *testing.T) {
	const lazy = 0x800000
	e := mkEngine(t, prog(
		asm(tiny32.OP_MOVI, tiny32.R1, 0, lazy),
		asm(tiny32.OP_LD, tiny32.R0, tiny32.R1, 0),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	faults := 0
	_, err := e.HookAdd(cpu.HOOK_MEM_UNMAPPED, func(c cpu.Cpu, access int, addr uint64, size int, val int64) bool {
		faults++
		// map the page on demand, like a lazy loader would
		return c.MemMap(addr&^uint64(cpu.PageSize-1), cpu.PageSize, cpu.PROT_ALL) == nil
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if faults != 1 {
		t.Fatalf("fault hook fired %d times", faults)
	}
	if val, _ := e.RegRead(tiny32.R0); val != 0 {
		t.Fatalf("r0=%#x, fresh page should read zero", val)
	}
	regions, _ := e.MemRegions()
	if len(regions) != 3 {
		t.Fatalf("lazy page not mapped: %+v", regions)
	}
}

func TestRunFaultDeclined(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_MOVI, tiny32.R1, 0, 0x800000),
		asm(tiny32.OP_LD, tiny32.R0, tiny32.R1, 0),
	))
	_, err := e.HookAdd(cpu.HOOK_MEM_UNMAPPED, func(c cpu.Cpu, access int, addr uint64, size int, val int64) bool {
		return false
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	err = e.Start(base, noUntil, 0, 0)
	if cpu.ToErrno(err) != cpu.ERR_READ_UNMAPPED {
		t.Fatalf("expected ERR_READ_UNMAPPED, got %v", err)
	}
}

func TestRunCodeHookSequence(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	var addrs []uint64
	var blocks []uint64
	_, err := e.HookAdd(cpu.HOOK_CODE, func(c cpu.Cpu, addr uint64, size uint32) {
		if size != tiny32.InsnSize {
			t.Errorf("size=%d", size)
		}
		addrs = append(addrs, addr)
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.HookAdd(cpu.HOOK_BLOCK, func(c cpu.Cpu, addr uint64, size uint32) {
		blocks = append(blocks, addr)
	}, 1, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	want := []uint64{base, base + tiny32.InsnSize, base + 2*tiny32.InsnSize}
	if len(addrs) != len(want) {
		t.Fatalf("code hook addrs %v", addrs)
	}
	for i := range want {
		if addrs[i] != want[i] {
			t.Fatalf("code hook addrs %v", addrs)
		}
	}
	if len(blocks) != 1 || blocks[0] != base {
		t.Fatalf("block hook addrs %v", blocks)
	}
}

func TestRunBlockHookPerBranch(t *testing.T) {
	// jmp forms a new block each iteration
	e := mkEngine(t, prog(asm(tiny32.OP_JMP, 0, 0, base)))
	blocks := 0
	_, err := e.HookAdd(cpu.HOOK_BLOCK, func(c cpu.Cpu, addr uint64, size uint32) {
		blocks++
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 4); err != nil {
		t.Fatal(err)
	}
	if blocks != 4 {
		t.Fatalf("blocks=%d, expected 4", blocks)
	}
}

func TestRunIntrHook(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_SYS, 0, 0, 0x80),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	var got []uint32
	_, err := e.HookAdd(cpu.HOOK_INTR, func(c cpu.Cpu, intno uint32) {
		got = append(got, intno)
	}, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 0x80 {
		t.Fatalf("intr hook got %v", got)
	}
}

func TestRunPortHooks(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_IN, tiny32.R0, 0, 0x10),
		asm(tiny32.OP_OUT, tiny32.R0, 0, 0x11),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	_, err := e.HookAdd(cpu.HOOK_INSN, func(c cpu.Cpu, port uint32, size int) uint32 {
		if port != 0x10 || size != 4 {
			t.Errorf("in port=%#x size=%d", port, size)
		}
		return 0x41
	}, 1, 0, tiny32.INSN_IN)
	if err != nil {
		t.Fatal(err)
	}
	var outVal uint32
	var outPort uint32
	if _, err := e.HookAdd(cpu.HOOK_INSN, func(c cpu.Cpu, port uint32, size int, val uint32) {
		outPort, outVal = port, val
	}, 1, 0, tiny32.INSN_OUT); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if val, _ := e.RegRead(tiny32.R0); val != 0x41 {
		t.Fatalf("in did not land: r0=%#x", val)
	}
	if outPort != 0x11 || outVal != 0x41 {
		t.Fatalf("out port=%#x val=%#x", outPort, outVal)
	}
}

func TestRunMemHooks(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_MOVI, tiny32.R0, 0, 0x1234),
		asm(tiny32.OP_MOVI, tiny32.R1, 0, base+0x1000),
		asm(tiny32.OP_ST, tiny32.R0, tiny32.R1, 0),
		asm(tiny32.OP_LD, tiny32.R2, tiny32.R1, 0),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	type ev struct {
		access int
		addr   uint64
		val    int64
	}
	var evs []ev
	_, err := e.HookAdd(cpu.HOOK_MEM_READ|cpu.HOOK_MEM_WRITE, func(c cpu.Cpu, access int, addr uint64, size int, val int64) {
		evs = append(evs, ev{access, addr, val})
	}, base+0x1000, base+0x1fff)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(base, noUntil, 0, 0); err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 {
		t.Fatalf("events %v", evs)
	}
	if evs[0].access != cpu.MEM_WRITE || evs[0].addr != base+0x1000 || evs[0].val != 0x1234 {
		t.Fatalf("write event %+v", evs[0])
	}
	if evs[1].access != cpu.MEM_READ || evs[1].addr != base+0x1000 {
		t.Fatalf("read event %+v", evs[1])
	}
	if val, _ := e.RegRead(tiny32.R2); val != 0x1234 {
		t.Fatalf("r2=%#x", val)
	}
}

func TestRunRestart(t *testing.T) {
	e := mkEngine(t, prog(
		asm(tiny32.OP_ADDI, tiny32.R0, 0, 1),
		asm(tiny32.OP_HLT, 0, 0, 0),
	))
	for i := 0; i < 3; i++ {
		if err := e.Start(base, noUntil, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	// registers persist across runs
	if val, _ := e.RegRead(tiny32.R0); val != 3 {
		t.Fatalf("r0=%d, expected 3", val)
	}
}
