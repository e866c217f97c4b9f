package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/mgutz/ansi"

	"github.com/minicorn-engine/minicorn/arch/tiny32"
	"github.com/minicorn-engine/minicorn/cpu"
	"github.com/minicorn-engine/minicorn/emu"
)

var archNames = map[string]emu.Arch{
	"tiny32": emu.ARCH_TINY32,
}

var modeNames = map[string]emu.Mode{
	"16":   emu.MODE_16,
	"32":   emu.MODE_32,
	"16be": emu.MODE_16 | emu.MODE_BIG_ENDIAN,
	"32be": emu.MODE_32 | emu.MODE_BIG_ENDIAN,
}

var addrColor = ansi.ColorFunc("cyan")
var insColor = ansi.ColorFunc("yellow")

func run() error {
	fs := flag.NewFlagSet("minicorn", flag.ExitOnError)
	archName := fs.String("arch", "tiny32", "architecture")
	modeName := fs.String("mode", "32", "mode (16, 32, 16be, 32be)")
	base := fs.Uint64("base", 0x10000, "load address")
	stack := fs.Uint64("stack", 0x200000, "stack address")
	stackSize := fs.Uint64("stacksize", 0x10000, "stack size")
	count := fs.Int("count", 0, "max instructions (0 = unbounded)")
	timeout := fs.Duration("timeout", 0, "wall clock limit (0 = unbounded)")
	trace := fs.Bool("trace", false, "print each instruction")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <binary>\n", os.Args[0])
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	code, err := ioutil.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	arch, ok := archNames[*archName]
	if !ok {
		return fmt.Errorf("unknown arch %q", *archName)
	}
	mode, ok := modeNames[*modeName]
	if !ok {
		return fmt.Errorf("unknown mode %q", *modeName)
	}

	e, err := emu.Open(arch, mode)
	if err != nil {
		return err
	}
	defer e.Close()

	size := cpu.Align(uint64(len(code)), uint64(cpu.PageSize))
	if err := e.MemMap(*base, size, cpu.PROT_READ|cpu.PROT_EXEC); err != nil {
		return err
	}
	if err := e.MemWrite(*base, code); err != nil {
		return err
	}
	if err := e.MemMap(*stack, *stackSize, cpu.PROT_READ|cpu.PROT_WRITE); err != nil {
		return err
	}
	if err := e.RegWrite(e.SPReg(), *stack+*stackSize); err != nil {
		return err
	}

	if *trace {
		var dis tiny32.Dis
		order := e.ByteOrder()
		e.HookAdd(cpu.HOOK_CODE, func(c cpu.Cpu, addr uint64, isize uint32) {
			raw, err := c.MemRead(addr, uint64(isize))
			if err != nil {
				return
			}
			out, err := dis.Dis(raw, addr, order)
			if err != nil || len(out) == 0 {
				fmt.Fprintf(os.Stderr, "%s: ??\n", addrColor(fmt.Sprintf("%08x", addr)))
				return
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n",
				addrColor(fmt.Sprintf("%08x", addr)),
				insColor(fmt.Sprintf("%v", out[0])))
		}, 1, 0)
	}

	// a minimal console: sys 0 exits, sys 1 prints the low byte of r0,
	// out port 1 prints the value byte
	e.HookAdd(cpu.HOOK_INTR, func(c cpu.Cpu, intno uint32) {
		switch intno {
		case 0:
			c.Stop()
		case 1:
			val, _ := c.RegRead(tiny32.R0)
			os.Stdout.Write([]byte{byte(val)})
		}
	}, 1, 0)
	e.HookAdd(cpu.HOOK_INSN, func(c cpu.Cpu, port uint32, psize int, val uint32) {
		if port == 1 {
			os.Stdout.Write([]byte{byte(val)})
		}
	}, 1, 0, tiny32.INSN_OUT)

	start := time.Now()
	err = e.Start(*base, *base+size, *timeout, *count)
	elapsed := time.Since(start)

	regs, _ := e.RegDump()
	for _, r := range regs {
		fmt.Fprintf(os.Stderr, "%s ", r)
	}
	fmt.Fprintf(os.Stderr, "\n[%s in %s]\n", cpu.Strerror(e.Errno()), elapsed)
	return err
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
