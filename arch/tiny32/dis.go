package tiny32

import (
	"encoding/binary"
	"fmt"

	"github.com/minicorn-engine/minicorn/cpu"
)

type ins struct {
	addr  uint64
	op    uint8
	name  string
	args  int
	ra    uint8
	rb    uint8
	imm   uint32
	bytes []byte
}

func (i *ins) Addr() uint64 {
	return i.addr
}

func (i *ins) Bytes() []byte {
	return i.bytes
}

func (i *ins) Mnemonic() string {
	return i.name
}

func regName(n uint8) string {
	if s, ok := regNames[int(n)]; ok {
		return s
	}
	return fmt.Sprintf("r?%d", n)
}

func (i *ins) OpStr() string {
	switch i.args {
	case argRa:
		return regName(i.ra)
	case argRaRb:
		return fmt.Sprintf("%s, %s", regName(i.ra), regName(i.rb))
	case argRaImm:
		return fmt.Sprintf("%s, %#x", regName(i.ra), i.imm)
	case argRaMem:
		return fmt.Sprintf("%s, [%s+%#x]", regName(i.ra), regName(i.rb), i.imm)
	case argMemRa:
		return fmt.Sprintf("[%s+%#x], %s", regName(i.rb), i.imm, regName(i.ra))
	case argImm:
		return fmt.Sprintf("%#x", i.imm)
	case argImmRa:
		return fmt.Sprintf("%#x, %s", i.imm, regName(i.ra))
	}
	return ""
}

func (i *ins) String() string {
	if s := i.OpStr(); s != "" {
		return i.name + " " + s
	}
	return i.name
}

type Dis struct{}

// Dis decodes as many whole instructions as mem holds, starting at addr.
func (d *Dis) Dis(mem []byte, addr uint64, order binary.ByteOrder) ([]cpu.Ins, error) {
	var out []cpu.Ins
	for len(mem) >= InsnSize {
		raw := mem[:InsnSize]
		data, ok := opData[raw[0]]
		if !ok {
			return out, fmt.Errorf("invalid op %#x at %#x", raw[0], addr)
		}
		out = append(out, &ins{
			addr:  addr,
			op:    raw[0],
			name:  data.name,
			args:  data.args,
			ra:    raw[1],
			rb:    raw[2],
			imm:   order.Uint32(raw[4:8]),
			bytes: raw,
		})
		mem = mem[InsnSize:]
		addr += InsnSize
	}
	return out, nil
}
