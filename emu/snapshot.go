package emu

import (
	"bytes"
	"hash/crc32"
	"io"
	"io/ioutil"
	"sort"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/minicorn-engine/minicorn/cpu"
)

// snapshot format:
//
// struc-packed header, big-endian:
//   magic "MCSV", format version, engine major/minor, arch, mode,
//   crc32 of the compressed body, compressed body length
// remainder is a snappy stream of:
//   uint32(register count), then {uint32 enum, uint64 value} per register
//   uint32(region count), then {uint64 addr, uint64 size, uint32 prot}
//   followed by the raw region bytes

const snapMagic = "MCSV"
const snapFormat = 1

type snapHeader struct {
	Magic  string `struc:"[4]byte"`
	Format uint32
	Major  uint32
	Minor  uint32
	Arch   uint32
	Mode   uint32
	CRC    uint32
	Size   uint32
}

type snapCount struct {
	N uint32
}

type snapReg struct {
	Enum uint32
	Val  uint64
}

type snapRegion struct {
	Addr uint64
	Size uint64
	Prot uint32
}

// Save serializes the register file and every mapped region.
func (e *Engine) Save() ([]byte, error) {
	if e.closed {
		return nil, cpu.ERR_HANDLE
	}
	var body bytes.Buffer

	enums := e.regs.Enums()
	sort.Ints(enums)
	if err := struc.Pack(&body, &snapCount{uint32(len(enums))}); err != nil {
		return nil, e.record(errors.Wrap(err, "failed to pack registers"))
	}
	for _, enum := range enums {
		val, _ := e.regs.RegRead(enum)
		if err := struc.Pack(&body, &snapReg{uint32(enum), val}); err != nil {
			return nil, e.record(errors.Wrap(err, "failed to pack registers"))
		}
	}

	regions := e.mem.Regions()
	if err := struc.Pack(&body, &snapCount{uint32(len(regions))}); err != nil {
		return nil, e.record(errors.Wrap(err, "failed to pack memory"))
	}
	for _, r := range regions {
		if err := struc.Pack(&body, &snapRegion{r.Addr, r.Size, uint32(r.Prot)}); err != nil {
			return nil, e.record(errors.Wrap(err, "failed to pack memory"))
		}
		mem, err := e.mem.MemRead(r.Addr, r.Size)
		if err != nil {
			return nil, e.record(err)
		}
		body.Write(mem)
	}

	var zbuf bytes.Buffer
	zw := snappy.NewBufferedWriter(&zbuf)
	if _, err := zw.Write(body.Bytes()); err != nil {
		return nil, e.record(errors.Wrap(err, "compression failed"))
	}
	if err := zw.Close(); err != nil {
		return nil, e.record(errors.Wrap(err, "compression failed"))
	}

	major, minor := Version()
	header := &snapHeader{
		Magic:  snapMagic,
		Format: snapFormat,
		Major:  uint32(major),
		Minor:  uint32(minor),
		Arch:   uint32(e.arch),
		Mode:   uint32(e.mode),
		CRC:    crc32.ChecksumIEEE(zbuf.Bytes()),
		Size:   uint32(zbuf.Len()),
	}
	var out bytes.Buffer
	if err := struc.Pack(&out, header); err != nil {
		return nil, e.record(errors.Wrap(err, "failed to pack header"))
	}
	zbuf.WriteTo(&out)
	e.record(nil)
	return out.Bytes(), nil
}

// Restore replaces the register file and address space with a snapshot
// previously produced by Save on an engine of the same arch and mode.
// The snapshot is validated in full before any engine state changes.
func (e *Engine) Restore(data []byte) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	rd := bytes.NewReader(data)
	var header snapHeader
	if err := struc.Unpack(rd, &header); err != nil {
		return e.record(errors.Wrap(cpu.ERR_ARG, "truncated snapshot"))
	}
	if header.Magic != snapMagic {
		return e.record(errors.Wrap(cpu.ERR_ARG, "bad snapshot magic"))
	}
	if header.Format != snapFormat {
		return e.record(cpu.ERR_VERSION)
	}
	if Arch(header.Arch) != e.arch {
		return e.record(cpu.ERR_ARCH)
	}
	if Mode(header.Mode) != e.mode {
		return e.record(cpu.ERR_MODE)
	}
	compressed := make([]byte, rd.Len())
	rd.Read(compressed)
	if uint32(len(compressed)) != header.Size || crc32.ChecksumIEEE(compressed) != header.CRC {
		return e.record(errors.Wrap(cpu.ERR_ARG, "snapshot checksum mismatch"))
	}
	body, err := ioutil.ReadAll(snappy.NewReader(bytes.NewReader(compressed)))
	if err != nil {
		return e.record(errors.Wrap(cpu.ERR_ARG, "snapshot decompression failed"))
	}

	brd := bytes.NewReader(body)
	var count snapCount
	if err := struc.Unpack(brd, &count); err != nil {
		return e.record(errors.Wrap(cpu.ERR_ARG, "truncated snapshot"))
	}
	regs := make([]snapReg, count.N)
	for i := range regs {
		if err := struc.Unpack(brd, &regs[i]); err != nil {
			return e.record(errors.Wrap(cpu.ERR_ARG, "truncated snapshot"))
		}
	}
	if err := struc.Unpack(brd, &count); err != nil {
		return e.record(errors.Wrap(cpu.ERR_ARG, "truncated snapshot"))
	}
	regions := make([]cpu.MemRegion, count.N)
	mem := make([][]byte, count.N)
	for i := range regions {
		var r snapRegion
		if err := struc.Unpack(brd, &r); err != nil {
			return e.record(errors.Wrap(cpu.ERR_ARG, "truncated snapshot"))
		}
		if r.Size > uint64(brd.Len()) {
			return e.record(errors.Wrap(cpu.ERR_ARG, "truncated snapshot"))
		}
		regions[i] = cpu.MemRegion{Addr: r.Addr, Size: r.Size, Prot: int(r.Prot)}
		mem[i] = make([]byte, r.Size)
		if _, err := io.ReadFull(brd, mem[i]); err != nil {
			return e.record(errors.Wrap(cpu.ERR_ARG, "truncated snapshot"))
		}
	}

	// every register must exist on this machine before anything is swapped
	valid := make(map[int]bool)
	for _, enum := range e.regs.Enums() {
		valid[enum] = true
	}
	for _, r := range regs {
		if !valid[int(r.Enum)] {
			return e.record(errors.Wrapf(cpu.ERR_ARG, "unknown register %d in snapshot", r.Enum))
		}
	}
	// Replace validates the region table against a fresh store, so a bad
	// snapshot cannot leave the address space half swapped
	if err := e.mem.Replace(regions, mem); err != nil {
		return e.record(err)
	}
	for _, r := range regs {
		e.regs.RegWrite(int(r.Enum), r.Val)
	}
	e.record(nil)
	return nil
}
