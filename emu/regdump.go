package emu

import (
	"fmt"
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/minicorn-engine/minicorn/cpu"
)

// RegVal is one named register and its current value.
type RegVal struct {
	Enum int
	Name string
	Val  uint64
}

func (r RegVal) String() string {
	return fmt.Sprintf("%s=%#x", r.Name, r.Val)
}

type regVals []RegVal

func (r regVals) Len() int           { return len(r) }
func (r regVals) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regVals) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

// RegDump reads every named register, sorted naturally by name so r2 comes
// before r10.
func (e *Engine) RegDump() ([]RegVal, error) {
	if e.closed {
		return nil, cpu.ERR_HANDLE
	}
	out := make(regVals, 0, len(e.regNames))
	for enum, name := range e.regNames {
		val, err := e.regs.RegRead(enum)
		if err != nil {
			return nil, e.record(err)
		}
		out = append(out, RegVal{Enum: enum, Name: name, Val: val})
	}
	sort.Sort(out)
	return out, nil
}
