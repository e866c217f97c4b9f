package cpu

import "github.com/pkg/errors"

// Regs is the architecture-neutral register store. The valid enum domain is
// fixed at construction; values are masked to the architecture's width.
type Regs struct {
	mask uint64
	vals map[int]uint64
}

func NewRegs(bits uint, enums []int) *Regs {
	r := &Regs{
		mask: ^uint64(0) >> (64 - bits),
		vals: make(map[int]uint64),
	}
	for _, e := range enums {
		r.vals[e] = 0
	}
	return r
}

func (r *Regs) RegRead(enum int) (uint64, error) {
	val, ok := r.vals[enum]
	if !ok {
		return 0, errors.Wrapf(ERR_ARG, "invalid register %d", enum)
	}
	return val, nil
}

func (r *Regs) RegWrite(enum int, val uint64) error {
	if _, ok := r.vals[enum]; !ok {
		return errors.Wrapf(ERR_ARG, "invalid register %d", enum)
	}
	r.vals[enum] = val & r.mask
	return nil
}

func (r *Regs) RegReadBatch(enums []int) ([]uint64, error) {
	vals := make([]uint64, len(enums))
	for i, e := range enums {
		val, err := r.RegRead(e)
		if err != nil {
			return nil, err
		}
		vals[i] = val
	}
	return vals, nil
}

func (r *Regs) RegWriteBatch(enums []int, vals []uint64) error {
	if len(enums) != len(vals) {
		return errors.Wrap(ERR_ARG, "register/value count mismatch")
	}
	for i, e := range enums {
		if err := r.RegWrite(e, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// Enums returns the valid register enum domain.
func (r *Regs) Enums() []int {
	out := make([]int, 0, len(r.vals))
	for e := range r.vals {
		out = append(out, e)
	}
	return out
}

// ContextSave copies the register file into a reusable snapshot.
func (r *Regs) ContextSave(reuse interface{}) (interface{}, error) {
	var m map[int]uint64
	if reuse != nil {
		var ok bool
		if m, ok = reuse.(map[int]uint64); !ok {
			return nil, errors.Wrap(ERR_ARG, "incorrect context type")
		}
	} else {
		m = make(map[int]uint64)
	}
	for k, v := range r.vals {
		m[k] = v
	}
	return m, nil
}

func (r *Regs) ContextRestore(ctx interface{}) error {
	m, ok := ctx.(map[int]uint64)
	if !ok {
		return errors.Wrap(ERR_ARG, "incorrect context type")
	}
	for k, v := range m {
		r.vals[k] = v
	}
	return nil
}
