package emu

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/minicorn-engine/minicorn/cpu"
)

// Start runs the emulation from begin until a stop condition holds:
// reaching until (checked before the instruction at until executes), the
// instruction count (0 means unbounded), the wall-clock timeout (0 means
// unbounded), a stop request, or a fault.
//
// Bounds are cooperative: they are checked between instruction units, never
// mid-unit, so whichever bound is observed first wins and all of them end
// the run with a nil error. Faults and undecodable instructions end the run
// with their specific error and leave the faulting unit uncommitted.
func (e *Engine) Start(begin, until uint64, timeout time.Duration, count int) error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return e.record(cpu.ERR_RUNNING)
	}
	defer atomic.StoreInt32(&e.running, 0)
	atomic.StoreInt32(&e.stopReq, 0)

	if err := e.regs.RegWrite(e.pcReg, begin); err != nil {
		return e.record(err)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	pc := begin
	executed := 0
	newBlock := true
	for {
		if e.StopRequested() {
			break
		}
		if pc == until {
			break
		}
		if count > 0 && executed >= count {
			break
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			break
		}
		if newBlock {
			e.hooks.OnBlock(pc, 0)
			newBlock = false
			if e.StopRequested() {
				break
			}
		}
		next, branched, err := e.backend.Step(pc)
		if err != nil {
			if _, ok := errors.Cause(err).(cpu.ExitStatus); ok {
				// the program halted itself
				e.record(nil)
				return nil
			}
			e.record(err)
			return err
		}
		// a stop raised by a hook inside Step aborts before the unit runs,
		// so it must not count against the instruction budget
		if e.StopRequested() {
			break
		}
		executed++
		pc = next
		if branched {
			newBlock = true
		}
	}
	e.record(nil)
	return nil
}

// Stop latches a stop request. The current unit completes before the run
// loop observes it. Only defined while the engine is running.
func (e *Engine) Stop() error {
	if e.closed {
		return cpu.ERR_HANDLE
	}
	if atomic.LoadInt32(&e.running) == 0 {
		return e.record(cpu.ERR_NOEXEC)
	}
	atomic.StoreInt32(&e.stopReq, 1)
	return nil
}

// StopRequested reports whether a stop has been latched for the current run.
func (e *Engine) StopRequested() bool {
	return atomic.LoadInt32(&e.stopReq) != 0
}
