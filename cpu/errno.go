package cpu

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errno is the flat error taxonomy shared by every fallible engine operation.
// Values are stable and meant to be compared directly.
type Errno int

const (
	ERR_OK Errno = iota
	ERR_NOMEM
	ERR_ARCH
	ERR_HANDLE
	ERR_MODE
	ERR_VERSION
	ERR_READ_UNMAPPED
	ERR_WRITE_UNMAPPED
	ERR_FETCH_UNMAPPED
	ERR_HOOK
	ERR_INSN_INVALID
	ERR_MAP
	ERR_WRITE_PROT
	ERR_READ_PROT
	ERR_FETCH_PROT
	ERR_ARG
	ERR_READ_UNALIGNED
	ERR_WRITE_UNALIGNED
	ERR_FETCH_UNALIGNED
	ERR_HOOK_EXIST
	ERR_RUNNING
	ERR_NOEXEC
)

var errnoStrings = map[Errno]string{
	ERR_OK:              "no error",
	ERR_NOMEM:           "out of memory",
	ERR_ARCH:            "unsupported architecture",
	ERR_HANDLE:          "invalid handle",
	ERR_MODE:            "unsupported mode",
	ERR_VERSION:         "version mismatch",
	ERR_READ_UNMAPPED:   "unmapped read",
	ERR_WRITE_UNMAPPED:  "unmapped write",
	ERR_FETCH_UNMAPPED:  "unmapped fetch",
	ERR_HOOK:            "invalid hook type",
	ERR_INSN_INVALID:    "invalid instruction",
	ERR_MAP:             "invalid memory mapping",
	ERR_WRITE_PROT:      "write to write-protected memory",
	ERR_READ_PROT:       "read from read-protected memory",
	ERR_FETCH_PROT:      "fetch from non-executable memory",
	ERR_ARG:             "invalid argument",
	ERR_READ_UNALIGNED:  "unaligned read",
	ERR_WRITE_UNALIGNED: "unaligned write",
	ERR_FETCH_UNALIGNED: "unaligned fetch",
	ERR_HOOK_EXIST:      "hook already exists for this event",
	ERR_RUNNING:         "emulation already running",
	ERR_NOEXEC:          "no active emulation",
}

func (e Errno) Error() string {
	if s, ok := errnoStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("unknown error %d", int(e))
}

// Strerror returns the human-readable text for an error code.
func Strerror(e Errno) string {
	return e.Error()
}

// MemError is a failed emulated memory access. Enum is the MEM_*_UNMAPPED or
// MEM_*_PROT access kind that triggered it.
type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_FETCH_UNMAPPED:
		reason = "unmapped fetch"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_FETCH_PROT:
		reason = "protected exec"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// Errno maps the access kind onto the flat error code recorded by the engine.
func (m *MemError) Errno() Errno {
	switch m.Enum {
	case MEM_READ_UNMAPPED:
		return ERR_READ_UNMAPPED
	case MEM_WRITE_UNMAPPED:
		return ERR_WRITE_UNMAPPED
	case MEM_FETCH_UNMAPPED:
		return ERR_FETCH_UNMAPPED
	case MEM_READ_PROT:
		return ERR_READ_PROT
	case MEM_WRITE_PROT:
		return ERR_WRITE_PROT
	case MEM_FETCH_PROT:
		return ERR_FETCH_PROT
	}
	return ERR_ARG
}

// ToErrno reduces any error produced by the engine to its flat code.
func ToErrno(err error) Errno {
	if err == nil {
		return ERR_OK
	}
	switch e := errors.Cause(err).(type) {
	case Errno:
		return e
	case *MemError:
		return e.Errno()
	case ExitStatus:
		return ERR_OK
	}
	return ERR_ARG
}

// ExitStatus is returned by a backend when the emulated program halts itself.
// The execution engine treats it as a clean stop.
type ExitStatus int

func (e ExitStatus) Error() string {
	return fmt.Sprintf("exit %d", int(e))
}
