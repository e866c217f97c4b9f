package cpu

// Page granularity of the address space. Map/unmap/protect operate on
// multiples of this.
const PageSize = 0x1000

// memory protection bits
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_ALL   = 7
)

// hook types for HookAdd
const (
	// hook CPU interrupts / syscall traps
	HOOK_INTR = 1 << 0

	// hook one particular instruction (arch-specific, e.g. port IN/OUT)
	HOOK_INSN = 1 << 1

	// hook each executed instruction
	HOOK_CODE = 1 << 2

	// hook each basic block entry
	HOOK_BLOCK = 1 << 3

	// hooks for invalid memory accesses, by access kind
	HOOK_MEM_READ_UNMAPPED  = 1 << 4
	HOOK_MEM_WRITE_UNMAPPED = 1 << 5
	HOOK_MEM_FETCH_UNMAPPED = 1 << 6
	HOOK_MEM_READ_PROT      = 1 << 7
	HOOK_MEM_WRITE_PROT     = 1 << 8
	HOOK_MEM_FETCH_PROT     = 1 << 9

	// hooks for valid memory accesses
	HOOK_MEM_READ  = 1 << 10
	HOOK_MEM_WRITE = 1 << 11
	HOOK_MEM_FETCH = 1 << 12

	HOOK_MEM_UNMAPPED = HOOK_MEM_READ_UNMAPPED | HOOK_MEM_WRITE_UNMAPPED | HOOK_MEM_FETCH_UNMAPPED
	HOOK_MEM_PROT     = HOOK_MEM_READ_PROT | HOOK_MEM_WRITE_PROT | HOOK_MEM_FETCH_PROT

	HOOK_MEM_READ_INVALID  = HOOK_MEM_READ_UNMAPPED | HOOK_MEM_READ_PROT
	HOOK_MEM_WRITE_INVALID = HOOK_MEM_WRITE_UNMAPPED | HOOK_MEM_WRITE_PROT
	HOOK_MEM_FETCH_INVALID = HOOK_MEM_FETCH_UNMAPPED | HOOK_MEM_FETCH_PROT

	HOOK_MEM_INVALID = HOOK_MEM_UNMAPPED | HOOK_MEM_PROT
)

// memory access kinds, passed to memory hooks
const (
	MEM_READ = 16 + iota
	MEM_WRITE
	MEM_FETCH
	MEM_READ_UNMAPPED
	MEM_WRITE_UNMAPPED
	MEM_FETCH_UNMAPPED
	MEM_WRITE_PROT
	MEM_READ_PROT
	MEM_FETCH_PROT
)

// hookBitFor maps a MEM_* access kind to the hook type bit dispatched for it.
func hookBitFor(access int) int {
	switch access {
	case MEM_READ:
		return HOOK_MEM_READ
	case MEM_WRITE:
		return HOOK_MEM_WRITE
	case MEM_FETCH:
		return HOOK_MEM_FETCH
	case MEM_READ_UNMAPPED:
		return HOOK_MEM_READ_UNMAPPED
	case MEM_WRITE_UNMAPPED:
		return HOOK_MEM_WRITE_UNMAPPED
	case MEM_FETCH_UNMAPPED:
		return HOOK_MEM_FETCH_UNMAPPED
	case MEM_READ_PROT:
		return HOOK_MEM_READ_PROT
	case MEM_WRITE_PROT:
		return HOOK_MEM_WRITE_PROT
	case MEM_FETCH_PROT:
		return HOOK_MEM_FETCH_PROT
	}
	return 0
}
