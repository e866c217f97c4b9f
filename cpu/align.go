package cpu

import "golang.org/x/exp/constraints"

// Align rounds n up to the next multiple of to (a power of two).
func Align[I constraints.Integer](n, to I) I {
	return (n + to - 1) &^ (to - 1)
}

// AlignDown rounds n down to a multiple of to (a power of two).
func AlignDown[I constraints.Integer](n, to I) I {
	return n &^ (to - 1)
}

// Aligned reports whether n is a multiple of to (a power of two).
func Aligned[I constraints.Integer](n, to I) bool {
	return n&(to-1) == 0
}
