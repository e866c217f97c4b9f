package emu

const (
	VERSION_MAJOR = 1
	VERSION_MINOR = 0
)

// Version returns the engine API version.
func Version() (major, minor int) {
	return VERSION_MAJOR, VERSION_MINOR
}

// MakeVersion encodes a version pair the way snapshot headers store it.
func MakeVersion(major, minor int) int {
	return major<<8 | minor
}
