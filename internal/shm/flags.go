package shm

// SegmentFlags are the creation-time bit flags from spec.md §6.
type SegmentFlags uint32

const (
	FlagCreate SegmentFlags = 1 << iota
	FlagExclusive
	FlagResize
	FlagCOW
	FlagPersist
	FlagLocked
)

func (f SegmentFlags) has(bit SegmentFlags) bool { return f&bit != 0 }

// Perms is a permission bitmask; effective permissions are the
// intersection of a mapping's requested perms with the segment's
// default perms.
type Perms uint32

const (
	PermRead Perms = 1 << iota
	PermWrite
	PermExec
)
