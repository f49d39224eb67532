// Package handle issues generational handles: small copyable references to slots in a
// Registry that can always be checked for staleness.
package handle

import "fmt"

const (
	IndexBits   = 22
	VersionBits = 10

	// MaxIndex is the number of slots a registry can hold
	MaxIndex = 1 << IndexBits
	// MaxVersion is the largest version a slot can carry before wrapping back to FirstVersion
	MaxVersion = 1<<VersionBits - 1
	// FirstVersion is the version assigned to a brand new slot. Version 0 is never issued,
	// so the zero Handle is never valid.
	FirstVersion = 1

	indexMask = MaxIndex - 1
)

// Handle packs a slot index into its low 22 bits and the slot version into its high 10 bits
type Handle uint32

// Null is the zero handle. It is never valid in any registry.
const Null Handle = 0

// New packs index and version into a Handle. It panics if either is out of range.
func New(index int, version uint16) Handle {
	if index < 0 || index >= MaxIndex {
		panic(fmt.Sprintf("handle index %d out of range", index))
	}
	if version > MaxVersion {
		panic(fmt.Sprintf("handle version %d out of range", version))
	}

	return Handle(uint32(version)<<IndexBits | uint32(index))
}

func (h Handle) Index() int {
	return int(uint32(h) & indexMask)
}

func (h Handle) Version() uint16 {
	return uint16(uint32(h) >> IndexBits)
}

func (h Handle) IsNull() bool {
	return h == Null
}

func (h Handle) String() string {
	if h.IsNull() {
		return "Handle(null)"
	}
	return fmt.Sprintf("Handle(%d@v%d)", h.Index(), h.Version())
}

func nextVersion(version uint16) uint16 {
	if version >= MaxVersion {
		return FirstVersion
	}
	return version + 1
}
