package arena

import "fmt"

// GraphicPointer is a range of bytes inside an arena's backing store. A pointer with
// Size 0 is the null pointer and refers to no allocation. Pointers carry no arena
// identity, so callers must remember which arena a pointer came from.
type GraphicPointer struct {
	StartIdx uint64
	Size     uint64
}

// NullPointer is returned when an allocation cannot be satisfied
var NullPointer = GraphicPointer{}

func (p GraphicPointer) IsNull() bool {
	return p.Size == 0
}

// End is the index one past the last byte of the range
func (p GraphicPointer) End() uint64 {
	return p.StartIdx + p.Size
}

func (p GraphicPointer) overlaps(other GraphicPointer) bool {
	return p.StartIdx < other.End() && other.StartIdx < p.End()
}

func (p GraphicPointer) String() string {
	return fmt.Sprintf("{%d,%d}", p.StartIdx, p.Size)
}
