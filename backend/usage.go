package backend

import "fmt"

// BufferUsage tags what a buffer will be bound as when the GPU consumes it
type BufferUsage uint8

const (
	BufferUsageUniform BufferUsage = iota
	BufferUsageStorage
	BufferUsageVertex
	BufferUsageIndex
)

var bufferUsageMapping = map[BufferUsage]string{
	BufferUsageUniform: "Uniform",
	BufferUsageStorage: "Storage",
	BufferUsageVertex:  "Vertex",
	BufferUsageIndex:   "Index",
}

func (u BufferUsage) String() string {
	str, ok := bufferUsageMapping[u]
	if !ok {
		return fmt.Sprintf("BufferUsage(%d)", uint8(u))
	}

	return str
}

// Valid reports whether u is one of the declared usages
func (u BufferUsage) Valid() bool {
	_, ok := bufferUsageMapping[u]
	return ok
}
