// Package backend declares the narrow contract the render core needs from a graphics
// execution backend: byte-addressed buffers that can be written and resized, and
// completion fences that can be polled without blocking. Nothing here says how a
// backend carries out the work.
package backend

//go:generate mockgen -source backend.go -destination ./mocks/backend.go -package mock_backend

import "github.com/cockroachdb/errors"

// ErrDestroyed is returned by backend objects used after Destroy
var ErrDestroyed = errors.New("backend object has been destroyed")

// Buffer is GPU-visible storage owned by a backend. The render core only ever
// touches a Buffer from the thread that drives the tick.
type Buffer interface {
	// Write copies data into the buffer starting at offset. offset+len(data) must not
	// exceed Size().
	Write(offset int, data []byte) error
	// Resize changes the size of the buffer. Contents up to min(old, new) are preserved
	// and any newly added bytes are zero.
	Resize(size int) error
	// Size is the current size of the buffer in bytes
	Size() int
	// Destroy releases the backend-side storage. The buffer must not be used afterward.
	Destroy() error
}

// Fence is an opaque completion token signalled by the GPU once it has finished with
// the work it was submitted alongside.
type Fence interface {
	// Signaled polls the fence without blocking
	Signaled() bool
	// Release frees the fence. It is called exactly once by whichever object holds the
	// fence when it is discarded.
	Release()
}

// Device creates backend objects
type Device interface {
	// NewBuffer creates a buffer for the given usage. size may be 0.
	NewBuffer(usage BufferUsage, size int) (Buffer, error)
	// NewFence creates an unsignalled fence
	NewFence() (Fence, error)
}
