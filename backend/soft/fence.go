package soft

import (
	"sync/atomic"

	"github.com/vkngwrapper/rendercore/backend"
)

// Fence is a backend.Fence that only signals when Signal is called
type Fence struct {
	signaled atomic.Bool
	released atomic.Int32
}

var _ backend.Fence = &Fence{}

func (f *Fence) Signaled() bool {
	return f.signaled.Load()
}

// Signal marks the fence as complete, standing in for the GPU finishing its work
func (f *Fence) Signal() {
	f.signaled.Store(true)
}

// Reset returns the fence to the unsignalled state
func (f *Fence) Reset() {
	f.signaled.Store(false)
}

func (f *Fence) Release() {
	if f.released.Add(1) > 1 {
		panic("soft fence released more than once")
	}
}

func (f *Fence) Released() bool {
	return f.released.Load() > 0
}
