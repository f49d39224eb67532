// Package soft is a CPU-only backend. Buffers are plain byte slices, fences are
// signalled by hand, and the Sequencer records stage names instead of GPU commands.
// It exists so the render core can run headless and be tested without a device.
package soft

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/backend"
)

// Device hands out soft buffers and fences and remembers every object it created
type Device struct {
	mutex   sync.Mutex
	buffers []*Buffer
	fences  []*Fence
}

var _ backend.Device = &Device{}

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) NewBuffer(usage backend.BufferUsage, size int) (backend.Buffer, error) {
	if !usage.Valid() {
		return nil, errors.Newf("unknown buffer usage %s", usage)
	}
	if size < 0 {
		return nil, errors.Newf("buffer size cannot be negative: %d", size)
	}

	buffer := &Buffer{usage: usage, data: make([]byte, size)}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.buffers = append(d.buffers, buffer)

	return buffer, nil
}

func (d *Device) NewFence() (backend.Fence, error) {
	fence := &Fence{}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.fences = append(d.fences, fence)

	return fence, nil
}

// Buffers returns every buffer created by this device, in creation order
func (d *Device) Buffers() []*Buffer {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return append([]*Buffer(nil), d.buffers...)
}

// LiveBuffers counts the buffers that have not been destroyed
func (d *Device) LiveBuffers() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	count := 0
	for _, buffer := range d.buffers {
		if !buffer.Destroyed() {
			count++
		}
	}
	return count
}

// Fences returns every fence created by this device, in creation order
func (d *Device) Fences() []*Fence {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return append([]*Fence(nil), d.fences...)
}
