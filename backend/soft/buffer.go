package soft

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/backend"
)

// Buffer is a backend.Buffer held in ordinary memory
type Buffer struct {
	mutex     sync.Mutex
	usage     backend.BufferUsage
	data      []byte
	writes    int
	resizes   int
	destroyed bool
}

var _ backend.Buffer = &Buffer{}

func (b *Buffer) Write(offset int, data []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return backend.ErrDestroyed
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return errors.Newf("write of %d bytes at offset %d does not fit in a buffer of %d bytes", len(data), offset, len(b.data))
	}

	copy(b.data[offset:], data)
	b.writes++
	return nil
}

func (b *Buffer) Resize(size int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return backend.ErrDestroyed
	}
	if size < 0 {
		return errors.Newf("buffer size cannot be negative: %d", size)
	}

	if size <= cap(b.data) {
		oldSize := len(b.data)
		b.data = b.data[:size]
		if size > oldSize {
			clear(b.data[oldSize:])
		}
	} else {
		newData := make([]byte, size)
		copy(newData, b.data)
		b.data = newData
	}

	b.resizes++
	return nil
}

func (b *Buffer) Size() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.data)
}

func (b *Buffer) Destroy() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return backend.ErrDestroyed
	}

	b.destroyed = true
	b.data = nil
	return nil
}

// Usage is the usage the buffer was created with
func (b *Buffer) Usage() backend.BufferUsage {
	return b.usage
}

// Bytes returns a copy of the buffer's current contents
func (b *Buffer) Bytes() []byte {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return append([]byte(nil), b.data...)
}

// WriteCount is the number of successful Write calls made against the buffer
func (b *Buffer) WriteCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.writes
}

// ResizeCount is the number of successful Resize calls made against the buffer
func (b *Buffer) ResizeCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.resizes
}

func (b *Buffer) Destroyed() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.destroyed
}
