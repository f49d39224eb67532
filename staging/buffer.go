package staging

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/backend"
)

// Buffer is a CPU-side copy of data bound for a backend buffer. Any goroutine may mutate
// it. Every mutation marks the buffer as queued on its UpdateQueue, and the backend
// buffer is only written when the queue is flushed.
type Buffer struct {
	queue   *UpdateQueue
	id      int
	usage   backend.BufferUsage
	backend backend.Buffer

	mutex     sync.Mutex
	data      []byte
	destroyed bool

	queued atomic.Bool
}

// Set replaces the contents of the buffer. The CPU blob is only reallocated when the
// size changes.
func (b *Buffer) Set(data []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}

	if len(data) != len(b.data) {
		b.data = make([]byte, len(data))
	}
	copy(b.data, data)

	b.queue.enqueue(b)
	return nil
}

// Write copies data into the buffer at offset. The write must fit within the current
// size of the buffer.
func (b *Buffer) Write(data []byte, offset int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return errors.Wrapf(ErrOutOfRange, "write of %d bytes at offset %d into %d bytes", len(data), offset, len(b.data))
	}

	copy(b.data[offset:], data)

	b.queue.enqueue(b)
	return nil
}

// Append grows the buffer by len(data) and copies data after the existing contents.
// It returns the offset the data was written to.
func (b *Buffer) Append(data []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return 0, ErrDestroyed
	}

	offset := len(b.data)
	b.data = append(b.data, data...)

	b.queue.enqueue(b)
	return offset, nil
}

// Resize truncates or zero-extends the buffer
func (b *Buffer) Resize(size int) error {
	if size < 0 {
		return errors.Newf("staging buffer size cannot be negative: %d", size)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}
	if size == len(b.data) {
		return nil
	}

	if size < len(b.data) {
		b.data = b.data[:size:size]
	} else {
		newData := make([]byte, size)
		copy(newData, b.data)
		b.data = newData
	}

	b.queue.enqueue(b)
	return nil
}

func (b *Buffer) Size() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.data)
}

func (b *Buffer) Usage() backend.BufferUsage {
	return b.usage
}

// Backend is the buffer the GPU reads. Its contents lag the CPU copy until the next flush.
func (b *Buffer) Backend() backend.Buffer {
	return b.backend
}

// Bytes returns a copy of the CPU-side contents
func (b *Buffer) Bytes() []byte {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return append([]byte(nil), b.data...)
}

// View calls viewer with the CPU-side contents while holding the buffer's lock. The slice
// must not be retained or modified.
func (b *Buffer) View(viewer func(data []byte)) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	viewer(b.data)
}

// IsQueued reports whether the buffer is waiting for the next flush
func (b *Buffer) IsQueued() bool {
	return b.queued.Load()
}

func (b *Buffer) Destroyed() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.destroyed
}

// Destroy frees the CPU copy and destroys the backend buffer. A pending update for the
// buffer is dropped by the next flush.
func (b *Buffer) Destroy() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}

	b.destroyed = true
	b.data = nil
	b.queue.forget(b)

	return b.backend.Destroy()
}

// flush pushes the CPU copy to the backend. The queued flag is cleared before the copy,
// under the buffer lock, so a mutation that lands after this flush queues the buffer again.
func (b *Buffer) flush() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.destroyed {
		return nil
	}

	b.queued.Store(false)

	if b.backend.Size() != len(b.data) {
		err := b.backend.Resize(len(b.data))
		if err != nil {
			return errors.Wrapf(err, "resize %s buffer %d to %d bytes", b.usage, b.id, len(b.data))
		}
	}

	if len(b.data) == 0 {
		return nil
	}

	err := b.backend.Write(0, b.data)
	if err != nil {
		return errors.Wrapf(err, "write %s buffer %d", b.usage, b.id)
	}

	return nil
}
