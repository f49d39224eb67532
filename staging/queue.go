// Package staging holds CPU-side copies of GPU buffers and the queue that pushes them to
// the backend once per tick.
package staging

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/rendercore/backend"
)

// UpdateQueue owns a set of staging buffers and the list of those waiting to be written
// to the backend. Flush is the only place backend buffers are written, and it must only
// be called from the goroutine that owns the GPU context.
type UpdateQueue struct {
	logger *slog.Logger
	device backend.Device

	mutex   sync.Mutex
	pending []*Buffer
	live    *swiss.Map[int, *Buffer]
	nextID  int
}

// NewUpdateQueue creates an empty queue. A nil logger discards all output.
func NewUpdateQueue(logger *slog.Logger, device backend.Device) *UpdateQueue {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if device == nil {
		panic("staging: NewUpdateQueue called with a nil device")
	}

	return &UpdateQueue{
		logger: logger,
		device: device,
		live:   swiss.NewMap[int, *Buffer](16),
	}
}

// NewBuffer creates a staging buffer along with its backend buffer. If data is not
// empty, the buffer is queued so its contents reach the backend on the next flush.
func (q *UpdateQueue) NewBuffer(usage backend.BufferUsage, data []byte) (*Buffer, error) {
	q.logger.Debug("UpdateQueue::NewBuffer", slog.String("usage", usage.String()), slog.Int("size", len(data)))

	backendBuffer, err := q.device.NewBuffer(usage, len(data))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "create %s buffer of %d bytes", usage, len(data)), ErrBackendCreation)
	}

	buffer := &Buffer{
		queue:   q,
		usage:   usage,
		backend: backendBuffer,
		data:    append([]byte(nil), data...),
	}

	q.mutex.Lock()
	buffer.id = q.nextID
	q.nextID++
	q.live.Put(buffer.id, buffer)
	q.mutex.Unlock()

	if len(data) > 0 {
		buffer.mutex.Lock()
		q.enqueue(buffer)
		buffer.mutex.Unlock()
	}

	return buffer, nil
}

func (q *UpdateQueue) enqueue(buffer *Buffer) {
	if !buffer.queued.CompareAndSwap(false, true) {
		return
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.pending = append(q.pending, buffer)
}

func (q *UpdateQueue) forget(buffer *Buffer) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.live.Delete(buffer.id)
}

// Len is the number of buffers waiting for the next flush
func (q *UpdateQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.pending)
}

// LiveBuffers is the number of buffers created by this queue that have not been destroyed
func (q *UpdateQueue) LiveBuffers() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.live.Count()
}

// Flush writes every queued buffer to the backend in the order it was queued. The
// backend sees each buffer's contents as of the moment it is flushed. Failures do not
// stop the flush; they are combined and returned.
func (q *UpdateQueue) Flush() error {
	q.mutex.Lock()
	pending := q.pending
	q.pending = nil
	q.mutex.Unlock()

	if len(pending) == 0 {
		return nil
	}

	q.logger.Debug("UpdateQueue::Flush", slog.Int("buffers", len(pending)))

	var err error
	for _, buffer := range pending {
		err = errors.CombineErrors(err, buffer.flush())
	}

	return err
}

// Destroy destroys every buffer still owned by the queue. Each one is logged, since
// buffer owners are expected to destroy their own buffers first.
func (q *UpdateQueue) Destroy() error {
	q.mutex.Lock()
	var remaining []*Buffer
	q.live.Iter(func(id int, buffer *Buffer) bool {
		remaining = append(remaining, buffer)
		return false
	})
	q.pending = nil
	q.mutex.Unlock()

	var err error
	for _, buffer := range remaining {
		q.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED RESOURCE] staging buffer",
			slog.Int("id", buffer.id),
			slog.String("usage", buffer.usage.String()),
			slog.Int("size", buffer.Size()),
		)

		destroyErr := buffer.Destroy()
		if destroyErr != nil && !errors.Is(destroyErr, ErrDestroyed) {
			err = errors.CombineErrors(err, destroyErr)
		}
	}

	return err
}

// PrintDetailedMap writes the queue's live buffers to json, ordered by creation
func (q *UpdateQueue) PrintDetailedMap(json jwriter.ObjectState) {
	q.mutex.Lock()
	pending := len(q.pending)
	buffers := make([]*Buffer, 0, q.live.Count())
	q.live.Iter(func(id int, buffer *Buffer) bool {
		buffers = append(buffers, buffer)
		return false
	})
	q.mutex.Unlock()

	slices.SortFunc(buffers, func(left, right *Buffer) int {
		return left.id - right.id
	})

	json.Name("Pending").Int(pending)
	json.Name("LiveBuffers").Int(len(buffers))

	array := json.Name("Buffers").Array()
	defer array.End()

	for _, buffer := range buffers {
		obj := array.Object()
		obj.Name("Id").Int(buffer.id)
		obj.Name("Usage").String(buffer.usage.String())
		obj.Name("Size").Int(buffer.Size())
		obj.Name("Queued").Bool(buffer.IsQueued())
		obj.End()
	}
}
