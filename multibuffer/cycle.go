package multibuffer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/backend"
	"github.com/vkngwrapper/rendercore/staging"
)

type cycleSlot struct {
	buffer  backend.Buffer
	version uint64
	fence   backend.Fence

	stalledTicks int
}

// CycleBuffer keeps one canonical CPU copy of some data and up to MaxSlots backend
// copies. Each Tick brings one slot up to date and makes it the slot the GPU should
// read next. A slot whose fence has not signalled is left alone for that tick, so the
// GPU never has its data overwritten mid-read.
type CycleBuffer struct {
	logger         *slog.Logger
	name           string
	usage          backend.BufferUsage
	stallWarnTicks int

	mutex   sync.Mutex
	data    []byte
	version uint64
	slots   []*cycleSlot
	next    int
	current int
}

// NewCycleBuffer creates slots backend buffers sized for data. slots must be between
// 1 and MaxSlots. Backend creation failures are marked with staging.ErrBackendCreation.
func NewCycleBuffer(device backend.Device, usage backend.BufferUsage, slots int, data []byte, opts ...CycleOption) (*CycleBuffer, error) {
	if slots < 1 || slots > MaxSlots {
		return nil, errors.Newf("cycle buffer slot count must be between 1 and %d, got %d", MaxSlots, slots)
	}

	cfg := cycleConfig{
		stallWarnTicks: DefaultStallWarnTicks,
		name:           "cycle buffer",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	c := &CycleBuffer{
		logger:         cfg.logger,
		name:           cfg.name,
		usage:          usage,
		stallWarnTicks: cfg.stallWarnTicks,
		data:           append([]byte(nil), data...),
		version:        1,
	}

	for i := 0; i < slots; i++ {
		buffer, err := device.NewBuffer(usage, len(data))
		if err != nil {
			_ = c.Destroy()
			return nil, errors.Mark(errors.Wrapf(err, "create %s slot %d", c.name, i), staging.ErrBackendCreation)
		}

		c.slots = append(c.slots, &cycleSlot{buffer: buffer})
	}

	return c, nil
}

// Set replaces the CPU copy. Slots pick up the change as they are ticked.
func (c *CycleBuffer) Set(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(data) != len(c.data) {
		c.data = make([]byte, len(data))
	}
	copy(c.data, data)
	c.version++
}

// Write copies data into the CPU copy at offset
func (c *CycleBuffer) Write(data []byte, offset int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if offset < 0 || offset+len(data) > len(c.data) {
		return errors.Wrapf(staging.ErrOutOfRange, "write of %d bytes at offset %d into %d bytes", len(data), offset, len(c.data))
	}

	copy(c.data[offset:], data)
	c.version++
	return nil
}

// Tick synchronizes the next slot with the CPU copy and makes it current. The fence
// check never blocks: a slot the GPU is still reading keeps its old contents and is
// tried again the next time the rotation reaches it.
func (c *CycleBuffer) Tick() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	index := c.next
	err := c.sync(index)

	c.current = index
	c.next = (index + 1) % len(c.slots)
	return err
}

func (c *CycleBuffer) sync(index int) error {
	slot := c.slots[index]

	if slot.fence != nil {
		if !slot.fence.Signaled() {
			slot.stalledTicks++
			if slot.stalledTicks == c.stallWarnTicks {
				c.logger.LogAttrs(context.Background(), slog.LevelWarn, "cycle buffer slot is waiting on a fence that has not signalled",
					slog.String("name", c.name),
					slog.Int("slot", index),
					slog.Int("ticks", slot.stalledTicks),
					slog.Uint64("slotVersion", slot.version),
					slog.Uint64("version", c.version),
				)
			}
			return nil
		}

		slot.fence.Release()
		slot.fence = nil
	}
	slot.stalledTicks = 0

	if slot.version == c.version {
		return nil
	}

	if slot.buffer.Size() != len(c.data) {
		err := slot.buffer.Resize(len(c.data))
		if err != nil {
			return errors.Wrapf(err, "resize %s slot %d to %d bytes", c.name, index, len(c.data))
		}
	}

	if len(c.data) > 0 {
		err := slot.buffer.Write(0, c.data)
		if err != nil {
			return errors.Wrapf(err, "write %s slot %d", c.name, index)
		}
	}

	slot.version = c.version
	return nil
}

// Current is the backend buffer the GPU should read this frame
func (c *CycleBuffer) Current() backend.Buffer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.slots[c.current].buffer
}

// CurrentIndex is the slot index Current refers to
func (c *CycleBuffer) CurrentIndex() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.current
}

// MarkInUse installs fence on the current slot, replacing and releasing any fence it had.
// The slot will not be written again until the fence signals.
func (c *CycleBuffer) MarkInUse(fence backend.Fence) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	slot := c.slots[c.current]
	if slot.fence != nil && slot.fence != fence {
		slot.fence.Release()
	}
	slot.fence = fence
	slot.stalledTicks = 0
}

// Version increases every time the CPU copy changes
func (c *CycleBuffer) Version() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.version
}

// SlotVersion is the CPU version the slot last copied. 0 means never.
func (c *CycleBuffer) SlotVersion(slot int) uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.slots[slot].version
}

// Slot returns the backend buffer for a slot
func (c *CycleBuffer) Slot(slot int) backend.Buffer {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.slots[slot].buffer
}

func (c *CycleBuffer) SlotCount() int {
	return len(c.slots)
}

func (c *CycleBuffer) Usage() backend.BufferUsage {
	return c.usage
}

func (c *CycleBuffer) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.data)
}

// Destroy releases every outstanding fence and destroys every slot
func (c *CycleBuffer) Destroy() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var err error
	for index, slot := range c.slots {
		if slot.fence != nil {
			slot.fence.Release()
			slot.fence = nil
		}

		destroyErr := slot.buffer.Destroy()
		if destroyErr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(destroyErr, "destroy %s slot %d", c.name, index))
		}
	}

	c.slots = nil
	c.data = nil
	return err
}
