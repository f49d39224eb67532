// Package multibuffer rotates between several copies of a GPU resource, so the CPU can
// author the next frame in one copy while the GPU reads another.
package multibuffer

import (
	"github.com/cockroachdb/errors"
)

// MaxSlots is the largest number of copies a Chain or CycleBuffer can rotate between
const MaxSlots = 4

const uninitializedCursor uint8 = 0xFF

// Chain owns count identically built values and two cursors into them: the slot the CPU
// writes next and the slot the GPU consumes. Only the goroutine that drives the render
// tick may call EndWrite or AdvanceGPU. Nothing else moves the cursors, so the chain has
// no lock.
type Chain[T any] struct {
	slots []T
	cpu   uint8
	gpu   uint8
}

// NewChain builds count slots with build. count must be between 1 and MaxSlots. If
// build fails, the slots built so far are discarded and the error is returned.
func NewChain[T any](count int, build func(slot int) (T, error)) (*Chain[T], error) {
	chain := &Chain[T]{
		cpu: uninitializedCursor,
		gpu: uninitializedCursor,
	}

	err := chain.Init(count, build)
	if err != nil {
		return nil, err
	}

	return chain, nil
}

// Init builds the slots of a zero-value chain. On failure the chain stays uninitialized.
func (c *Chain[T]) Init(count int, build func(slot int) (T, error)) error {
	if c.Initialized() {
		return errors.New("chain is already initialized")
	}
	if count < 1 || count > MaxSlots {
		return errors.Newf("chain length must be between 1 and %d, got %d", MaxSlots, count)
	}

	slots := make([]T, 0, count)
	for i := 0; i < count; i++ {
		value, err := build(i)
		if err != nil {
			return errors.Wrapf(err, "build chain slot %d", i)
		}
		slots = append(slots, value)
	}

	c.slots = slots
	c.cpu = 0
	c.gpu = 0
	return nil
}

func (c *Chain[T]) Len() int {
	return len(c.slots)
}

func (c *Chain[T]) Initialized() bool {
	return len(c.slots) > 0 && c.cpu != uninitializedCursor && c.gpu != uninitializedCursor
}

func (c *Chain[T]) checkInitialized() {
	if !c.Initialized() {
		panic("multibuffer: chain used before it was initialized")
	}
}

// BeginWrite returns the slot the CPU should write into this frame
func (c *Chain[T]) BeginWrite() T {
	return c.CurrentCPU()
}

func (c *Chain[T]) CurrentCPU() T {
	c.checkInitialized()
	return c.slots[c.cpu]
}

func (c *Chain[T]) CurrentGPU() T {
	c.checkInitialized()
	return c.slots[c.gpu]
}

// CPUIndex and GPUIndex return the raw cursors. They are 0xFF on a chain that was never
// initialized.
func (c *Chain[T]) CPUIndex() int {
	if !c.Initialized() {
		return int(uninitializedCursor)
	}
	return int(c.cpu)
}

func (c *Chain[T]) GPUIndex() int {
	if !c.Initialized() {
		return int(uninitializedCursor)
	}
	return int(c.gpu)
}

// EndWrite hands the slot the CPU just wrote to the GPU and moves the CPU on to the next slot
func (c *Chain[T]) EndWrite() {
	c.checkInitialized()

	c.gpu = c.cpu
	c.cpu = uint8((int(c.cpu) + 1) % len(c.slots))
}

// AdvanceGPU moves the GPU cursor to the next slot without publishing a CPU write
func (c *Chain[T]) AdvanceGPU() {
	c.checkInitialized()

	c.gpu = uint8((int(c.gpu) + 1) % len(c.slots))
}

// Each calls visit for every slot in order. It is meant for teardown.
func (c *Chain[T]) Each(visit func(slot int, value T)) {
	for i, value := range c.slots {
		visit(i, value)
	}
}
