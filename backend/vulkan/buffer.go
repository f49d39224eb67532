package vulkan

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
	"github.com/vkngwrapper/rendercore/backend"
	"github.com/vkngwrapper/rendercore/memutils"
)

// capacityAlignment is the granularity buffers are allocated at, so small growth does not
// recreate the VkBuffer every time
const capacityAlignment = 256

const hostMemoryProperties = core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

// Buffer is a VkBuffer bound to its own persistently mapped allocation
type Buffer struct {
	device *Device
	usage  backend.BufferUsage
	size   int

	capacity int
	buffer   core1_0.Buffer
	memory   core1_0.DeviceMemory
	mapped   unsafe.Pointer

	destroyed bool
}

var _ backend.Buffer = &Buffer{}

// Handle is the underlying VkBuffer. It is nil while the buffer is empty and changes
// whenever a Resize outgrows the current allocation.
func (b *Buffer) Handle() core1_0.Buffer {
	return b.buffer
}

func (b *Buffer) Size() int {
	return b.size
}

func (b *Buffer) bytes() []byte {
	if b.mapped == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.mapped), b.capacity)
}

func (b *Buffer) Write(offset int, data []byte) error {
	if b.destroyed {
		return backend.ErrDestroyed
	}
	if offset < 0 || offset+len(data) > b.size {
		return errors.Newf("write of %d bytes at offset %d does not fit in a buffer of %d bytes", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}

	copy(b.bytes()[offset:], data)
	return nil
}

// Resize keeps the current allocation when it is large enough. Otherwise a new buffer is
// created, the live contents are copied across, and the old buffer is destroyed.
func (b *Buffer) Resize(size int) error {
	if b.destroyed {
		return backend.ErrDestroyed
	}
	if size < 0 {
		return errors.Newf("buffer size cannot be negative: %d", size)
	}

	if size <= b.capacity {
		if size > b.size {
			clear(b.bytes()[b.size:size])
		}
		b.size = size
		return nil
	}

	capacity := memutils.AlignUp(size, capacityAlignment)
	buffer, memory, mapped, err := b.device.allocate(b.usage, capacity)
	if err != nil {
		return err
	}

	newBytes := unsafe.Slice((*byte)(mapped), capacity)
	copied := copy(newBytes, b.bytes()[:b.size])
	clear(newBytes[copied:size])

	b.release()
	b.buffer = buffer
	b.memory = memory
	b.mapped = mapped
	b.capacity = capacity
	b.size = size
	return nil
}

func (b *Buffer) release() {
	if b.buffer == nil {
		return
	}

	b.memory.Unmap()
	b.buffer.Destroy(b.device.callbacks)
	b.memory.Free(b.device.callbacks)

	b.buffer = nil
	b.memory = nil
	b.mapped = nil
	b.capacity = 0
}

func (b *Buffer) Destroy() error {
	if b.destroyed {
		return backend.ErrDestroyed
	}

	b.release()
	b.destroyed = true
	b.size = 0
	return nil
}

func (d *Device) allocate(usage backend.BufferUsage, size int) (core1_0.Buffer, core1_0.DeviceMemory, unsafe.Pointer, error) {
	usageFlags := bufferUsageFlags(usage, d.deviceAddress)

	buffer, _, err := d.device.CreateBuffer(d.callbacks, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usageFlags,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "create %s buffer of %d bytes", usage, size)
	}

	requirements := buffer.MemoryRequirements()
	memoryTypeIndex, err := findMemoryType(d.memoryTypes, requirements.MemoryTypeBits, hostMemoryProperties)
	if err != nil {
		buffer.Destroy(d.callbacks)
		return nil, nil, nil, err
	}

	memutils.DebugCheckPow2(requirements.Alignment, "buffer memory alignment")

	allocateInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	}
	if usageFlags&khr_buffer_device_address.BufferUsageShaderDeviceAddress != 0 {
		allocateInfo.NextOptions = common.NextOptions{
			Next: core1_1.MemoryAllocateFlagsInfo{
				Flags: khr_buffer_device_address.MemoryAllocateDeviceAddress,
			},
		}
	}

	memory, _, err := d.device.AllocateMemory(d.callbacks, allocateInfo)
	if err != nil {
		buffer.Destroy(d.callbacks)
		return nil, nil, nil, errors.Wrapf(err, "allocate %d bytes of host-visible memory", requirements.Size)
	}

	_, err = buffer.BindBufferMemory(memory, 0)
	if err != nil {
		buffer.Destroy(d.callbacks)
		memory.Free(d.callbacks)
		return nil, nil, nil, errors.Wrap(err, "bind buffer memory")
	}

	mapped, _, err := memory.Map(0, -1, 0)
	if err != nil {
		buffer.Destroy(d.callbacks)
		memory.Free(d.callbacks)
		return nil, nil, nil, errors.Wrap(err, "map buffer memory")
	}

	d.logger.LogAttrs(context.Background(), slog.LevelDebug, "Device::allocate",
		slog.String("usage", usage.String()),
		slog.Int("size", size),
		slog.Int("memoryType", memoryTypeIndex),
	)

	return buffer, memory, mapped, nil
}
