package vulkan

import (
	"io"
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// The fakes embed the core interfaces and override only what the backend calls. Anything
// else panics on the nil embedded interface.

type fakeMemory struct {
	core1_0.DeviceMemory

	data     []byte
	mapErr   error
	mapped   bool
	unmapped bool
	freed    bool
}

func (m *fakeMemory) Map(offset int, size int, flags core1_0.MemoryMapFlags) (unsafe.Pointer, common.VkResult, error) {
	if m.mapErr != nil {
		return nil, core1_0.VKErrorMemoryMapFailed, m.mapErr
	}
	m.mapped = true
	return unsafe.Pointer(&m.data[offset]), core1_0.VKSuccess, nil
}

func (m *fakeMemory) Unmap() {
	m.unmapped = true
}

func (m *fakeMemory) Free(callbacks *driver.AllocationCallbacks) {
	m.freed = true
}

type fakeBuffer struct {
	core1_0.Buffer

	info      core1_0.BufferCreateInfo
	bindErr   error
	bound     core1_0.DeviceMemory
	destroyed bool
}

func (b *fakeBuffer) MemoryRequirements() *core1_0.MemoryRequirements {
	return &core1_0.MemoryRequirements{
		Size:           b.info.Size,
		Alignment:      64,
		MemoryTypeBits: 0xFFFFFFFF,
	}
}

func (b *fakeBuffer) BindBufferMemory(memory core1_0.DeviceMemory, offset int) (common.VkResult, error) {
	if b.bindErr != nil {
		return core1_0.VKErrorOutOfDeviceMemory, b.bindErr
	}
	b.bound = memory
	return core1_0.VKSuccess, nil
}

func (b *fakeBuffer) Destroy(callbacks *driver.AllocationCallbacks) {
	b.destroyed = true
}

type fakeFence struct {
	core1_0.Fence

	status    common.VkResult
	statusErr error
	destroyed bool
}

func (f *fakeFence) Status() (common.VkResult, error) {
	return f.status, f.statusErr
}

func (f *fakeFence) Destroy(callbacks *driver.AllocationCallbacks) {
	f.destroyed = true
}

type fakeDevice struct {
	core1_0.Device

	// fill is written over every new allocation so tests can tell cleared bytes apart
	fill    byte
	bindErr error
	mapErr  error

	buffers  []*fakeBuffer
	memories []*fakeMemory
	fences   []*fakeFence
}

func (d *fakeDevice) CreateBuffer(callbacks *driver.AllocationCallbacks, o core1_0.BufferCreateInfo) (core1_0.Buffer, common.VkResult, error) {
	buffer := &fakeBuffer{info: o, bindErr: d.bindErr}
	d.buffers = append(d.buffers, buffer)
	return buffer, core1_0.VKSuccess, nil
}

func (d *fakeDevice) AllocateMemory(callbacks *driver.AllocationCallbacks, o core1_0.MemoryAllocateInfo) (core1_0.DeviceMemory, common.VkResult, error) {
	data := make([]byte, o.AllocationSize)
	for i := range data {
		data[i] = d.fill
	}

	memory := &fakeMemory{data: data, mapErr: d.mapErr}
	d.memories = append(d.memories, memory)
	return memory, core1_0.VKSuccess, nil
}

func (d *fakeDevice) CreateFence(callbacks *driver.AllocationCallbacks, o core1_0.FenceCreateInfo) (core1_0.Fence, common.VkResult, error) {
	fence := &fakeFence{status: core1_0.VKNotReady}
	d.fences = append(d.fences, fence)
	return fence, core1_0.VKSuccess, nil
}

var errFake = errors.New("fake device failure")

func fakeBackend(fake *fakeDevice, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	return &Device{
		logger: logger,
		device: fake,
		memoryTypes: []core1_0.MemoryType{
			{PropertyFlags: core1_0.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: hostMemoryProperties, HeapIndex: 1},
		},
	}
}
