// Package vulkan implements the backend contract on top of vkngwrapper. Buffers live in
// host-visible, host-coherent memory that stays mapped for the buffer's lifetime, so a
// write is a memcpy and needs no flush. Fences are polled with vkGetFenceStatus.
package vulkan

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
	"github.com/vkngwrapper/rendercore/backend"
)

// CreateOptions holds optional parameters for NewDevice
type CreateOptions struct {
	// AllocationCallbacks are passed to every Vulkan create and destroy call
	AllocationCallbacks *driver.AllocationCallbacks
	// DisableDeviceAddress stops storage buffers from being created with
	// BufferUsageShaderDeviceAddress even when the device supports it
	DisableDeviceAddress bool
}

// Device creates backend buffers and fences on a Vulkan device
type Device struct {
	logger    *slog.Logger
	device    core1_0.Device
	callbacks *driver.AllocationCallbacks

	memoryTypes   []core1_0.MemoryType
	deviceAddress bool
}

var _ backend.Device = &Device{}

// NewDevice wraps device. Buffer device addresses are used when the device is Vulkan 1.2
// or has khr_buffer_device_address active.
func NewDevice(logger *slog.Logger, device core1_0.Device, physicalDevice core1_0.PhysicalDevice, options CreateOptions) (*Device, error) {
	if device == nil || physicalDevice == nil {
		return nil, errors.New("vulkan backend requires a device and a physical device")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	memoryProperties := physicalDevice.MemoryProperties()
	if memoryProperties == nil {
		return nil, errors.New("physical device did not report memory properties")
	}

	deviceAddress := false
	if !options.DisableDeviceAddress {
		deviceAddress = core1_2.PromoteDevice(device) != nil ||
			device.IsDeviceExtensionActive(khr_buffer_device_address.ExtensionName)
	}

	logger.Debug("Device::NewDevice",
		slog.Int("memoryTypes", len(memoryProperties.MemoryTypes)),
		slog.Bool("deviceAddress", deviceAddress),
	)

	return &Device{
		logger:        logger,
		device:        device,
		callbacks:     options.AllocationCallbacks,
		memoryTypes:   memoryProperties.MemoryTypes,
		deviceAddress: deviceAddress,
	}, nil
}

// UsesDeviceAddress reports whether storage buffers are created with a shader device address
func (d *Device) UsesDeviceAddress() bool {
	return d.deviceAddress
}

func (d *Device) NewBuffer(usage backend.BufferUsage, size int) (backend.Buffer, error) {
	if !usage.Valid() {
		return nil, errors.Newf("unknown buffer usage %s", usage)
	}
	if size < 0 {
		return nil, errors.Newf("buffer size cannot be negative: %d", size)
	}

	d.logger.Debug("Device::NewBuffer", slog.String("usage", usage.String()), slog.Int("size", size))

	buffer := &Buffer{device: d, usage: usage}
	err := buffer.Resize(size)
	if err != nil {
		return nil, err
	}

	return buffer, nil
}

func (d *Device) NewFence() (backend.Fence, error) {
	fence, _, err := d.device.CreateFence(d.callbacks, core1_0.FenceCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}

	return &Fence{device: d, fence: fence}, nil
}

// bufferUsageFlags maps a backend usage to Vulkan usage flags. Every buffer is a transfer
// destination so it can also be filled by copy commands.
func bufferUsageFlags(usage backend.BufferUsage, deviceAddress bool) core1_0.BufferUsageFlags {
	flags := core1_0.BufferUsageTransferDst

	switch usage {
	case backend.BufferUsageUniform:
		flags |= core1_0.BufferUsageUniformBuffer
	case backend.BufferUsageStorage:
		flags |= core1_0.BufferUsageStorageBuffer
		if deviceAddress {
			flags |= khr_buffer_device_address.BufferUsageShaderDeviceAddress
		}
	case backend.BufferUsageVertex:
		flags |= core1_0.BufferUsageVertexBuffer
	case backend.BufferUsageIndex:
		flags |= core1_0.BufferUsageIndexBuffer
	}

	return flags
}

// findMemoryType returns the first memory type allowed by typeBits that has every
// property in required
func findMemoryType(memoryTypes []core1_0.MemoryType, typeBits uint32, required core1_0.MemoryPropertyFlags) (int, error) {
	for index, memoryType := range memoryTypes {
		if typeBits&(1<<uint(index)) == 0 {
			continue
		}
		if memoryType.PropertyFlags&required == required {
			return index, nil
		}
	}

	return -1, errors.Newf("no memory type in mask %#x has properties %s", typeBits, required)
}
