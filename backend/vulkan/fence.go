package vulkan

import (
	"context"
	"log/slog"

	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rendercore/backend"
)

// Fence wraps a VkFence. Signaled never waits.
type Fence struct {
	device *Device
	fence  core1_0.Fence
}

var _ backend.Fence = &Fence{}

// Handle is the underlying VkFence, for passing to queue submission
func (f *Fence) Handle() core1_0.Fence {
	return f.fence
}

func (f *Fence) Signaled() bool {
	if f.fence == nil {
		return true
	}

	status, err := f.fence.Status()
	if err != nil {
		// A lost device will never signal. Report it and let the cycle buffer's stall
		// warning take over.
		f.device.logger.LogAttrs(context.Background(), slog.LevelError, "failed to poll fence status",
			slog.Int("result", int(status)),
			slog.Any("error", err),
		)
		return false
	}

	return status == core1_0.VKSuccess
}

func (f *Fence) Release() {
	if f.fence == nil {
		panic("vulkan fence released more than once")
	}

	f.fence.Destroy(f.device.callbacks)
	f.fence = nil
}
