package vulkan

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rendercore/backend"
)

func TestBufferAllocatesHostCoherentMemory(t *testing.T) {
	fake := &fakeDevice{}
	device := fakeBackend(fake, nil)

	created, err := device.NewBuffer(backend.BufferUsageVertex, 16)
	require.NoError(t, err)
	buffer := created.(*Buffer)

	require.Len(t, fake.buffers, 1)
	require.Len(t, fake.memories, 1)
	require.Equal(t, capacityAlignment, fake.buffers[0].info.Size)
	require.Equal(t, core1_0.BufferUsageTransferDst|core1_0.BufferUsageVertexBuffer, fake.buffers[0].info.Usage)
	require.Same(t, fake.memories[0], fake.buffers[0].bound)
	require.True(t, fake.memories[0].mapped)
	require.Same(t, fake.buffers[0], buffer.Handle())

	require.NoError(t, buffer.Destroy())
	require.True(t, fake.buffers[0].destroyed)
	require.True(t, fake.memories[0].unmapped)
	require.True(t, fake.memories[0].freed)
}

func TestBufferResizeWithinCapacity(t *testing.T) {
	fake := &fakeDevice{}
	device := fakeBackend(fake, nil)

	created, err := device.NewBuffer(backend.BufferUsageUniform, 16)
	require.NoError(t, err)
	buffer := created.(*Buffer)

	require.NoError(t, buffer.Write(0, bytes.Repeat([]byte{7}, 16)))

	require.NoError(t, buffer.Resize(8))
	require.NoError(t, buffer.Resize(32))
	require.Equal(t, 32, buffer.Size())

	// No new allocation, and the bytes past the old size read back as zero
	require.Len(t, fake.memories, 1)
	data := fake.memories[0].data
	require.Equal(t, bytes.Repeat([]byte{7}, 8), data[:8])
	require.Equal(t, make([]byte, 24), data[8:32])

	require.Error(t, buffer.Write(30, []byte{1, 2, 3}))
	require.NoError(t, buffer.Destroy())
}

func TestBufferGrowPreservesContents(t *testing.T) {
	fake := &fakeDevice{fill: 0xAA}
	device := fakeBackend(fake, nil)

	created, err := device.NewBuffer(backend.BufferUsageStorage, 16)
	require.NoError(t, err)
	buffer := created.(*Buffer)
	require.Equal(t, make([]byte, 16), fake.memories[0].data[:16])

	contents := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	require.NoError(t, buffer.Write(0, contents))

	require.NoError(t, buffer.Resize(300))
	require.Equal(t, 300, buffer.Size())

	require.Len(t, fake.buffers, 2)
	require.Len(t, fake.memories, 2)
	require.Equal(t, 2*capacityAlignment, fake.buffers[1].info.Size)
	require.Same(t, fake.buffers[1], buffer.Handle())

	grown := fake.memories[1].data
	require.Equal(t, contents, grown[:16])
	require.Equal(t, make([]byte, 300-16), grown[16:300])
	// Only the live size is cleared
	require.Equal(t, byte(0xAA), grown[300])

	require.True(t, fake.buffers[0].destroyed)
	require.True(t, fake.memories[0].unmapped)
	require.True(t, fake.memories[0].freed)
	require.False(t, fake.buffers[1].destroyed)

	require.NoError(t, buffer.Write(290, []byte{9, 9}))
	require.Equal(t, []byte{9, 9}, grown[290:292])

	require.NoError(t, buffer.Destroy())
	require.True(t, fake.buffers[1].destroyed)
	require.True(t, fake.memories[1].freed)
	require.ErrorIs(t, buffer.Write(0, []byte{1}), backend.ErrDestroyed)
}

func TestBufferBindFailureReleasesEverything(t *testing.T) {
	fake := &fakeDevice{bindErr: errFake}
	device := fakeBackend(fake, nil)

	_, err := device.NewBuffer(backend.BufferUsageIndex, 64)
	require.ErrorIs(t, err, errFake)

	require.Len(t, fake.buffers, 1)
	require.Len(t, fake.memories, 1)
	require.True(t, fake.buffers[0].destroyed)
	require.True(t, fake.memories[0].freed)
	require.False(t, fake.memories[0].mapped)
}

func TestBufferMapFailureReleasesEverything(t *testing.T) {
	fake := &fakeDevice{mapErr: errFake}
	device := fakeBackend(fake, nil)

	_, err := device.NewBuffer(backend.BufferUsageUniform, 64)
	require.ErrorIs(t, err, errFake)

	require.True(t, fake.buffers[0].destroyed)
	require.True(t, fake.memories[0].freed)
}

func TestBufferGrowFailureKeepsOldAllocation(t *testing.T) {
	fake := &fakeDevice{}
	device := fakeBackend(fake, nil)

	created, err := device.NewBuffer(backend.BufferUsageVertex, 16)
	require.NoError(t, err)
	buffer := created.(*Buffer)
	require.NoError(t, buffer.Write(0, []byte{1, 2, 3, 4}))

	fake.bindErr = errFake
	require.ErrorIs(t, buffer.Resize(1024), errFake)

	require.Equal(t, 16, buffer.Size())
	require.Same(t, fake.buffers[0], buffer.Handle())
	require.False(t, fake.buffers[0].destroyed)
	require.False(t, fake.memories[0].freed)
	require.True(t, fake.buffers[1].destroyed)
	require.True(t, fake.memories[1].freed)
	require.Equal(t, []byte{1, 2, 3, 4}, fake.memories[0].data[:4])

	require.NoError(t, buffer.Destroy())
}

func TestFenceSignaled(t *testing.T) {
	var logs bytes.Buffer
	fake := &fakeDevice{}
	device := fakeBackend(fake, slog.New(slog.NewJSONHandler(&logs, nil)))

	created, err := device.NewFence()
	require.NoError(t, err)
	fence := created.(*Fence)
	require.Same(t, fake.fences[0], fence.Handle())

	require.False(t, fence.Signaled())

	fake.fences[0].status = core1_0.VKSuccess
	require.True(t, fence.Signaled())

	fake.fences[0].status = core1_0.VKErrorUnknown
	fake.fences[0].statusErr = errFake
	require.False(t, fence.Signaled())
	require.True(t, strings.Contains(logs.String(), "failed to poll fence status"))

	fence.Release()
	require.True(t, fake.fences[0].destroyed)
	require.True(t, fence.Signaled())
	require.Panics(t, fence.Release)
}
