package render_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/rendercore/backend"
	mock_backend "github.com/vkngwrapper/rendercore/backend/mocks"
	"github.com/vkngwrapper/rendercore/backend/soft"
	"github.com/vkngwrapper/rendercore/handle"
	"github.com/vkngwrapper/rendercore/pipeline"
	"github.com/vkngwrapper/rendercore/render"
	"github.com/vkngwrapper/rendercore/staging"
	"go.uber.org/mock/gomock"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func smallConfig() render.Config {
	cfg := render.DefaultConfig()
	cfg.VertexArena = render.ArenaConfig{InitialSize: 256, Growable: true}
	cfg.IndexArena = render.ArenaConfig{InitialSize: 64, Growable: true}
	return cfg
}

func newRenderer(t *testing.T, cfg render.Config, opts ...render.Option) (*render.Renderer, *soft.Device) {
	device := soft.NewDevice()
	r, err := render.New(testLogger, device, cfg, opts...)
	require.NoError(t, err)
	return r, device
}

func softBytes(t *testing.T, buffer backend.Buffer) []byte {
	softBuffer, ok := buffer.(*soft.Buffer)
	require.True(t, ok)
	return softBuffer.Bytes()
}

func translation(x, y, z float32) render.Mat4 {
	m := render.Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

func TestTransformsLandInStorageBuffer(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	first := r.CreateTransform(translation(1, 2, 3))
	second := r.CreateTransform(translation(4, 5, 6))
	require.Equal(t, 0, render.TransformOffset(first))
	require.Equal(t, render.TransformSize, render.TransformOffset(second))
	require.NoError(t, r.Tick())

	data := softBytes(t, r.TransformBuffer())
	require.Len(t, data, 2*render.TransformSize)
	require.Equal(t, translation(1, 2, 3).Bytes(), data[:render.TransformSize])
	require.Equal(t, translation(4, 5, 6).Bytes(), data[render.TransformSize:])

	require.True(t, r.SetTransform(second, render.Identity()))
	value, ok := r.Transform(second)
	require.True(t, ok)
	require.Equal(t, render.Identity(), value)

	require.True(t, r.DestroyTransform(first))
	require.False(t, r.DestroyTransform(first))
	require.False(t, r.SetTransform(first, render.Identity()))
	_, ok = r.Transform(first)
	require.False(t, ok)
	require.NoError(t, r.Tick())

	data = softBytes(t, r.TransformBuffer())
	require.Equal(t, make([]byte, render.TransformSize), data[:render.TransformSize])
	require.Equal(t, render.Identity().Bytes(), data[render.TransformSize:])

	// The freed slot is reused under a new version
	third := r.CreateTransform(translation(7, 8, 9))
	require.Equal(t, first.Index(), third.Index())
	require.NotEqual(t, first, third)
	require.Equal(t, 2, r.TransformCount())
	require.True(t, r.DestroyTransform(second))
	require.True(t, r.DestroyTransform(third))
}

func TestMeshRoundTrip(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	vertices := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 3)
	indices := []byte{0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0}

	h, err := r.CreateMesh("triangle", vertices, indices, 8)
	require.NoError(t, err)

	mesh, ok := r.Mesh(h)
	require.True(t, ok)
	require.Equal(t, "triangle", mesh.Name)
	require.Equal(t, 3, mesh.VertexCount())
	require.Equal(t, 3, mesh.IndexCount())

	stored, err := r.VertexArena().Read(mesh.Vertices)
	require.NoError(t, err)
	require.Equal(t, vertices, stored)

	stored, err = r.IndexArena().Read(mesh.Indices)
	require.NoError(t, err)
	require.Equal(t, indices, stored)

	require.NoError(t, r.Tick())
	vertexStore := softBytes(t, r.VertexArena().Store().Backend())
	require.Equal(t, vertices, vertexStore[mesh.Vertices.StartIdx:mesh.Vertices.End()])

	require.Equal(t, 1, r.MeshCount())
	require.True(t, r.DestroyMesh(h))
	require.False(t, r.DestroyMesh(h))
	require.Equal(t, 0, r.VertexArena().AllocationCount())
	require.Equal(t, 0, r.IndexArena().AllocationCount())
	require.Equal(t, 1, r.VertexArena().FreeRegionsCount())
}

func TestMeshWithoutIndices(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	h, err := r.CreateMesh("points", make([]byte, 12), nil, 4)
	require.NoError(t, err)

	mesh, ok := r.Mesh(h)
	require.True(t, ok)
	require.True(t, mesh.Indices.IsNull())
	require.Equal(t, 0, mesh.IndexCount())
	require.True(t, r.DestroyMesh(h))
}

func TestMeshArenaExhausted(t *testing.T) {
	cfg := smallConfig()
	cfg.VertexArena = render.ArenaConfig{InitialSize: 32, Growable: false}
	cfg.IndexArena = render.ArenaConfig{InitialSize: 8, Growable: false}
	r, _ := newRenderer(t, cfg)
	defer func() { require.NoError(t, r.Destroy()) }()

	_, err := r.CreateMesh("big", make([]byte, 64), nil, 4)
	require.ErrorIs(t, err, render.ErrArenaExhausted)

	// The vertex range is handed back when the index arena cannot fit the indices
	_, err = r.CreateMesh("indexed", make([]byte, 16), make([]byte, 16), 4)
	require.ErrorIs(t, err, render.ErrArenaExhausted)
	require.Equal(t, 0, r.VertexArena().AllocationCount())
	require.Equal(t, 32, r.VertexArena().SumFreeSize())

	_, err = r.CreateMesh("fits", make([]byte, 32), make([]byte, 8), 4)
	require.NoError(t, err)
}

func TestMeshGrowsArena(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	h, err := r.CreateMesh("large", make([]byte, 1024), nil, 16)
	require.NoError(t, err)
	require.Equal(t, 1024, r.VertexArena().Size())
	require.True(t, r.DestroyMesh(h))
}

func TestMeshValidation(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	_, err := r.CreateMesh("no stride", make([]byte, 8), nil, 0)
	require.Error(t, err)
	_, err = r.CreateMesh("empty", nil, nil, 4)
	require.Error(t, err)
	_, err = r.CreateMesh("ragged", make([]byte, 10), nil, 4)
	require.Error(t, err)
	_, err = r.CreateMesh("ragged indices", make([]byte, 8), make([]byte, 6), 4)
	require.Error(t, err)

	require.Equal(t, 0, r.MeshCount())
	require.Equal(t, 0, r.VertexArena().AllocationCount())
}

type recordingCompiler struct {
	mutex    sync.Mutex
	compiled []string
}

func (c *recordingCompiler) CompileShader(source render.ShaderSource) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if strings.HasPrefix(source.Name, "broken") {
		return errors.Newf("syntax error in %s", source.Name)
	}
	c.compiled = append(c.compiled, source.Name)
	return nil
}

func TestTickCompilesQueuedShaders(t *testing.T) {
	var logs bytes.Buffer
	compiler := &recordingCompiler{}
	r, err := render.New(slog.New(slog.NewJSONHandler(&logs, nil)), soft.NewDevice(), smallConfig(), render.WithShaderCompiler(compiler))
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Destroy()) }()

	r.QueueShader(render.ShaderSource{Name: "mesh.vert", Stage: render.ShaderStageVertex})
	r.QueueShader(render.ShaderSource{Name: "broken.frag", Stage: render.ShaderStageFragment})
	r.QueueShader(render.ShaderSource{Name: "cull.comp", Stage: render.ShaderStageCompute})
	require.Equal(t, 3, r.PendingShaders())

	require.NoError(t, r.Tick())
	require.Equal(t, 0, r.PendingShaders())
	require.Equal(t, []string{"mesh.vert", "cull.comp"}, compiler.compiled)
	require.Contains(t, logs.String(), "failed to compile shader")
	require.Contains(t, logs.String(), "broken.frag")

	// Failed shaders are dropped, not retried
	require.NoError(t, r.Tick())
	require.Equal(t, []string{"mesh.vert", "cull.comp"}, compiler.compiled)
}

func TestTickWithoutCompilerDropsShaders(t *testing.T) {
	var logs bytes.Buffer
	r, err := render.New(slog.New(slog.NewJSONHandler(&logs, nil)), soft.NewDevice(), smallConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Destroy()) }()

	r.QueueShader(render.ShaderSource{Name: "orphan.vert"})
	require.NoError(t, r.Tick())
	require.Equal(t, 0, r.PendingShaders())
	require.Contains(t, logs.String(), "no shader compiler configured")
}

func TestFrameUniformsRotate(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	require.NoError(t, r.SetFrameUniforms([]byte{1, 1}))
	require.NoError(t, r.Tick())
	first := r.FrameUniforms()
	require.Equal(t, []byte{1, 1}, softBytes(t, first))

	require.NoError(t, r.SetFrameUniforms([]byte{2, 2, 2}))
	require.NoError(t, r.Tick())
	second := r.FrameUniforms()
	require.NotSame(t, first, second)
	require.Equal(t, []byte{2, 2, 2}, softBytes(t, second))

	// The GPU's copy from the previous frame is untouched
	require.Equal(t, []byte{1, 1}, softBytes(t, first))
	require.Equal(t, uint64(2), r.Ticks())
}

func TestCycleBuffersTickWithRenderer(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	cycle, err := r.NewCycleBuffer(backend.BufferUsageStorage, []byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, r.Config().CycleSlots, cycle.SlotCount())

	cycle.Set([]byte{3, 4})
	require.NoError(t, r.Tick())
	require.Equal(t, []byte{3, 4}, softBytes(t, cycle.Current()))

	require.NoError(t, r.DestroyCycleBuffer(cycle))
	require.Error(t, r.DestroyCycleBuffer(cycle))
	require.NoError(t, r.Tick())
}

func TestFlushFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mock_backend.NewMockDevice(ctrl)

	device.EXPECT().NewBuffer(gomock.Any(), gomock.Any()).DoAndReturn(func(usage backend.BufferUsage, size int) (backend.Buffer, error) {
		buffer := mock_backend.NewMockBuffer(ctrl)
		buffer.EXPECT().Size().Return(0).AnyTimes()
		buffer.EXPECT().Resize(gomock.Any()).Return(nil).AnyTimes()
		buffer.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("device lost")).AnyTimes()
		buffer.EXPECT().Destroy().Return(nil).AnyTimes()
		return buffer, nil
	}).AnyTimes()

	r, err := render.New(testLogger, device, smallConfig())
	require.NoError(t, err)

	require.Panics(t, func() {
		_ = r.Tick()
	})
}

func TestNewFailsWhenDeviceCannotCreateBuffers(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := mock_backend.NewMockDevice(ctrl)

	softDevice := soft.NewDevice()
	calls := 0
	device.EXPECT().NewBuffer(gomock.Any(), gomock.Any()).DoAndReturn(func(usage backend.BufferUsage, size int) (backend.Buffer, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("out of device memory")
		}
		return softDevice.NewBuffer(usage, size)
	}).Times(3)

	_, err := render.New(testLogger, device, smallConfig())
	require.ErrorIs(t, err, staging.ErrBackendCreation)
	require.Equal(t, 0, softDevice.LiveBuffers())
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := render.New(testLogger, soft.NewDevice(), render.Config{})
	require.Error(t, err)

	_, err = render.New(testLogger, nil, render.DefaultConfig())
	require.Error(t, err)
}

func TestExternallySynchronizedFlag(t *testing.T) {
	cfg := smallConfig()
	cfg.ExternallySynchronized = true
	r, _ := newRenderer(t, cfg)
	defer func() { require.NoError(t, r.Destroy()) }()

	require.Equal(t, render.RendererCreateExternallySynchronized, r.Flags())

	h, err := r.CreateMesh("single threaded", make([]byte, 16), nil, 4)
	require.NoError(t, err)
	require.True(t, r.DestroyMesh(h))
}

func TestDestroyReportsUnreleasedResources(t *testing.T) {
	var logs bytes.Buffer
	device := soft.NewDevice()
	r, err := render.New(slog.New(slog.NewJSONHandler(&logs, nil)), device, smallConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r.CreateTransform(translation(float32(i), 0, 0))
	}
	_, err = r.CreateMesh("leaked", make([]byte, 16), make([]byte, 4), 4)
	require.NoError(t, err)
	_, err = r.NewCycleBuffer(backend.BufferUsageUniform, []byte{1})
	require.NoError(t, err)
	require.NoError(t, r.Tick())

	require.NoError(t, r.Destroy())
	require.Equal(t, 4, strings.Count(logs.String(), "[UNRELEASED RESOURCE]"))
	require.Equal(t, 0, device.LiveBuffers())
	require.Equal(t, 0, r.Queue().Len())
	require.Equal(t, 0, r.TransformCount())

	require.ErrorIs(t, r.Destroy(), render.ErrDestroyed)
	require.ErrorIs(t, r.Tick(), render.ErrDestroyed)
	require.ErrorIs(t, r.SetFrameUniforms([]byte{1}), render.ErrDestroyed)
}

func TestBuildStatsString(t *testing.T) {
	r, _ := newRenderer(t, smallConfig())
	defer func() { require.NoError(t, r.Destroy()) }()

	h, err := r.CreateMesh("quad", make([]byte, 64), make([]byte, 24), 16)
	require.NoError(t, err)
	r.CreateTransform(render.Identity())

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.BuildStatsString(false)), &summary))
	require.Equal(t, float64(1), summary["Meshes"])
	require.Equal(t, float64(1), summary["Transforms"])
	require.NotContains(t, summary, "VertexArena")

	total := summary["Total"].(map[string]any)
	require.Equal(t, float64(2), total["Arenas"])
	require.Equal(t, float64(2), total["Allocations"])
	require.Equal(t, float64(88), total["AllocatedBytes"])
	require.Equal(t, float64(320), total["TotalBytes"])

	var detailed map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.BuildStatsString(true)), &detailed))
	require.Contains(t, detailed, "VertexArena")
	require.Contains(t, detailed, "IndexArena")
	require.Contains(t, detailed, "TransformRegistry")
	require.Contains(t, detailed, "StagingQueue")

	meshes := detailed["MeshRegistry"].(map[string]any)
	entries := meshes["Entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	require.Equal(t, "quad", entry["Name"])
	require.Equal(t, h.String(), entry["Handle"])
	require.Equal(t, float64(6), entry["Indices"])

	require.True(t, r.DestroyMesh(h))
}

func TestNewPipelineRecordsAndPlays(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxIterationRate = 1000
	r, _ := newRenderer(t, cfg)
	defer func() { require.NoError(t, r.Destroy()) }()

	mesh, err := r.CreateMesh("cube", make([]byte, 48), make([]byte, 12), 12)
	require.NoError(t, err)
	transform := r.CreateTransform(render.Identity())

	stages := pipeline.NewStages()
	require.NoError(t, stages.Add("clear", &pipeline.ClearStage{Target: "color", Depth: 1}))
	require.NoError(t, stages.Add("draw", &pipeline.MeshDrawStage{Mesh: mesh, Transform: transform, Camera: handle.Null, Instances: 1}))

	sequencer := soft.NewSequencer()
	p, err := r.NewPipeline(sequencer, stages)
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	require.NoError(t, p.Record())
	require.NoError(t, p.WaitForRecording())
	require.NoError(t, p.Play(context.Background()))
	require.Equal(t, [][]string{{"clear", "draw"}}, sequencer.Played())
}
