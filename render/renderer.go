// Package render ties the rendercore building blocks into one renderer context: the
// staging update queue, geometry arenas, transform and mesh registries, per-frame
// uniforms, cycle buffers and the shader queue. Tick drives all of them once per frame.
package render

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/rendercore/arena"
	"github.com/vkngwrapper/rendercore/backend"
	"github.com/vkngwrapper/rendercore/handle"
	"github.com/vkngwrapper/rendercore/multibuffer"
	"github.com/vkngwrapper/rendercore/pipeline"
	"github.com/vkngwrapper/rendercore/staging"
)

var (
	ErrArenaExhausted = errors.New("arena exhausted")
	ErrDestroyed      = errors.New("renderer destroyed")
)

type Renderer struct {
	logger   *slog.Logger
	device   backend.Device
	config   Config
	flags    CreateFlags
	compiler ShaderCompiler

	queue    *staging.UpdateQueue
	vertices *arena.Arena
	indices  *arena.Arena

	transformMutex sync.Mutex
	transformStore *staging.Buffer
	transforms     *handle.Registry[Mat4]
	meshes         *handle.Registry[Mesh]

	cycleMutex sync.Mutex
	cycles     []*multibuffer.CycleBuffer

	shaders shaderQueue

	tickMutex sync.Mutex
	frames    *multibuffer.Chain[*staging.Buffer]
	ticks     uint64
	destroyed bool
}

// New builds a renderer over device. cfg is validated first; a zero Config is rejected,
// so start from DefaultConfig.
func New(logger *slog.Logger, device backend.Device, cfg Config, opts ...Option) (*Renderer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if device == nil {
		return nil, errors.New("renderer requires a device")
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	flags := cfg.createFlags()
	logger.Debug("Renderer::New",
		slog.String("flags", flags.String()),
		slog.Int("framesInFlight", cfg.FramesInFlight),
		slog.Int("cycleSlots", cfg.CycleSlots),
	)

	r := &Renderer{
		logger:   logger,
		device:   device,
		config:   cfg,
		flags:    flags,
		compiler: o.compiler,
		queue:    staging.NewUpdateQueue(logger, device),
	}

	var created []*staging.Buffer
	newBuffer := func(usage backend.BufferUsage) (*staging.Buffer, error) {
		buffer, err := r.queue.NewBuffer(usage, nil)
		if err != nil {
			return nil, err
		}
		created = append(created, buffer)
		return buffer, nil
	}

	err = r.build(newBuffer)
	if err != nil {
		for _, buffer := range created {
			_ = buffer.Destroy()
		}
		return nil, err
	}

	return r, nil
}

func (r *Renderer) build(newBuffer func(usage backend.BufferUsage) (*staging.Buffer, error)) error {
	var arenaOpts []arena.Option
	if r.flags&RendererCreateExternallySynchronized != 0 {
		arenaOpts = append(arenaOpts, arena.WithExternalSync())
	}

	vertexStore, err := newBuffer(backend.BufferUsageVertex)
	if err != nil {
		return errors.Wrap(err, "create vertex arena store")
	}
	r.vertices, err = arena.New(vertexStore, r.config.VertexArena.InitialSize, r.config.VertexArena.Growable, arenaOpts...)
	if err != nil {
		return errors.Wrap(err, "create vertex arena")
	}

	indexStore, err := newBuffer(backend.BufferUsageIndex)
	if err != nil {
		return errors.Wrap(err, "create index arena store")
	}
	r.indices, err = arena.New(indexStore, r.config.IndexArena.InitialSize, r.config.IndexArena.Growable, arenaOpts...)
	if err != nil {
		return errors.Wrap(err, "create index arena")
	}

	r.transformStore, err = newBuffer(backend.BufferUsageStorage)
	if err != nil {
		return errors.Wrap(err, "create transform buffer")
	}

	r.frames, err = multibuffer.NewChain(r.config.FramesInFlight, func(slot int) (*staging.Buffer, error) {
		return newBuffer(backend.BufferUsageUniform)
	})
	if err != nil {
		return errors.Wrap(err, "create frame uniforms")
	}

	r.transforms = handle.NewRegistry(
		handle.WithLogger[Mat4](r.logger),
		handle.WithName[Mat4]("transforms"),
		handle.OnDestroy(r.clearTransformSlot),
	)
	meshOpts := []handle.Option[Mesh]{
		handle.WithLogger[Mesh](r.logger),
		handle.WithName[Mesh]("meshes"),
		handle.OnDestroy(r.releaseMesh),
	}
	if r.flags&RendererCreateExternallySynchronized != 0 {
		meshOpts = append(meshOpts, handle.WithExternalSync[Mesh]())
	}
	r.meshes = handle.NewRegistry(meshOpts...)

	return nil
}

func (r *Renderer) Config() Config {
	return r.config
}

func (r *Renderer) Flags() CreateFlags {
	return r.flags
}

// Queue is the update queue every renderer-owned staging buffer flushes through
func (r *Renderer) Queue() *staging.UpdateQueue {
	return r.queue
}

// Tick runs one frame of upkeep: it flushes every pending staging update, publishes the
// frame uniforms written since the last tick, rotates every cycle buffer and compiles
// queued shaders. A device failure during the flush or the rotation cannot be recovered
// from and panics.
func (r *Renderer) Tick() error {
	r.tickMutex.Lock()
	defer r.tickMutex.Unlock()

	if r.destroyed {
		return ErrDestroyed
	}

	err := r.queue.Flush()
	if err != nil {
		r.fatal("failed to flush staging buffers", err)
	}

	r.frames.EndWrite()

	for _, cycle := range r.cycleBuffers() {
		err = cycle.Tick()
		if err != nil {
			r.fatal("failed to tick cycle buffer", err)
		}
	}

	r.compileShaders()

	r.ticks++
	return nil
}

// Ticks is the number of completed ticks
func (r *Renderer) Ticks() uint64 {
	r.tickMutex.Lock()
	defer r.tickMutex.Unlock()

	return r.ticks
}

func (r *Renderer) fatal(msg string, err error) {
	r.logger.LogAttrs(context.Background(), slog.LevelError, msg, slog.Any("error", err))
	panic(errors.Wrap(err, msg))
}

// SetFrameUniforms replaces the uniform data for the frame being authored. It is handed
// to the GPU on the next tick.
func (r *Renderer) SetFrameUniforms(data []byte) error {
	r.tickMutex.Lock()
	defer r.tickMutex.Unlock()

	if r.destroyed {
		return ErrDestroyed
	}

	return r.frames.CurrentCPU().Set(data)
}

// FrameUniforms is the uniform buffer published by the most recent tick
func (r *Renderer) FrameUniforms() backend.Buffer {
	r.tickMutex.Lock()
	defer r.tickMutex.Unlock()

	return r.frames.CurrentGPU().Backend()
}

// NewCycleBuffer creates a cycle buffer with the configured slot count and registers it
// to be rotated on every tick. opts are applied after the renderer's own settings.
func (r *Renderer) NewCycleBuffer(usage backend.BufferUsage, data []byte, opts ...multibuffer.CycleOption) (*multibuffer.CycleBuffer, error) {
	allOpts := []multibuffer.CycleOption{
		multibuffer.WithLogger(r.logger),
		multibuffer.WithStallWarnTicks(r.config.StallWarnTicks),
	}
	allOpts = append(allOpts, opts...)

	cycle, err := multibuffer.NewCycleBuffer(r.device, usage, r.config.CycleSlots, data, allOpts...)
	if err != nil {
		return nil, err
	}

	r.cycleMutex.Lock()
	defer r.cycleMutex.Unlock()

	r.cycles = append(r.cycles, cycle)
	return cycle, nil
}

// DestroyCycleBuffer stops ticking cycle and destroys it
func (r *Renderer) DestroyCycleBuffer(cycle *multibuffer.CycleBuffer) error {
	r.cycleMutex.Lock()
	found := false
	for i, registered := range r.cycles {
		if registered == cycle {
			r.cycles = append(r.cycles[:i], r.cycles[i+1:]...)
			found = true
			break
		}
	}
	r.cycleMutex.Unlock()

	if !found {
		return errors.New("cycle buffer is not owned by this renderer")
	}

	return cycle.Destroy()
}

func (r *Renderer) cycleBuffers() []*multibuffer.CycleBuffer {
	r.cycleMutex.Lock()
	defer r.cycleMutex.Unlock()

	cycles := make([]*multibuffer.CycleBuffer, len(r.cycles))
	copy(cycles, r.cycles)
	return cycles
}

// NewPipeline creates a pipeline over stages, capped at the configured iteration rate.
// Options passed here are applied afterward and may override the rate.
func (r *Renderer) NewPipeline(sequencer pipeline.Backend, stages *pipeline.Stages, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	allOpts := make([]pipeline.Option, 0, len(opts)+1)
	allOpts = append(allOpts, pipeline.WithMaxIterationRate(r.config.MaxIterationRate))
	allOpts = append(allOpts, opts...)

	return pipeline.New(r.logger, sequencer, stages, allOpts...)
}

// Destroy releases everything the renderer owns. Transforms and meshes that are still
// live are logged as unreleased before they are freed.
func (r *Renderer) Destroy() error {
	r.tickMutex.Lock()
	defer r.tickMutex.Unlock()

	if r.destroyed {
		return ErrDestroyed
	}
	r.destroyed = true

	r.logger.Debug("Renderer::Destroy")

	// The slots are about to go away with their store, so leaked transforms are not zeroed
	r.transformMutex.Lock()
	err := r.transformStore.Destroy()
	r.transforms.Clear()
	r.transformMutex.Unlock()
	r.meshes.Clear()

	for _, cycle := range r.cycleBuffers() {
		err = errors.CombineErrors(err, cycle.Destroy())
	}
	r.cycleMutex.Lock()
	r.cycles = nil
	r.cycleMutex.Unlock()

	r.frames.Each(func(slot int, buffer *staging.Buffer) {
		err = errors.CombineErrors(err, buffer.Destroy())
	})
	err = errors.CombineErrors(err, r.vertices.Store().Destroy())
	err = errors.CombineErrors(err, r.indices.Store().Destroy())

	// Anything left belongs to the caller and is logged by the queue
	err = errors.CombineErrors(err, r.queue.Destroy())

	dropped := r.shaders.drain()
	if len(dropped) > 0 {
		r.logger.LogAttrs(context.Background(), slog.LevelWarn, "dropping uncompiled shaders",
			slog.Int("count", len(dropped)),
		)
	}

	return err
}
