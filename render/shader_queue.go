package render

import (
	"context"
	"log/slog"
	"sync"
)

type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = iota
	ShaderStageFragment
	ShaderStageCompute
)

var shaderStageNames = map[ShaderStage]string{
	ShaderStageVertex:   "Vertex",
	ShaderStageFragment: "Fragment",
	ShaderStageCompute:  "Compute",
}

func (s ShaderStage) String() string {
	name, ok := shaderStageNames[s]
	if !ok {
		return "Unknown"
	}
	return name
}

// ShaderSource is a shader waiting to be compiled on the next tick
type ShaderSource struct {
	Name  string
	Stage ShaderStage
	Code  []byte
}

// ShaderCompiler turns queued shader sources into device programs. It is only called
// from Tick.
type ShaderCompiler interface {
	CompileShader(source ShaderSource) error
}

type shaderQueue struct {
	mutex   sync.Mutex
	pending []ShaderSource
}

func (q *shaderQueue) push(source ShaderSource) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.pending = append(q.pending, source)
}

func (q *shaderQueue) drain() []ShaderSource {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	pending := q.pending
	q.pending = nil
	return pending
}

func (q *shaderQueue) len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.pending)
}

// QueueShader schedules source to be compiled on the next tick. It may be called from
// any goroutine.
func (r *Renderer) QueueShader(source ShaderSource) {
	r.shaders.push(source)
}

// PendingShaders is the number of shaders waiting for the next tick
func (r *Renderer) PendingShaders() int {
	return r.shaders.len()
}

func (r *Renderer) compileShaders() {
	for _, source := range r.shaders.drain() {
		if r.compiler == nil {
			r.logger.LogAttrs(context.Background(), slog.LevelWarn, "no shader compiler configured, dropping shader",
				slog.String("shader", source.Name),
				slog.String("stage", source.Stage.String()),
			)
			continue
		}

		err := r.compiler.CompileShader(source)
		if err != nil {
			r.logger.LogAttrs(context.Background(), slog.LevelError, "failed to compile shader",
				slog.String("shader", source.Name),
				slog.String("stage", source.Stage.String()),
				slog.Any("error", err),
			)
		}
	}
}
