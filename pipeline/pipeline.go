package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by operations on a closed pipeline
var ErrClosed = errors.New("pipeline is closed")

type State uint8

const (
	// StateIdle means no recording is running and the last sequence can be played
	StateIdle State = iota
	// StateRecording means a background goroutine is rebuilding the sequence
	StateRecording
)

var stateMapping = map[State]string{
	StateIdle:      "Idle",
	StateRecording: "Recording",
}

func (s State) String() string {
	return stateMapping[s]
}

// Pipeline moves between Idle and Recording. Record starts a recording goroutine and
// Play waits for it to finish before replaying, so a half-built sequence is never played.
type Pipeline struct {
	logger  *slog.Logger
	backend Backend

	stageMutex sync.Mutex
	stages     *Stages

	stateMutex sync.Mutex
	stateCond  *sync.Cond
	state      State
	playing    bool
	closed     bool
	task       *errgroup.Group

	limiter   *rate.Limiter
	lastPlay  time.Time
	deltaTime atomic.Int64
}

// New creates an idle pipeline over stages. The pipeline takes ownership of stages;
// change them afterward only through Update.
func New(logger *slog.Logger, backend Backend, stages *Stages, opts ...Option) (*Pipeline, error) {
	if backend == nil {
		return nil, errors.New("pipeline requires a backend")
	}
	if stages == nil {
		stages = NewStages()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxIterationRate < 0 {
		return nil, errors.Newf("max iteration rate cannot be negative: %f", cfg.maxIterationRate)
	}

	p := &Pipeline{
		logger:  logger,
		backend: backend,
		stages:  stages,
	}
	p.stateCond = sync.NewCond(&p.stateMutex)

	if cfg.maxIterationRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.maxIterationRate), 1)
	}

	return p, nil
}

func (p *Pipeline) State() State {
	p.stateMutex.Lock()
	defer p.stateMutex.Unlock()

	return p.state
}

// Record starts rebuilding the command sequence in the background. A recording that is
// still running is joined first, so two recordings of one pipeline never overlap.
func (p *Pipeline) Record() error {
	p.logger.Debug("Pipeline::Record")

	for {
		p.stateMutex.Lock()
		if p.closed {
			p.stateMutex.Unlock()
			return ErrClosed
		}

		// The previous task must be moved out and joined before a new one is stored
		previous := p.task
		p.task = nil

		if previous == nil {
			for p.playing || p.state != StateIdle {
				p.stateCond.Wait()
			}

			if !p.closed && p.task == nil {
				task := &errgroup.Group{}
				p.task = task
				p.state = StateRecording
				p.stateMutex.Unlock()

				task.Go(p.record)
				return nil
			}

			p.stateMutex.Unlock()
			continue
		}
		p.stateMutex.Unlock()

		err := previous.Wait()
		if err != nil {
			p.logger.LogAttrs(context.Background(), slog.LevelError, "previous pipeline recording failed", slog.Any("error", err))
		}
	}
}

func (p *Pipeline) record() (err error) {
	defer func() {
		p.stateMutex.Lock()
		p.state = StateIdle
		p.stateCond.Broadcast()
		p.stateMutex.Unlock()
	}()

	p.stageMutex.Lock()
	defer p.stageMutex.Unlock()

	err = p.backend.BeginSequence()
	if err != nil {
		return errors.Wrap(err, "begin sequence")
	}

	p.stages.Each(func(index int, name string, stage Stage) bool {
		translateErr := p.backend.TranslateStage(name, stage)
		if translateErr != nil {
			p.logger.Debug("skipping pipeline stage",
				slog.String("stage", name),
				slog.String("kind", stage.Kind().String()),
				slog.Any("error", translateErr),
			)
		}
		return true
	})

	err = p.backend.EndSequence()
	if err != nil {
		return errors.Wrap(err, "end sequence")
	}

	return nil
}

// WaitForRecording blocks until the pipeline is idle and returns the error from the
// most recent recording, if it has not already been reported.
func (p *Pipeline) WaitForRecording() error {
	p.stateMutex.Lock()
	for p.state != StateIdle {
		p.stateCond.Wait()
	}
	task := p.task
	p.task = nil
	p.stateMutex.Unlock()

	if task == nil {
		return nil
	}
	return task.Wait()
}

// Play waits for any recording to finish, plays the sequence, and updates DeltaTime.
// With a maximum iteration rate set, it then waits out the rest of the frame budget.
// ctx only bounds that wait.
func (p *Pipeline) Play(ctx context.Context) error {
	p.stateMutex.Lock()
	for p.state != StateIdle {
		p.stateCond.Wait()
	}
	if p.closed {
		p.stateMutex.Unlock()
		return ErrClosed
	}
	p.playing = true
	p.stateMutex.Unlock()

	err := p.backend.PlaySequence()

	p.stateMutex.Lock()
	p.playing = false
	p.stateCond.Broadcast()
	p.stateMutex.Unlock()

	now := time.Now()
	if !p.lastPlay.IsZero() {
		p.deltaTime.Store(int64(now.Sub(p.lastPlay)))
	}
	p.lastPlay = now

	if err != nil {
		return errors.Wrap(err, "play sequence")
	}

	if p.limiter != nil {
		err = p.limiter.Wait(ctx)
		if err != nil {
			return errors.Wrap(err, "wait for frame budget")
		}
	}

	return nil
}

// DeltaTime is the time between the two most recent calls to Play
func (p *Pipeline) DeltaTime() time.Duration {
	return time.Duration(p.deltaTime.Load())
}

// Update calls patch with the named stage. Recording holds the same lock, so a patch
// never lands halfway through a recording.
func (p *Pipeline) Update(name string, patch func(stage Stage)) error {
	p.stageMutex.Lock()
	defer p.stageMutex.Unlock()

	stage, ok := p.stages.Lookup(name)
	if !ok {
		return errors.Wrapf(ErrUnknownStage, "update stage %q", name)
	}

	patch(stage)
	return nil
}

// StageCount is the number of stages in the pipeline
func (p *Pipeline) StageCount() int {
	p.stageMutex.Lock()
	defer p.stageMutex.Unlock()

	return p.stages.Len()
}

// Close waits for any recording to finish and stops the pipeline from recording or
// playing again
func (p *Pipeline) Close() error {
	err := p.WaitForRecording()

	p.stateMutex.Lock()
	p.closed = true
	p.stateCond.Broadcast()
	p.stateMutex.Unlock()

	return err
}
