package render

import (
	"bytes"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/vkngwrapper/rendercore/multibuffer"
)

// ArenaConfig sizes one of the renderer's geometry arenas
type ArenaConfig struct {
	// InitialSize is the size in bytes of the arena's backing store at startup
	InitialSize int `toml:"initial_size"`
	// Growable lets the arena grow its backing store when no free range fits an allocation.
	// A fixed arena reports ErrArenaExhausted instead.
	Growable bool `toml:"growable"`
}

// Config holds the renderer's settings. It can be loaded from TOML; fields that are left
// out keep their DefaultConfig values.
type Config struct {
	// FramesInFlight is the number of per-frame uniform buffers the renderer rotates between
	FramesInFlight int `toml:"frames_in_flight"`
	// CycleSlots is the number of backend copies each cycle buffer keeps
	CycleSlots int `toml:"cycle_slots"`
	// StallWarnTicks is how many ticks a cycle buffer slot may wait on a fence before a
	// warning is logged. 0 disables the warning.
	StallWarnTicks int `toml:"stall_warn_ticks"`
	// MaxIterationRate caps how many times per second pipelines created with NewPipeline
	// may play. 0 means no cap.
	MaxIterationRate float64 `toml:"max_iteration_rate"`

	VertexArena ArenaConfig `toml:"vertex_arena"`
	IndexArena  ArenaConfig `toml:"index_arena"`

	// ExternallySynchronized sets RendererCreateExternallySynchronized
	ExternallySynchronized bool `toml:"externally_synchronized"`

	Flags CreateFlags `toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight: 2,
		CycleSlots:     2,
		StallWarnTicks: multibuffer.DefaultStallWarnTicks,
		VertexArena: ArenaConfig{
			InitialSize: 1 << 20,
			Growable:    true,
		},
		IndexArena: ArenaConfig{
			InitialSize: 1 << 18,
			Growable:    true,
		},
	}
}

// ParseConfig reads TOML on top of DefaultConfig. Unknown keys are an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(&cfg)
	if err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return Config{}, errors.Newf("unknown renderer config keys:\n%s", strictErr.String())
		}
		return Config{}, errors.Wrap(err, "parse renderer config")
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and parses a TOML config file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read renderer config %s", path)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load renderer config %s", path)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.FramesInFlight < 1 || c.FramesInFlight > multibuffer.MaxSlots {
		return errors.Newf("frames_in_flight must be between 1 and %d, got %d", multibuffer.MaxSlots, c.FramesInFlight)
	}
	if c.CycleSlots < 1 || c.CycleSlots > multibuffer.MaxSlots {
		return errors.Newf("cycle_slots must be between 1 and %d, got %d", multibuffer.MaxSlots, c.CycleSlots)
	}
	if c.StallWarnTicks < 0 {
		return errors.Newf("stall_warn_ticks cannot be negative: %d", c.StallWarnTicks)
	}
	if c.MaxIterationRate < 0 {
		return errors.Newf("max_iteration_rate cannot be negative: %f", c.MaxIterationRate)
	}
	if c.VertexArena.InitialSize < 0 {
		return errors.Newf("vertex_arena.initial_size cannot be negative: %d", c.VertexArena.InitialSize)
	}
	if c.IndexArena.InitialSize < 0 {
		return errors.Newf("index_arena.initial_size cannot be negative: %d", c.IndexArena.InitialSize)
	}

	return nil
}

func (c Config) createFlags() CreateFlags {
	flags := c.Flags
	if c.ExternallySynchronized {
		flags |= RendererCreateExternallySynchronized
	}
	return flags
}
