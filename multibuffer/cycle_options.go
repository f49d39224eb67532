package multibuffer

import "log/slog"

// DefaultStallWarnTicks is how many ticks a slot may wait on an unsignalled fence
// before a warning is logged
const DefaultStallWarnTicks = 120

type cycleConfig struct {
	logger         *slog.Logger
	stallWarnTicks int
	name           string
}

// CycleOption configures a CycleBuffer at construction
type CycleOption func(*cycleConfig)

func WithLogger(logger *slog.Logger) CycleOption {
	return func(c *cycleConfig) {
		c.logger = logger
	}
}

// WithStallWarnTicks sets how many consecutive skipped ticks trigger a stall warning.
// Values below 1 disable the warning.
func WithStallWarnTicks(ticks int) CycleOption {
	return func(c *cycleConfig) {
		c.stallWarnTicks = ticks
	}
}

// WithName labels the cycle buffer in logs
func WithName(name string) CycleOption {
	return func(c *cycleConfig) {
		c.name = name
	}
}
