package handle

import "log/slog"

type config[T any] struct {
	logger    *slog.Logger
	name      string
	onDestroy func(Handle, *T)

	externallySynchronized bool
}

// Option configures a Registry at construction
type Option[T any] func(*config[T])

// WithLogger sets the logger used for debug output and leak reports
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(c *config[T]) {
		c.logger = logger
	}
}

// WithName labels the registry in logs and stats output
func WithName[T any](name string) Option[T] {
	return func(c *config[T]) {
		c.name = name
	}
}

// OnDestroy registers a destructor that runs whenever a live slot is destroyed, before
// its value is cleared. It runs with the registry's write lock held and must not call
// back into the registry.
func OnDestroy[T any](destructor func(h Handle, value *T)) Option[T] {
	return func(c *config[T]) {
		c.onDestroy = destructor
	}
}

// WithExternalSync removes the registry's lock. Every call must then come from one
// goroutine at a time.
func WithExternalSync[T any]() Option[T] {
	return func(c *config[T]) {
		c.externallySynchronized = true
	}
}
