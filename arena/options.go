package arena

type config struct {
	externallySynchronized bool
}

// Option configures an Arena at construction
type Option func(*config)

// WithExternalSync disables the arena's lock. The caller guarantees that the arena is
// never used from more than one goroutine at a time.
func WithExternalSync() Option {
	return func(c *config) {
		c.externallySynchronized = true
	}
}
