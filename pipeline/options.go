package pipeline

type config struct {
	maxIterationRate float64
}

// Option configures a Pipeline at construction
type Option func(*config)

// WithMaxIterationRate caps how many times per second Play may return. 0 means no cap.
func WithMaxIterationRate(hz float64) Option {
	return func(c *config) {
		c.maxIterationRate = hz
	}
}
