package engine

import "github.com/spektr-org/incidents/logging"

// ============================================================================
// ENGINE OPTIONS — Functional options for Execute()
// ============================================================================

// DefaultMeasure is the per-row measure every incident carries (always 1).
const DefaultMeasure = "incidents"

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	DefaultMeasure string // default measure key if QuerySpec.Measure is empty
	Logger         *logging.Logger
}

// WithDefaultMeasure sets the measure to aggregate when QuerySpec.Measure is empty.
func WithDefaultMeasure(measure string) Option {
	return func(c *config) {
		c.DefaultMeasure = measure
	}
}

// WithLogger routes execution progress to l.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		c.Logger = l
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []Option) *config {
	cfg := &config{
		DefaultMeasure: DefaultMeasure,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	return cfg
}
