package sim

import (
	"fmt"
	"math"

	"github.com/airladon/timekeeper"
	"go.uber.org/zap"
)

// DefaultSampleInterval is the recorder resolution used when none is set.
const DefaultSampleInterval = 0.005

// MediumConfig describes one propagation medium.
type MediumConfig struct {
	// Name identifies the medium. Must be unique within a simulation.
	Name string

	// Velocity is the propagation speed in length units per second.
	Velocity float64

	// Length is the extent of the medium from the source.
	Length float64
}

// Config holds the configuration for a Simulation.
type Config struct {
	// Clock paces the simulation. If nil, a live clock on the system
	// wall clock is created.
	Clock *timekeeper.VirtualClock

	// SampleInterval is the recorder resolution in seconds.
	// Default: DefaultSampleInterval
	SampleInterval float64

	// Media lists the media driven by the shared source. At least one is required.
	Media []MediumConfig

	// Logger for structured logging.
	Logger *zap.Logger
}

// Option is a functional option for configuring a Simulation.
type Option func(*Config) error

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		SampleInterval: DefaultSampleInterval,
		Logger:         zap.NewNop(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Media) == 0 {
		return fmt.Errorf("%w: at least one medium is required", timekeeper.ErrConfig)
	}

	seen := make(map[string]bool, len(c.Media))
	for _, m := range c.Media {
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate medium %q", timekeeper.ErrConfig, m.Name)
		}
		seen[m.Name] = true

		if !positive(m.Velocity) {
			return fmt.Errorf("%w: medium %q velocity must be positive, got %v", timekeeper.ErrConfig, m.Name, m.Velocity)
		}
		if !positive(m.Length) {
			return fmt.Errorf("%w: medium %q length must be positive, got %v", timekeeper.ErrConfig, m.Name, m.Length)
		}
	}

	return nil
}

// WithClock shares an existing clock with the simulation.
func WithClock(clock *timekeeper.VirtualClock) Option {
	return func(c *Config) error {
		if clock == nil {
			return fmt.Errorf("%w: clock cannot be nil", timekeeper.ErrConfig)
		}
		c.Clock = clock
		return nil
	}
}

// WithSampleInterval sets the recorder resolution in seconds.
func WithSampleInterval(interval float64) Option {
	return func(c *Config) error {
		if !positive(interval) {
			return fmt.Errorf("%w: sample interval must be positive, got %v", timekeeper.ErrConfig, interval)
		}
		c.SampleInterval = interval
		return nil
	}
}

// WithMedium adds a propagation medium.
func WithMedium(name string, velocity, length float64) Option {
	return func(c *Config) error {
		c.Media = append(c.Media, MediumConfig{
			Name:     name,
			Velocity: velocity,
			Length:   length,
		})
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", timekeeper.ErrConfig)
		}
		c.Logger = logger
		return nil
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
