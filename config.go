package timekeeper

import (
	"fmt"

	"github.com/airladon/timekeeper/timer"
	"go.uber.org/zap"
)

// Config holds the configuration for a VirtualClock.
type Config struct {
	// Source provides wall-clock time and schedules the wall timer that
	// drives live-mode timeouts. Swap in timer.Mock for deterministic tests.
	Source timer.Source

	// Speed is the initial rate of virtual time relative to wall time.
	// Default: 1
	Speed float64

	// Logger for structured logging.
	Logger *zap.Logger
}

// Option is a functional option for configuring a VirtualClock.
type Option func(*Config) error

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		Source: timer.NewReal(), // Default: system clock
		Speed:  1,
		Logger: zap.NewNop(), // Default: no-op logger
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// validate checks that all required configuration fields are set.
func (c *Config) validate() error {
	if c.Source == nil {
		return wrapConfig("timer source is required")
	}

	if c.Logger == nil {
		return wrapConfig("logger is required")
	}

	if !validSpeed(c.Speed) {
		return wrapConfigf("speed must be positive, got %v", c.Speed)
	}

	return nil
}

// WithTimerSource sets the wall-clock source.
func WithTimerSource(source timer.Source) Option {
	return func(c *Config) error {
		if source == nil {
			return wrapConfig("timer source cannot be nil")
		}
		c.Source = source
		return nil
	}
}

// WithSpeed sets the initial speed multiplier.
func WithSpeed(speed float64) Option {
	return func(c *Config) error {
		if !validSpeed(speed) {
			return wrapConfigf("speed must be positive, got %v", speed)
		}
		c.Speed = speed
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return wrapConfig("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

func validSpeed(speed float64) bool {
	return positiveFinite(speed)
}
