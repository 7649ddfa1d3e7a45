package v2495

import (
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"
)

// Config holds the session configuration.
type Config struct {
	Logger *zap.Logger
	Clock  clock.Clock

	// WaitTimeout bounds a single controller or flash wait.
	WaitTimeout time.Duration

	// MaxPolls bounds the number of status reads of a single wait.
	// Zero means no iteration cap.
	MaxPolls int

	// PollInterval and MaxPollInterval bound the delay between two status
	// reads. The delay doubles from PollInterval up to MaxPollInterval. A
	// zero PollInterval polls back to back.
	PollInterval    time.Duration
	MaxPollInterval time.Duration

	Progress ProgressFunc
	Metrics  *Metrics

	// Profile overrides the built-in profile of the controller.
	Profile *Profile
}

// The default bounds leave headroom over the slowest cycle of the fitted
// flash.
func defaultConfig() Config {
	pollMin, pollMax := n25q256.pollRange()
	return Config{
		Logger:          zap.NewNop(),
		Clock:           clock.New(),
		WaitTimeout:     3 * n25q256.longestWait(),
		MaxPolls:        0,
		PollInterval:    pollMin,
		MaxPollInterval: pollMax,
	}
}

// Option configures a Device.
type Option func(*Config)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l == nil {
			l = zap.NewNop()
		}
		c.Logger = l
	}
}

// WithClock sets the clock used to measure wait timeouts.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// WithWaitTimeout bounds every busy wait by d.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.WaitTimeout = d
		}
	}
}

// WithMaxPolls caps the number of status reads of every busy wait.
func WithMaxPolls(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxPolls = n
		}
	}
}

// WithPollInterval sets the delay between status reads. The delay starts at
// min and doubles up to max.
func WithPollInterval(min, max time.Duration) Option {
	return func(c *Config) {
		if max < min {
			max = min
		}
		c.PollInterval = min
		c.MaxPollInterval = max
	}
}

// WithProgress sets a callback receiving orchestrator progress.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithMetrics records operation counters in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithProfile replaces the built-in flash profile of the controller.
func WithProfile(p Profile) Option {
	return func(c *Config) {
		c.Profile = &p
	}
}
