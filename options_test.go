package v2495

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()
	if c.WaitTimeout != 9*time.Second {
		t.Errorf("WaitTimeout = %v, want 9s", c.WaitTimeout)
	}
	if c.PollInterval != 10*time.Microsecond || c.MaxPollInterval != 500*time.Microsecond {
		t.Errorf("poll interval = %v..%v, want 10µs..500µs", c.PollInterval, c.MaxPollInterval)
	}
	if c.MaxPolls != 0 {
		t.Errorf("MaxPolls = %d, want no cap", c.MaxPolls)
	}
}

func TestOptions(t *testing.T) {
	c := defaultConfig()
	for _, opt := range []Option{
		WithWaitTimeout(0),
		WithMaxPolls(-1),
		WithPollInterval(time.Millisecond, time.Microsecond),
		WithLogger(nil),
	} {
		opt(&c)
	}
	if c.WaitTimeout != 9*time.Second {
		t.Errorf("WaitTimeout = %v after a zero timeout", c.WaitTimeout)
	}
	if c.MaxPolls != 0 {
		t.Errorf("MaxPolls = %d after a negative cap", c.MaxPolls)
	}
	if c.PollInterval != time.Millisecond || c.MaxPollInterval != time.Millisecond {
		t.Errorf("poll interval = %v..%v, want 1ms..1ms", c.PollInterval, c.MaxPollInterval)
	}
	if c.Logger == nil {
		t.Error("nil logger")
	}

	p := Profile{Name: "test", Sectors: 1, Bitstream: 1}
	WithProfile(p)(&c)
	p.Sectors = 2
	if c.Profile.Sectors != 1 {
		t.Error("WithProfile keeps a reference to the caller's profile")
	}
}
