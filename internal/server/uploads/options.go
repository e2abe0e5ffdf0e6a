package uploads

import (
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts = 3
	MaxAllowedAttempts = 5
)

// Options tune the coordinator. Zero fields take the defaults below. A
// negative MaxJitter disables jitter.
type Options struct {
	MaxAttempts     int
	CallTimeout     time.Duration
	Concurrency     int
	RetentionWindow time.Duration

	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	MaxJitter  time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:     DefaultMaxAttempts,
		CallTimeout:     30 * time.Second,
		Concurrency:     4,
		RetentionWindow: 24 * time.Hour,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2,
		MaxJitter:       time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts < 1 || o.MaxAttempts > MaxAllowedAttempts {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.RetentionWindow <= 0 {
		o.RetentionWindow = d.RetentionWindow
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.Multiplier < 1 {
		o.Multiplier = d.Multiplier
	}
	switch {
	case o.MaxJitter == 0:
		o.MaxJitter = d.MaxJitter
	case o.MaxJitter < 0:
		o.MaxJitter = 0
	}
	return o
}

// BackoffDelay is the deterministic part of the wait after a failed cycle:
// BaseDelay*Multiplier^(attempt-1), capped at MaxDelay.
func (o Options) BackoffDelay(attempt int) time.Duration {
	d := o.BaseDelay
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(d) * o.Multiplier)
		if next >= o.MaxDelay || next < d {
			return o.MaxDelay
		}
		d = next
	}
	return min(d, o.MaxDelay)
}

// uniformJitter draws from [0, limit).
func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}
