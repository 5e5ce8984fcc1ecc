// Package retry schedules redelivery of push payloads the agent could not
// surface. Delays grow geometrically from FirstDelay, are capped at
// MaxDelay and carry symmetric jitter.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// MinDelay is the shortest redelivery delay ever handed to the broker.
const MinDelay = 100 * time.Millisecond

type Config struct {
	MaxDeliveries int
	FirstDelay    time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	Jitter        float64 // fraction of the delay, 0 disables
}

func DefaultConfig() Config {
	return Config{
		MaxDeliveries: 5,
		FirstDelay:    2 * time.Second,
		MaxDelay:      2 * time.Minute,
		Multiplier:    2.0,
		Jitter:        0.2,
	}
}

// Policy decides whether a failed push is delivered again and after how
// long.
type Policy struct {
	cfg Config
}

func NewPolicy(cfg Config) *Policy {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxDelay < cfg.FirstDelay {
		cfg.MaxDelay = cfg.FirstDelay
	}
	return &Policy{cfg: cfg}
}

// ShouldRetry reports whether a payload already delivered n times gets
// another delivery.
func (p *Policy) ShouldRetry(delivered int) bool {
	return delivered < p.cfg.MaxDeliveries
}

// NextDelay is the wait before redelivery after the given number of
// failed deliveries, counted from zero.
func (p *Policy) NextDelay(failed int) time.Duration {
	if failed < 0 {
		failed = 0
	}

	d := math.Min(float64(p.cfg.FirstDelay)*math.Pow(p.cfg.Multiplier, float64(failed)), float64(p.cfg.MaxDelay))
	if p.cfg.Jitter > 0 {
		d += d * p.cfg.Jitter * (2*rand.Float64() - 1)
	}
	return max(time.Duration(d), MinDelay)
}

func (p *Policy) MaxDeliveries() int {
	return p.cfg.MaxDeliveries
}
