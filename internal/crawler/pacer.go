package crawler

import (
	"context"
	"math/rand/v2"
	"time"

	"trustmed/internal/config"
	"trustmed/pkg/utils"
)

// Pacer spaces out requests with a random delay between min and max.
type Pacer struct {
	sleep SleepFunc
	min   time.Duration
	max   time.Duration
}

// NewPacer builds a pacer from the configured delay policy.
func NewPacer(p config.DelayPolicy) *Pacer {
	lo := time.Duration(p.MinMs) * time.Millisecond
	hi := time.Duration(p.MaxMs) * time.Millisecond

	if hi < lo {
		hi = lo
	}

	return &Pacer{sleep: utils.SleepContext, min: lo, max: hi}
}

// WithSleep swaps the wait function; tests use it to avoid real sleeps.
func (p *Pacer) WithSleep(fn SleepFunc) *Pacer {
	p.sleep = fn
	return p
}

// Next returns the next random delay.
func (p *Pacer) Next() time.Duration {
	if p.max <= p.min {
		return p.min
	}

	return p.min + rand.N(p.max-p.min)
}

// Wait sleeps for a random delay.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.Next())
}

// WaitFor sleeps for a fixed delay.
func (p *Pacer) WaitFor(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}
