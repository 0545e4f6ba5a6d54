package main

import (
	"math/rand/v2"
	"time"
)

const jitterWindow = 250 * time.Millisecond

// pacer decides how long the loop idles between batches. Idle polls use the
// base interval; consecutive batch failures double the wait up to max.
type pacer struct {
	base, max time.Duration
	current   time.Duration
}

func newPacer(base, max time.Duration) *pacer {
	return &pacer{base: base, max: max, current: base}
}

// idle is the wait after an empty batch. It also ends a failure streak.
func (p *pacer) idle() time.Duration {
	p.current = p.base
	return jitter(p.base)
}

// failed is the wait after a batch error.
func (p *pacer) failed() time.Duration {
	p.current = min(max(p.current, p.base)*2, p.max)
	return jitter(p.current)
}

func (p *pacer) reset() {
	p.current = p.base
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
