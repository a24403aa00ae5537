package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Delay pauses between page actions so the storefront can finish rendering.
type Delay interface {
	Wait(ctx context.Context) error
}

// JitterDelay waits a random duration in [min, max] on every call.
// With min == max it is a fixed settle delay.
type JitterDelay struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	rnd      *rand.Rand
}

func NewJitterDelay(minDelay, maxDelay time.Duration) *JitterDelay {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitterDelay{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *JitterDelay) Wait(ctx context.Context) error {
	delay := d.next()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *JitterDelay) next() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.minDelay == d.maxDelay {
		return d.minDelay
	}

	delta := d.maxDelay - d.minDelay
	return d.minDelay + time.Duration(d.rnd.Int63n(int64(delta)))
}

// NoDelay never waits.
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context) error {
	return ctx.Err()
}
