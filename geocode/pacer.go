// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces calls so that consecutive starts are at least interval apart.
// It remembers the start of the previous call explicitly; there is no token
// bucket and no burst. Waiters are served one at a time, so the gap holds
// across goroutines sharing the same Pacer.
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer returns a Pacer with the given minimum interval.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Interval returns the minimum gap between call starts.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until a call may start and records that start. The first call
// never waits. It returns ctx.Err() if the context ends while waiting, in
// which case no start is recorded.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !p.last.IsZero() {
		if d := p.last.Add(p.interval).Sub(p.now()); d > 0 {
			if err := p.sleep(ctx, d); err != nil {
				return err
			}
		}
	}

	p.last = p.now()

	return nil
}

// Last returns the start time of the most recent call, zero if none.
func (p *Pacer) Last() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
