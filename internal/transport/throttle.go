// Package transport holds chat transports and helpers shared by them.
package transport

import (
	"context"
	"sync"
	"time"

	"askbridge/internal/model"
)

// Throttled paces outbound sends through a token bucket shared by all
// channels. Sends wait for a token instead of failing.
type Throttled struct {
	model.Transport

	mu       sync.Mutex
	interval time.Duration
	burst    int
	tokens   float64
	lastTime time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Throttle wraps t so that at most burst sends go out back to back and the
// bucket refills one token per interval. A non-positive interval or burst
// disables pacing.
func Throttle(t model.Transport, interval time.Duration, burst int) model.Transport {
	if interval <= 0 || burst <= 0 {
		return t
	}
	return &Throttled{
		Transport: t,
		interval:  interval,
		burst:     burst,
		tokens:    float64(burst),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

func (t *Throttled) SendText(ctx context.Context, channel, text string, opts model.SendOptions) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.Transport.SendText(ctx, channel, text, opts)
}

func (t *Throttled) SendDocument(ctx context.Context, channel, path string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.Transport.SendDocument(ctx, channel, path)
}

func (t *Throttled) wait(ctx context.Context) error {
	for {
		delay := t.reserve()
		if delay <= 0 {
			return nil
		}
		if err := t.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// reserve takes a token if one is available and otherwise returns how long
// until the next one.
func (t *Throttled) reserve() time.Duration {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastTime.IsZero() {
		elapsed := now.Sub(t.lastTime)
		if elapsed > 0 {
			t.tokens += float64(elapsed) / float64(t.interval)
			if maxTokens := float64(t.burst); t.tokens > maxTokens {
				t.tokens = maxTokens
			}
		}
	}
	t.lastTime = now

	if t.tokens >= 1 {
		t.tokens--
		return 0
	}
	return time.Duration((1 - t.tokens) * float64(t.interval))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
