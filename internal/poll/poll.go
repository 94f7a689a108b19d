// Package poll provides a bounded wait-until primitive for asynchronous
// readiness checks such as page rendering and remote task completion.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt ran without the probe reporting done.
var ErrExhausted = errors.New("poll attempts exhausted")

// Policy bounds a polling loop to Attempts probes spaced by Interval. A
// Multiplier above 1 grows the interval geometrically up to MaxInterval.
type Policy struct {
	Attempts    int
	Interval    time.Duration
	Multiplier  float64
	MaxInterval time.Duration
}

// Fixed returns a policy with a constant interval.
func Fixed(attempts int, interval time.Duration) Policy {
	return Policy{Attempts: attempts, Interval: interval, Multiplier: 1}
}

// Within derives a fixed policy that spends roughly timeout in total.
func Within(timeout, interval time.Duration) Policy {
	if interval <= 0 {
		return Fixed(1, 0)
	}
	attempts := int(timeout / interval)
	if attempts < 1 {
		attempts = 1
	}
	return Fixed(attempts, interval)
}

// Budget returns the worst-case time spent sleeping between attempts.
func (p Policy) Budget() time.Duration {
	var total time.Duration
	for i := 1; i < p.Attempts; i++ {
		total += p.delay(i)
	}
	return total
}

// delay returns the wait before attempt n (1-based, n >= 1).
func (p Policy) delay(n int) time.Duration {
	d := float64(p.Interval)
	if p.Multiplier > 1 {
		for i := 1; i < n; i++ {
			d *= p.Multiplier
		}
	}
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

// Until runs probe up to p.Attempts times. The probe reports done=true to stop
// polling with its value; a probe error aborts immediately. Until returns
// ErrExhausted when the attempts run out and the context error on cancellation.
func Until[T any](ctx context.Context, p Policy, probe func(ctx context.Context) (value T, done bool, err error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for n := 0; n < attempts; n++ {
		if n > 0 {
			timer := time.NewTimer(p.delay(n))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("poll canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}
		value, done, err := probe(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}
	}
	return zero, fmt.Errorf("%w after %d attempts", ErrExhausted, attempts)
}
