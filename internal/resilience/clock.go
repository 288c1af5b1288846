package resilience

import (
	"context"
	"time"
)

// Clock abstracts time so backoff waits and latency measurements are
// testable without real sleeps.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever comes first,
	// returning ctx.Err() when interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return ctx.Err()
	}
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return systemClock{} }
