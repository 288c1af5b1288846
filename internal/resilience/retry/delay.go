package retry

import (
	"math"
	"math/rand"
	"time"
)

// Rand supplies the random draws used for jitter. *math/rand.Rand satisfies
// it; tests inject a fixed source for reproducible delays.
type Rand interface {
	Float64() float64
}

// globalRand delegates to the package-level math/rand source, which is safe
// for concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 {
	// #nosec G404 -- Cryptographic randomness is not required for backoff
	// jitter.
	return rand.Float64()
}

// DefaultRand returns the process-wide jitter source.
func DefaultRand() Rand {
	return globalRand{}
}

// Delay computes the wait before the next attempt. attempt is 1-based and
// names the attempt that just failed, so the wait before attempt 2 is
// Delay(1, ...). The raw strategy delay gets a uniform jitter offset in
// [-jitterFraction*delay, +jitterFraction*delay], then the result is
// clamped to [0, MaxDelay].
func Delay(attempt int, p Policy, rng Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	raw := rawDelay(attempt, p)

	if f := p.JitterFraction; f > 0 && rng != nil {
		if f > 1.0 {
			f = 1.0
		}
		offset := (rng.Float64()*2 - 1) * float64(raw) * f
		raw = time.Duration(float64(raw) + offset)
	}

	if raw < 0 {
		raw = 0
	}
	if p.MaxDelay > 0 && raw > p.MaxDelay {
		raw = p.MaxDelay
	}
	return raw
}

// rawDelay applies the growth strategy without jitter or clamping.
func rawDelay(attempt int, p Policy) time.Duration {
	switch p.Strategy {
	case StrategyLinear:
		return boundedScale(float64(p.BaseDelay) * float64(attempt))
	case StrategyFixed:
		return p.BaseDelay
	default:
		mult := p.Multiplier
		if mult <= 0 {
			mult = 2.0
		}
		return boundedScale(float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1)))
	}
}

// boundedScale converts a float delay to a Duration, leaving headroom so a
// +100% jitter offset cannot overflow int64.
func boundedScale(f float64) time.Duration {
	limit := float64(math.MaxInt64) / 2
	if f > limit {
		f = limit
	}
	if f < 0 {
		f = 0
	}
	return time.Duration(f)
}
