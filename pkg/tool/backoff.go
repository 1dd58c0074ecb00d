package tool

import "time"

// Backoff is the exponential retry delay policy of one invoker.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Max caps the grown delay.
	Max time.Duration
	// Jitter is the fraction of the delay randomised in both directions,
	// in [0, 1]. It keeps simultaneous retries from herding.
	Jitter float64
}

const maxShift = 32

// Delay computes the delay before retry number attempt (zero-based).
// roll must be a uniform value in [0, 1).
func (b Backoff) Delay(attempt int, roll float64) time.Duration {
	delay := b.Base
	if attempt > maxShift {
		attempt = maxShift
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max

			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	if b.Jitter > 0 {
		span := time.Duration(float64(delay) * b.Jitter)
		delay = delay - span + time.Duration(2*float64(span)*roll)
	}
	if delay < 0 {
		delay = 0
	}

	return delay
}
