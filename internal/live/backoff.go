package live

import "time"

// Backoff is the reconnection schedule: Initial doubled per attempt, capped
// at Max, then spread by ±Jitter.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 30 * time.Second, Jitter: 0.2}
}

// Delay returns the wait before reconnect attempt n (0-based). r is a
// uniform sample in [0,1).
func (b Backoff) Delay(n int, r float64) time.Duration {
	d := b.Initial
	for i := 0; i < n && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + b.Jitter*(2*r-1)))
	}
	return d
}
