package watch

import (
	"math"
	"time"
)

// Backoff returns the delay before reconnect attempt k (1-based):
// base × 1.5^(k−1), capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(1.5, float64(attempt-1))
	if d > float64(max) || math.IsInf(d, 1) {
		return max
	}
	return time.Duration(d)
}
