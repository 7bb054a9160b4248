package canbus

import (
	"sync"
	"time"
)

const (
	tokenBucketCapacity = 10
	tokenRefillInterval = 100 * time.Millisecond
)

// tokenBucket is the §4.8 publish rate limiter: capacity 10, refilling
// one token per 100 ms. Tokens accrue lazily from elapsed wall time
// rather than a background goroutine, so Allow is the only moving part.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	refill   time.Duration
	last     time.Time
}

func newTokenBucket() *tokenBucket {
	return &tokenBucket{
		tokens:   tokenBucketCapacity,
		capacity: tokenBucketCapacity,
		refill:   tokenRefillInterval,
		last:     time.Now(),
	}
}

// Allow consumes one token if available. §8 "across any window of
// duration T the number of admitted requests does not exceed
// capacity + T/refill_interval".
func (b *tokenBucket) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.last)
	if elapsed > 0 {
		b.tokens += float64(elapsed) / float64(b.refill)
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
