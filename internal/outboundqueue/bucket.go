package outboundqueue

import (
	"sync"
	"time"
)

// tokenBucket is the classical refill-by-elapsed-time limiter, grounded on
// felipyfgs-wazmeow's rate_limit middleware: a fixed capacity, refilling
// evenly over a window, one token consumed per send.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

func newTokenBucket(maxTokens int, window time.Duration) *tokenBucket {
	return &tokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: window / time.Duration(maxTokens),
		lastRefill: time.Now(),
	}
}

// Allow reports whether a send may proceed now, consuming a token if so.
func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	if add := int(elapsed / b.refillRate); add > 0 {
		b.tokens += add
		if b.tokens > b.maxTokens {
			b.tokens = b.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}
