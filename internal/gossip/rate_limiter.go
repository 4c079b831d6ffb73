package gossip

import (
	"sync"
	"time"

	"github.com/hearthchat/hearth/internal/domain"
)

// replyLimiter caps how often we answer profile requests per room scope
// inside a sliding window. Gossip is fire-and-forget and co-members
// re-announce periodically, so an aggressive or looping requester gets the
// profile eventually without us amplifying the flood.
type replyLimiter struct {
	mu       sync.Mutex
	history  map[domain.SigningKey][]time.Time
	limit    int
	interval time.Duration
}

func newReplyLimiter(limit int, interval time.Duration) *replyLimiter {
	return &replyLimiter{
		history:  make(map[domain.SigningKey][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *replyLimiter) Allow(key domain.SigningKey) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[key]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[key] = fresh
	return true
}
