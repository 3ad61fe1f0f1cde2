package signal

import (
	"sync"
	"time"

	"github.com/hwos/streamrelay/internal/core"
)

// ChatRateLimiter caps how many chat messages one client may send per
// sliding interval. Over-limit messages are dropped, not queued.
type ChatRateLimiter struct {
	mu       sync.Mutex
	history  map[core.ClientID][]time.Time
	limit    int
	interval time.Duration
}

func NewChatRateLimiter(limit int, interval time.Duration) *ChatRateLimiter {
	return &ChatRateLimiter{
		history:  make(map[core.ClientID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *ChatRateLimiter) Allow(cid core.ClientID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[cid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[cid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[cid] = fresh
	return true
}

// Forget drops a client's history after disconnect.
func (rl *ChatRateLimiter) Forget(cid core.ClientID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, cid)
}
