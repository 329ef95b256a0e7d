package docindex

import (
	"sync"
	"time"

	"github.com/fwojciec/cargomcp"
	"golang.org/x/time/rate"
)

// RefreshLimiter throttles forced refreshes per project using token buckets.
// Each project gets its own limiter with a burst of 1.
type RefreshLimiter struct {
	mu       sync.Mutex
	limiters map[cargomcp.ProjectRoot]*rate.Limiter
	every    time.Duration
}

// NewRefreshLimiter creates a limiter allowing one forced refresh per
// project every interval. A non-positive interval disables throttling.
func NewRefreshLimiter(every time.Duration) *RefreshLimiter {
	return &RefreshLimiter{
		limiters: make(map[cargomcp.ProjectRoot]*rate.Limiter),
		every:    every,
	}
}

// Allow reports whether a forced refresh of root may run now.
func (l *RefreshLimiter) Allow(root cargomcp.ProjectRoot) bool {
	if l.every <= 0 {
		return true
	}

	l.mu.Lock()
	limiter, ok := l.limiters[root]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.every), 1)
		l.limiters[root] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
