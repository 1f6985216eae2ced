package proverrpc

import (
	"sync"

	"golang.org/x/time/rate"
)

// ClientLimiter keeps one token bucket per client ID.
type ClientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewClientLimiter allows each client perSecond requests per second on
// average, with bursts of up to burst requests.
func NewClientLimiter(perSecond float64, burst int) *ClientLimiter {
	return &ClientLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (cl *ClientLimiter) Allow(clientID string) bool {
	cl.mu.Lock()
	l, ok := cl.limiters[clientID]
	if !ok {
		l = rate.NewLimiter(cl.limit, cl.burst)
		cl.limiters[clientID] = l
	}
	cl.mu.Unlock()
	return l.Allow()
}

// Reset forgets a client's history.
func (cl *ClientLimiter) Reset(clientID string) {
	cl.mu.Lock()
	delete(cl.limiters, clientID)
	cl.mu.Unlock()
}
