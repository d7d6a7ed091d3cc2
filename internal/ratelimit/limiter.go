package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between requests to the same host.
// Each host gets its own token bucket; hosts never block each other.
type Limiter struct {
	mu          sync.Mutex
	hosts       map[string]*rate.Limiter
	minInterval time.Duration
}

func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		hosts:       make(map[string]*rate.Limiter),
		minInterval: minInterval,
	}
}

func (l *Limiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.minInterval), 1)
		l.hosts[host] = lim
	}
	return lim
}

// Allow reports whether a request to host may proceed immediately.
func (l *Limiter) Allow(host string) bool {
	return l.hostLimiter(host).Allow()
}

// Wait blocks until a request to host is permitted.
func (l *Limiter) Wait(host string) {
	_ = l.hostLimiter(host).Wait(context.Background())
}

// WaitContext blocks until a request to host is permitted or ctx is done.
func (l *Limiter) WaitContext(ctx context.Context, host string) error {
	return l.hostLimiter(host).Wait(ctx)
}
