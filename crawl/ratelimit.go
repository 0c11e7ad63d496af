package crawl

import (
	"context"
	"sync"

	"github.com/equinegpt/racecal"
	"golang.org/x/time/rate"
)

var _ racecal.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter spaces out requests per host with token buckets, so the
// listing walkers, probes and harvests sharing one Fetcher never hit the
// source faster than the configured rate between them.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// NewDomainLimiter creates a limiter allowing rps requests per second to
// each host, with no bursting. A non-positive rps disables limiting.
func NewDomainLimiter(rps float64) *DomainLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until the host's bucket has a token.
// Returns an error if the context is canceled before the wait completes.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	d.mu.Lock()
	limiter, ok := d.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(d.limit, 1)
		d.limiters[host] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}
