package mock

import (
	"context"

	"github.com/equinegpt/racecal"
)

var _ racecal.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of racecal.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, req *racecal.Request) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, req *racecal.Request) (string, error) {
	return f.FetchFn(ctx, req)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

var _ racecal.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of racecal.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
