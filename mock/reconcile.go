package mock

import (
	"context"
	"time"

	"github.com/equinegpt/racecal"
)

var _ racecal.ProviderClient = (*ProviderClient)(nil)

// ProviderClient is a mock implementation of racecal.ProviderClient.
type ProviderClient struct {
	MeetingsFn func(ctx context.Context, date time.Time) ([]racecal.ProviderMeeting, error)
}

func (p *ProviderClient) Meetings(ctx context.Context, date time.Time) ([]racecal.ProviderMeeting, error) {
	return p.MeetingsFn(ctx, date)
}

var _ racecal.Reconciler = (*Reconciler)(nil)

// Reconciler is a mock implementation of racecal.Reconciler.
type Reconciler struct {
	ReconcileFn func(ctx context.Context, date time.Time, venues []racecal.VenueRef) (*racecal.Reconciliation, error)
}

func (r *Reconciler) Reconcile(ctx context.Context, date time.Time, venues []racecal.VenueRef) (*racecal.Reconciliation, error) {
	return r.ReconcileFn(ctx, date, venues)
}
