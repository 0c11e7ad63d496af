package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/equinegpt/racecal"
	"golang.org/x/sync/errgroup"
)

// DateOutcome is the result of reconciling one date. Exactly one of
// Reconciliation and Err is set.
type DateOutcome struct {
	Reconciliation *racecal.Reconciliation
	Err            error
}

// ReconcileDates reconciles each date in venues with at most concurrency
// dates in flight. A failure on one date never affects another.
func ReconcileDates(ctx context.Context, r racecal.Reconciler, venues map[time.Time][]racecal.VenueRef, concurrency int) map[time.Time]DateOutcome {
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	out := make(map[time.Time]DateOutcome, len(venues))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for date, refs := range venues {
		g.Go(func() error {
			var o DateOutcome
			if err := ctx.Err(); err != nil {
				o.Err = err
			} else {
				o.Reconciliation, o.Err = r.Reconcile(ctx, date, refs)
			}
			mu.Lock()
			out[date] = o
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Apply stamps every match in rec onto stored races through races and
// returns the number of rows changed.
func Apply(ctx context.Context, races racecal.RaceService, rec *racecal.Reconciliation) (int, error) {
	changed := 0
	for _, m := range sortedMatches(rec) {
		n, err := races.SetProviderID(ctx, rec.Date, m.Venue, m.ProviderID)
		if err != nil {
			return changed, err
		}
		changed += n
	}
	return changed, nil
}

// sortedMatches returns the matches of rec ordered by region and venue.
func sortedMatches(rec *racecal.Reconciliation) []racecal.Match {
	refs := make([]racecal.VenueRef, 0, len(rec.Matches))
	byRef := make(map[racecal.VenueRef]racecal.Match, len(rec.Matches))
	for _, m := range rec.Matches {
		refs = append(refs, m.Venue)
		byRef[m.Venue] = m
	}
	refs = dedupe(refs)
	out := make([]racecal.Match, 0, len(refs))
	for _, ref := range refs {
		out = append(out, byRef[ref])
	}
	return out
}
