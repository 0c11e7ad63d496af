package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/equinegpt/racecal"
)

var _ racecal.Reconciler = (*LoggingReconciler)(nil)

// LoggingReconciler wraps a Reconciler and reports venues that did not
// resolve cleanly: ambiguous matches at WARN, unmatched venues at INFO.
type LoggingReconciler struct {
	next   racecal.Reconciler
	logger *slog.Logger
}

// NewLoggingReconciler creates a new LoggingReconciler.
func NewLoggingReconciler(next racecal.Reconciler, logger *slog.Logger) *LoggingReconciler {
	return &LoggingReconciler{next: next, logger: logger}
}

// Reconcile delegates to the wrapped reconciler.
func (r *LoggingReconciler) Reconcile(ctx context.Context, date time.Time, venues []racecal.VenueRef) (rec *racecal.Reconciliation, err error) {
	day := date.Format(time.DateOnly)
	defer func(begin time.Time) {
		attrs := []any{
			"date", day,
			"venues", len(venues),
			"duration", time.Since(begin),
			"err", err,
		}
		if rec != nil {
			attrs = append(attrs,
				"matched", len(rec.Matches),
				"unmatched", len(rec.Unmatched),
				"ambiguous", len(rec.Ambiguous),
			)
		}
		r.logger.Info("reconcile", attrs...)
	}(time.Now())

	rec, err = r.next.Reconcile(ctx, date, venues)
	if err != nil {
		return nil, err
	}

	for _, a := range rec.Ambiguous {
		names := make([]string, len(a.Candidates))
		for i, c := range a.Candidates {
			names[i] = c.RawName
		}
		r.logger.Warn("ambiguous venue match",
			"date", day,
			"region", string(a.Venue.Region),
			"venue", a.Venue.Venue,
			"candidates", names,
			"tier", a.Tier.String(),
			"score", a.Score,
		)
	}
	for _, v := range rec.Unmatched {
		r.logger.Info("unmatched venue",
			"date", day,
			"region", string(v.Region),
			"venue", v.Venue,
		)
	}
	return rec, nil
}
