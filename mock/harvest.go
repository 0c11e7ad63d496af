package mock

import (
	"context"

	"github.com/equinegpt/racecal"
)

var _ racecal.Harvester = (*Harvester)(nil)

// Harvester is a mock implementation of racecal.Harvester.
type Harvester struct {
	HarvestFn func(ctx context.Context, key racecal.MeetingKey, force bool) ([]*racecal.RaceRecord, error)
}

func (h *Harvester) Harvest(ctx context.Context, key racecal.MeetingKey, force bool) ([]*racecal.RaceRecord, error) {
	return h.HarvestFn(ctx, key, force)
}

var _ racecal.TrackGrader = (*TrackGrader)(nil)

// TrackGrader is a mock implementation of racecal.TrackGrader.
type TrackGrader struct {
	GradeFn func(region racecal.Region, venue string) (string, bool)
}

func (g *TrackGrader) Grade(region racecal.Region, venue string) (string, bool) {
	return g.GradeFn(region, venue)
}

var _ racecal.TrackAliaser = (*TrackAliaser)(nil)

// TrackAliaser is a mock implementation of racecal.TrackAliaser.
type TrackAliaser struct {
	CanonicalTrackFn func(region racecal.Region, venue string) string
}

func (a *TrackAliaser) CanonicalTrack(region racecal.Region, venue string) string {
	return a.CanonicalTrackFn(region, venue)
}
