package mock

import (
	"context"
	"time"

	"github.com/equinegpt/racecal"
)

var _ racecal.RaceService = (*RaceService)(nil)

// RaceService is a mock implementation of racecal.RaceService.
type RaceService struct {
	UpsertRacesFn       func(ctx context.Context, races []*racecal.RaceRecord) (racecal.UpsertResult, error)
	ReplaceMeetingFn    func(ctx context.Context, key racecal.MeetingKey, races []*racecal.RaceRecord) (racecal.UpsertResult, error)
	FindRacesFn         func(ctx context.Context, filter racecal.RaceFilter) ([]*racecal.RaceRecord, error)
	FindMeetingsFn      func(ctx context.Context, date time.Time) ([]racecal.VenueRef, error)
	SetProviderIDFn     func(ctx context.Context, date time.Time, venue racecal.VenueRef, providerID string) (int, error)
	DeleteRacesBeforeFn func(ctx context.Context, date time.Time) (int, error)
	VenuesFn            func(ctx context.Context) (map[racecal.Region][]string, error)
}

func (s *RaceService) UpsertRaces(ctx context.Context, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	return s.UpsertRacesFn(ctx, races)
}

func (s *RaceService) ReplaceMeeting(ctx context.Context, key racecal.MeetingKey, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	return s.ReplaceMeetingFn(ctx, key, races)
}

func (s *RaceService) FindRaces(ctx context.Context, filter racecal.RaceFilter) ([]*racecal.RaceRecord, error) {
	return s.FindRacesFn(ctx, filter)
}

func (s *RaceService) FindMeetings(ctx context.Context, date time.Time) ([]racecal.VenueRef, error) {
	return s.FindMeetingsFn(ctx, date)
}

func (s *RaceService) SetProviderID(ctx context.Context, date time.Time, venue racecal.VenueRef, providerID string) (int, error) {
	return s.SetProviderIDFn(ctx, date, venue, providerID)
}

func (s *RaceService) DeleteRacesBefore(ctx context.Context, date time.Time) (int, error) {
	return s.DeleteRacesBeforeFn(ctx, date)
}

func (s *RaceService) Venues(ctx context.Context) (map[racecal.Region][]string, error) {
	return s.VenuesFn(ctx)
}
