package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/equinegpt/racecal"
)

var _ racecal.RaceService = (*LoggingRaceService)(nil)

// LoggingRaceService wraps a RaceService with logging of writes. Reads
// are delegated silently.
type LoggingRaceService struct {
	next   racecal.RaceService
	logger *slog.Logger
}

// NewLoggingRaceService creates a new LoggingRaceService.
func NewLoggingRaceService(next racecal.RaceService, logger *slog.Logger) *LoggingRaceService {
	return &LoggingRaceService{next: next, logger: logger}
}

func (s *LoggingRaceService) UpsertRaces(ctx context.Context, races []*racecal.RaceRecord) (res racecal.UpsertResult, err error) {
	defer func(begin time.Time) {
		s.logger.Info("upsert races",
			"races", len(races),
			"inserted", res.Inserted,
			"updated", res.Updated,
			"skipped", res.Skipped,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.UpsertRaces(ctx, races)
}

func (s *LoggingRaceService) ReplaceMeeting(ctx context.Context, key racecal.MeetingKey, races []*racecal.RaceRecord) (res racecal.UpsertResult, err error) {
	defer func(begin time.Time) {
		s.logger.Info("replace meeting",
			"key", key.String(),
			"races", len(races),
			"inserted", res.Inserted,
			"updated", res.Updated,
			"skipped", res.Skipped,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ReplaceMeeting(ctx, key, races)
}

func (s *LoggingRaceService) FindRaces(ctx context.Context, filter racecal.RaceFilter) ([]*racecal.RaceRecord, error) {
	return s.next.FindRaces(ctx, filter)
}

func (s *LoggingRaceService) FindMeetings(ctx context.Context, date time.Time) ([]racecal.VenueRef, error) {
	return s.next.FindMeetings(ctx, date)
}

func (s *LoggingRaceService) SetProviderID(ctx context.Context, date time.Time, venue racecal.VenueRef, providerID string) (n int, err error) {
	defer func(begin time.Time) {
		s.logger.Info("set provider id",
			"date", date.Format(time.DateOnly),
			"region", string(venue.Region),
			"venue", venue.Venue,
			"providerId", providerID,
			"changed", n,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SetProviderID(ctx, date, venue, providerID)
}

func (s *LoggingRaceService) DeleteRacesBefore(ctx context.Context, date time.Time) (n int, err error) {
	defer func(begin time.Time) {
		s.logger.Info("delete races",
			"before", date.Format(time.DateOnly),
			"deleted", n,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DeleteRacesBefore(ctx, date)
}

func (s *LoggingRaceService) Venues(ctx context.Context) (map[racecal.Region][]string, error) {
	return s.next.Venues(ctx)
}
