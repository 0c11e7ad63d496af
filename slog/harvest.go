package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/equinegpt/racecal"
)

var _ racecal.Harvester = (*LoggingHarvester)(nil)

// LoggingHarvester wraps a Harvester with logging.
type LoggingHarvester struct {
	next   racecal.Harvester
	logger *slog.Logger
}

// NewLoggingHarvester creates a new LoggingHarvester.
func NewLoggingHarvester(next racecal.Harvester, logger *slog.Logger) *LoggingHarvester {
	return &LoggingHarvester{next: next, logger: logger}
}

// Harvest delegates to the wrapped harvester and logs the meeting.
func (h *LoggingHarvester) Harvest(ctx context.Context, key racecal.MeetingKey, force bool) (records []*racecal.RaceRecord, err error) {
	defer func(begin time.Time) {
		h.logger.Info("harvest",
			"key", key.String(),
			"force", force,
			"races", len(records),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return h.next.Harvest(ctx, key, force)
}
