package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/equinegpt/racecal"
)

var _ racecal.ProviderClient = (*LoggingProviderClient)(nil)

// LoggingProviderClient wraps a ProviderClient with logging.
type LoggingProviderClient struct {
	next   racecal.ProviderClient
	logger *slog.Logger
}

// NewLoggingProviderClient creates a new LoggingProviderClient.
func NewLoggingProviderClient(next racecal.ProviderClient, logger *slog.Logger) *LoggingProviderClient {
	return &LoggingProviderClient{next: next, logger: logger}
}

// Meetings delegates to the wrapped client and logs the meeting count.
func (c *LoggingProviderClient) Meetings(ctx context.Context, date time.Time) (meetings []racecal.ProviderMeeting, err error) {
	defer func(begin time.Time) {
		c.logger.Info("provider meetings",
			"date", date.Format(time.DateOnly),
			"count", len(meetings),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return c.next.Meetings(ctx, date)
}
