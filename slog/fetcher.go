// Package slog wraps racecal services with structured logging using the
// standard library's log/slog.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/equinegpt/racecal"
)

// Ensure LoggingFetcher implements racecal.Fetcher.
var _ racecal.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with debug logging.
type LoggingFetcher struct {
	next   racecal.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next racecal.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch logs the request and delegates to the wrapped fetcher.
func (f *LoggingFetcher) Fetch(ctx context.Context, req *racecal.Request) (body string, err error) {
	defer func(begin time.Time) {
		method := req.Method
		if method == "" {
			method = "GET"
		}
		f.logger.Debug("fetch",
			"method", method,
			"url", req.URL,
			"bytes", len(body),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.Fetch(ctx, req)
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}
