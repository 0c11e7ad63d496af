package crawl

import (
	"context"
	"time"

	"github.com/equinegpt/racecal"
)

// HarvestFunc is the signature for harvesting one meeting.
type HarvestFunc func(ctx context.Context, key racecal.MeetingKey, force bool) ([]*racecal.RaceRecord, error)

// LogFunc is the signature for a logging function.
type LogFunc func(format string, args ...any)

// DefaultRetryDelays returns the per-meeting harvest retry delays: 2s, 5s.
// They apply on top of the fetcher's own retries, so they are few and
// long enough for a struggling upstream to recover.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{2 * time.Second, 5 * time.Second}
}

// HarvestWithRetryDelays harvests key, retrying failed attempts after each
// of delays in turn. Errors that another attempt cannot fix (not found,
// invalid or trial keys) are returned immediately.
func HarvestWithRetryDelays(ctx context.Context, key racecal.MeetingKey, force bool, harvest HarvestFunc, logger LogFunc, delays []time.Duration) ([]*racecal.RaceRecord, error) {
	maxAttempts := len(delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		records, err := harvest(ctx, key, force)
		if err == nil {
			return records, nil
		}
		lastErr = err

		if attempt >= maxAttempts-1 || !retryable(err) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if logger != nil {
			logger("retry %s (attempt %d): %v", key, attempt+2, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return nil, lastErr
}

func retryable(err error) bool {
	switch racecal.ErrorCode(err) {
	case racecal.ENOTFOUND, racecal.EINVALID, racecal.ETRIAL:
		return false
	}
	return true
}
