package racecal

import "context"

// Harvester turns one meeting's program page into race records.
type Harvester interface {
	// Harvest fetches and parses the program for key. With force set the
	// fetch bypasses intermediary caches. Fetch failures are returned so
	// the caller can apply its own retry policy.
	Harvest(ctx context.Context, key MeetingKey, force bool) ([]*RaceRecord, error)
}

// HarvestResult is the outcome of harvesting one meeting.
type HarvestResult struct {
	Key     MeetingKey    `json:"key"`
	Records []*RaceRecord `json:"records"`
	Err     error         `json:"-"`
}
