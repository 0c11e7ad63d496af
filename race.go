package racecal

import (
	"context"
	"time"
)

// Condition codes for RaceRecord.Condition.
const (
	ConditionSWP     = "SWP"
	ConditionSW      = "SW"
	ConditionQuality = "Quality"
	ConditionHcp     = "Hcp"
	ConditionWFA     = "WFA"
)

// RaceRecord is one race within a meeting as printed on its program page.
// Optional fields are nil when the page did not state them.
type RaceRecord struct {
	Key        MeetingKey `json:"key"`
	RaceNo     int        `json:"raceNo"`
	Title      string     `json:"title"`
	Prize      *int       `json:"prize,omitempty"`
	Condition  *string    `json:"condition,omitempty"`
	Class      *string    `json:"class,omitempty"`
	Age        *string    `json:"age,omitempty"`
	Sex        *string    `json:"sex,omitempty"`
	DistanceM  *int       `json:"distanceM,omitempty"`
	Bonus      *string    `json:"bonus,omitempty"`
	SourceURL  string     `json:"sourceUrl"`
	Type       *string    `json:"type,omitempty"`
	ProviderID *string    `json:"providerId,omitempty"`
}

// Validate returns an error if the record cannot be stored.
func (r *RaceRecord) Validate() error {
	if err := r.Key.Validate(); err != nil {
		return err
	}
	if r.RaceNo <= 0 {
		return Errorf(EINVALID, "race number must be positive, got %d", r.RaceNo)
	}
	return nil
}

// UpsertResult counts the outcome of an upsert batch.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Add accumulates another result into r.
func (r *UpsertResult) Add(o UpsertResult) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Skipped += o.Skipped
}

// RaceService represents a service for persisting race records.
type RaceService interface {
	// UpsertRaces inserts or updates records keyed by date, region, venue
	// and race number. Invalid records are skipped and counted.
	UpsertRaces(ctx context.Context, races []*RaceRecord) (UpsertResult, error)

	// ReplaceMeeting stores the full race set of one meeting, removing
	// races of that meeting which are no longer present.
	ReplaceMeeting(ctx context.Context, key MeetingKey, races []*RaceRecord) (UpsertResult, error)

	// FindRaces retrieves races matching the filter.
	FindRaces(ctx context.Context, filter RaceFilter) ([]*RaceRecord, error)

	// FindMeetings returns the distinct venues with races on date.
	FindMeetings(ctx context.Context, date time.Time) ([]VenueRef, error)

	// SetProviderID stamps the provider identifier on every race of a
	// meeting and returns the number of rows changed.
	SetProviderID(ctx context.Context, date time.Time, venue VenueRef, providerID string) (int, error)

	// DeleteRacesBefore removes races dated strictly before date.
	DeleteRacesBefore(ctx context.Context, date time.Time) (int, error)

	// Venues returns the distinct venues seen per region.
	Venues(ctx context.Context) (map[Region][]string, error)
}

// RaceFilter represents a filter for FindRaces.
type RaceFilter struct {
	From   *time.Time `json:"from"`
	To     *time.Time `json:"to"`
	Region *Region    `json:"region"`
	Venue  *string    `json:"venue"`

	// MissingProviderID restricts results to races without a provider id.
	MissingProviderID bool `json:"missingProviderId"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
