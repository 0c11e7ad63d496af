package racecal

import (
	"context"
	"time"
)

// ProviderMeeting is the form provider's record of one meeting.
type ProviderMeeting struct {
	Date       time.Time `json:"date"`
	Region     Region    `json:"region"`
	RawName    string    `json:"rawName"`
	ProviderID string    `json:"providerId"`
}

// ProviderClient lists the provider's meetings for a date.
type ProviderClient interface {
	// Meetings returns every meeting the provider knows on date. An empty
	// list means the provider has nothing for that date.
	Meetings(ctx context.Context, date time.Time) ([]ProviderMeeting, error)
}
