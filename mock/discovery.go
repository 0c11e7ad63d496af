package mock

import (
	"context"

	"github.com/equinegpt/racecal"
)

var _ racecal.Discoverer = (*Discoverer)(nil)

// Discoverer is a mock implementation of racecal.Discoverer.
type Discoverer struct {
	DiscoverFn func(ctx context.Context, w racecal.Window) ([]racecal.MeetingKey, error)
}

func (d *Discoverer) Discover(ctx context.Context, w racecal.Window) ([]racecal.MeetingKey, error) {
	return d.DiscoverFn(ctx, w)
}

var _ racecal.VenueInventory = (*VenueInventory)(nil)

// VenueInventory is a mock implementation of racecal.VenueInventory.
type VenueInventory struct {
	VenuesFn func(ctx context.Context) (map[racecal.Region][]string, error)
}

func (v *VenueInventory) Venues(ctx context.Context) (map[racecal.Region][]string, error) {
	return v.VenuesFn(ctx)
}

var _ racecal.KeyExtractor = (*KeyExtractor)(nil)

// KeyExtractor is a mock implementation of racecal.KeyExtractor.
type KeyExtractor struct {
	ExtractKeysFn func(html, pageURL string) []racecal.MeetingKey
}

func (e *KeyExtractor) ExtractKeys(html, pageURL string) []racecal.MeetingKey {
	return e.ExtractKeysFn(html, pageURL)
}

var _ racecal.ActionFinder = (*ActionFinder)(nil)

// ActionFinder is a mock implementation of racecal.ActionFinder.
type ActionFinder struct {
	FindActionsFn func(html, pageURL string) (*racecal.ActionSet, error)
}

func (f *ActionFinder) FindActions(html, pageURL string) (*racecal.ActionSet, error) {
	return f.FindActionsFn(html, pageURL)
}
