package program

import (
	"context"
	"net/url"

	"github.com/equinegpt/racecal"
)

var _ racecal.Harvester = (*Harvester)(nil)

// Harvester fetches program pages and parses them into race records.
type Harvester struct {
	fetcher racecal.Fetcher
	baseURL string
	grader  racecal.TrackGrader
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithBaseURL sets the site root program URLs are built under.
func WithBaseURL(u string) Option {
	return func(h *Harvester) {
		h.baseURL = u
	}
}

// WithTrackGrader stamps each record's Type with the venue's grade.
func WithTrackGrader(g racecal.TrackGrader) Option {
	return func(h *Harvester) {
		h.grader = g
	}
}

// NewHarvester creates a Harvester.
func NewHarvester(fetcher racecal.Fetcher, opts ...Option) *Harvester {
	h := &Harvester{
		fetcher: fetcher,
		baseURL: racecal.DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Harvest fetches and parses the program for key. Fetch errors are
// returned unchanged so the caller can decide whether to retry.
func (h *Harvester) Harvest(ctx context.Context, key racecal.MeetingKey, force bool) ([]*racecal.RaceRecord, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return h.harvest(ctx, key, racecal.ProgramURL(h.baseURL, key), force)
}

// HarvestURL fetches and parses a program page addressed by URL. The
// meeting is read from the URL's Key parameter.
func (h *Harvester) HarvestURL(ctx context.Context, rawURL string, force bool) ([]*racecal.RaceRecord, error) {
	key, err := KeyFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	return h.harvest(ctx, key, rawURL, force)
}

func (h *Harvester) harvest(ctx context.Context, key racecal.MeetingKey, pageURL string, force bool) ([]*racecal.RaceRecord, error) {
	page, err := h.fetcher.Fetch(ctx, &racecal.Request{URL: pageURL, NoCache: force})
	if err != nil {
		return nil, err
	}

	records := Parse(page, key, pageURL)
	if h.grader != nil {
		if grade, ok := h.grader.Grade(key.Region, key.Venue); ok {
			for _, r := range records {
				r.Type = ptr(grade)
			}
		}
	}
	return records, nil
}

// KeyFromURL reads the meeting key from a program URL's Key parameter.
func KeyFromURL(rawURL string) (racecal.MeetingKey, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return racecal.MeetingKey{}, racecal.Errorf(racecal.EINVALID, "program url %q: %v", rawURL, err)
	}
	q := u.Query()
	raw := q.Get("Key")
	if raw == "" {
		raw = q.Get("key")
	}
	if raw == "" {
		return racecal.MeetingKey{}, racecal.Errorf(racecal.EINVALID, "program url %q has no Key parameter", rawURL)
	}
	return racecal.ParseMeetingKey(raw)
}
