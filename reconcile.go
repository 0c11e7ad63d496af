package racecal

import (
	"context"
	"time"
)

// VenueRef is a locally discovered venue.
type VenueRef struct {
	Region Region `json:"region"`
	Venue  string `json:"venue"`
}

// VenueKey identifies a venue by region and canonical name.
type VenueKey struct {
	Region    Region `json:"region"`
	Canonical string `json:"canonical"`
}

// MatchTier records which matching tier resolved a venue.
type MatchTier int

// MatchTier constants, in the order tiers are tried.
const (
	MatchNone MatchTier = iota
	MatchExact
	MatchCanonical
	MatchFuzzy
)

func (t MatchTier) String() string {
	switch t {
	case MatchExact:
		return "exact"
	case MatchCanonical:
		return "canonical"
	case MatchFuzzy:
		return "fuzzy"
	}
	return "none"
}

// Match is a resolved venue.
type Match struct {
	Venue      VenueRef  `json:"venue"`
	ProviderID string    `json:"providerId"`
	RawName    string    `json:"rawName"`
	Tier       MatchTier `json:"tier"`

	// Score is the token overlap for fuzzy matches.
	Score int `json:"score,omitempty"`
}

// Ambiguity is a venue that one tier resolved to several provider
// meetings: equal names, or a shared best fuzzy score.
type Ambiguity struct {
	Venue      VenueRef          `json:"venue"`
	Candidates []ProviderMeeting `json:"candidates"`
	Tier       MatchTier         `json:"tier"`

	// Score is the shared token overlap for fuzzy ties.
	Score int `json:"score,omitempty"`
}

// Reconciliation is the outcome of reconciling one date.
type Reconciliation struct {
	Date      time.Time          `json:"date"`
	Matches   map[VenueKey]Match `json:"-"`
	Unmatched []VenueRef         `json:"unmatched"`
	Ambiguous []Ambiguity        `json:"ambiguous"`
}

// Reconciler maps local venues to provider meeting identifiers.
type Reconciler interface {
	// Reconcile resolves venues racing on date against the provider's
	// meeting list for that date. A provider failure fails this date only.
	Reconcile(ctx context.Context, date time.Time, venues []VenueRef) (*Reconciliation, error)
}

// ProviderID returns the identifier matched to a local venue.
func (r *Reconciliation) ProviderID(v VenueRef) (string, bool) {
	for _, m := range r.Matches {
		if m.Venue == v {
			return m.ProviderID, true
		}
	}
	return "", false
}
