package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
)

var _ racecal.Reconciler = (*Engine)(nil)

// Engine resolves local venues against the provider's meeting list, one
// provider fetch per date.
type Engine struct {
	provider      racecal.ProviderClient
	canonicalizer *Canonicalizer
	aliases       racecal.TrackAliaser
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCanonicalizer replaces the default Canonicalizer.
func WithCanonicalizer(c *Canonicalizer) EngineOption {
	return func(e *Engine) {
		e.canonicalizer = c
	}
}

// WithAliases resolves known alternate track spellings on both sides
// before canonical comparison.
func WithAliases(a racecal.TrackAliaser) EngineOption {
	return func(e *Engine) {
		e.aliases = a
	}
}

// NewEngine creates an Engine reading meetings from provider.
func NewEngine(provider racecal.ProviderClient, opts ...EngineOption) *Engine {
	e := &Engine{
		provider:      provider,
		canonicalizer: defaultCanonicalizer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type exactKey struct {
	region racecal.Region
	name   string
}

// Reconcile resolves venues racing on date. Each venue is tried against
// the exact, canonical and fuzzy tiers in turn. A tier that yields several
// provider meetings reports the venue as ambiguous rather than guessing.
func (e *Engine) Reconcile(ctx context.Context, date time.Time, venues []racecal.VenueRef) (*racecal.Reconciliation, error) {
	date = racecal.Day(date)
	meetings, err := e.provider.Meetings(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("provider meetings for %s: %w", date.Format(time.DateOnly), err)
	}

	exact := make(map[exactKey][]racecal.ProviderMeeting)
	canonical := make(map[exactKey][]racecal.ProviderMeeting)
	byRegion := make(map[racecal.Region][]candidate)
	for _, m := range meetings {
		ek := exactKey{m.Region, strings.ToLower(strings.TrimSpace(m.RawName))}
		exact[ek] = addMeeting(exact[ek], m)
		ck := exactKey{m.Region, e.canonicalName(m.Region, m.RawName)}
		canonical[ck] = addMeeting(canonical[ck], m)
		byRegion[m.Region] = append(byRegion[m.Region], candidate{
			meeting: m,
			tokens:  tokenSet(e.canonicalizer.Tokens(e.alias(m.Region, m.RawName))),
		})
	}

	rec := &racecal.Reconciliation{
		Date:    date,
		Matches: make(map[racecal.VenueKey]racecal.Match),
	}

	for _, v := range dedupe(venues) {
		key := racecal.VenueKey{Region: v.Region, Canonical: e.canonicalizer.Canonicalize(v.Venue)}

		if ms := exact[exactKey{v.Region, strings.ToLower(strings.TrimSpace(v.Venue))}]; len(ms) > 0 {
			resolve(rec, key, v, ms, racecal.MatchExact)
			continue
		}
		if ms := canonical[exactKey{v.Region, e.canonicalName(v.Region, v.Venue)}]; len(ms) > 0 {
			resolve(rec, key, v, ms, racecal.MatchCanonical)
			continue
		}

		best, tied, score := fuzzy(tokenSet(e.canonicalizer.Tokens(e.alias(v.Region, v.Venue))), byRegion[v.Region])
		switch {
		case score == 0:
			rec.Unmatched = append(rec.Unmatched, v)
		case len(tied) > 1:
			rec.Ambiguous = append(rec.Ambiguous, racecal.Ambiguity{Venue: v, Candidates: tied, Tier: racecal.MatchFuzzy, Score: score})
		default:
			rec.Matches[key] = newMatch(v, best, racecal.MatchFuzzy, score)
		}
	}

	return rec, nil
}

// resolve records a match for v, or an ambiguity when ms holds more than
// one provider meeting.
func resolve(r *racecal.Reconciliation, key racecal.VenueKey, v racecal.VenueRef, ms []racecal.ProviderMeeting, tier racecal.MatchTier) {
	if len(ms) > 1 {
		r.Ambiguous = append(r.Ambiguous, racecal.Ambiguity{Venue: v, Candidates: ms, Tier: tier})
		return
	}
	r.Matches[key] = newMatch(v, ms[0], tier, 0)
}

// addMeeting appends m unless a meeting with the same provider id is
// already listed.
func addMeeting(ms []racecal.ProviderMeeting, m racecal.ProviderMeeting) []racecal.ProviderMeeting {
	for _, have := range ms {
		if have.ProviderID == m.ProviderID {
			return ms
		}
	}
	return append(ms, m)
}

func (e *Engine) alias(region racecal.Region, venue string) string {
	if e.aliases == nil {
		return venue
	}
	return e.aliases.CanonicalTrack(region, venue)
}

func (e *Engine) canonicalName(region racecal.Region, venue string) string {
	return e.canonicalizer.Canonicalize(e.alias(region, venue))
}

type candidate struct {
	meeting racecal.ProviderMeeting
	tokens  map[string]bool
}

// fuzzy scores candidates by shared token count. It returns the best
// meeting, every meeting sharing the best score, and that score.
func fuzzy(tokens map[string]bool, candidates []candidate) (racecal.ProviderMeeting, []racecal.ProviderMeeting, int) {
	var (
		best  racecal.ProviderMeeting
		tied  []racecal.ProviderMeeting
		score int
	)
	for _, c := range candidates {
		n := 0
		for t := range tokens {
			if c.tokens[t] {
				n++
			}
		}
		switch {
		case n == 0:
		case n > score:
			score, best, tied = n, c.meeting, []racecal.ProviderMeeting{c.meeting}
		case n == score:
			tied = append(tied, c.meeting)
		}
	}
	return best, tied, score
}

func newMatch(v racecal.VenueRef, m racecal.ProviderMeeting, tier racecal.MatchTier, score int) racecal.Match {
	return racecal.Match{
		Venue:      v,
		ProviderID: m.ProviderID,
		RawName:    m.RawName,
		Tier:       tier,
		Score:      score,
	}
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// dedupe removes repeated venues and orders them by region and name so
// results are reproducible.
func dedupe(venues []racecal.VenueRef) []racecal.VenueRef {
	seen := make(map[racecal.VenueRef]bool, len(venues))
	out := make([]racecal.VenueRef, 0, len(venues))
	for _, v := range venues {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Venue < out[j].Venue
	})
	return out
}
