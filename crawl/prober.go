package crawl

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/bloom"
	"golang.org/x/sync/errgroup"
)

// DefaultProbeConcurrency bounds simultaneous probe fetches.
const DefaultProbeConcurrency = 12

// Negative cache sizing.
const (
	negativeCacheExpectedKeys = 20000
	negativeCacheFPRate       = 0.001
)

var (
	raceOneMarker = regexp.MustCompile(`(?i)race\s*(&nbsp;)*\s*1\b|race\s*[-: ]\s*1\b|>\s*race\s*1\s*<`)
	trialMarker   = regexp.MustCompile(`(?i)barrier\s*trial|\btrial\b`)
)

// LooksLikeProgram reports whether a page is a genuine race program: it
// shows a race 1 header and is not a trial page.
func LooksLikeProgram(html string) bool {
	if html == "" || trialMarker.MatchString(html) {
		return false
	}
	return raceOneMarker.MatchString(html)
}

// Candidates lists the keys worth probing in gap: every date, every
// region in listing order and every known venue of that region, sorted
// case-insensitively. Trial venues and keys already in known are skipped,
// and venue spellings differing only in case are probed once.
func Candidates(gap racecal.Window, venues map[racecal.Region][]string, known racecal.KeySet) []racecal.MeetingKey {
	if gap.Validate() != nil {
		return nil
	}

	byRegion := make(map[racecal.Region][]string, len(venues))
	for region, names := range venues {
		seen := make(map[string]bool, len(names))
		var kept []string
		for _, name := range names {
			name = racecal.NormalizeVenue(name)
			folded := strings.ToLower(name)
			if name == "" || seen[folded] || racecal.IsTrialVenue(name) {
				continue
			}
			seen[folded] = true
			kept = append(kept, name)
		}
		sort.Slice(kept, func(i, j int) bool {
			a, b := strings.ToLower(kept[i]), strings.ToLower(kept[j])
			if a != b {
				return a < b
			}
			return kept[i] < kept[j]
		})
		byRegion[region] = kept
	}

	var out []racecal.MeetingKey
	for _, date := range gap.Dates() {
		for _, region := range racecal.Regions() {
			for _, venue := range byRegion[region] {
				k := racecal.MeetingKey{Date: date, Region: region, Venue: venue}
				if known.Has(k) {
					continue
				}
				out = append(out, k)
			}
		}
	}
	return out
}

// Prober confirms candidate keys by fetching their program pages
// directly.
type Prober struct {
	fetcher     racecal.Fetcher
	baseURL     string
	concurrency int
	logger      *slog.Logger
	now         func() time.Time

	// mu guards negative and negativeDay.
	mu          sync.Mutex
	negative    *bloom.Filter
	negativeDay time.Time
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProbeConcurrency sets the number of simultaneous probes.
func WithProbeConcurrency(n int) ProberOption {
	return func(p *Prober) {
		p.concurrency = n
	}
}

// WithBaseURL sets the site root probes are built under.
func WithBaseURL(u string) ProberOption {
	return func(p *Prober) {
		p.baseURL = u
	}
}

// WithNegativeCache remembers keys that probed empty so they are not
// fetched again on the same day.
func WithNegativeCache() ProberOption {
	return func(p *Prober) {
		p.negative = bloom.NewFilter(negativeCacheExpectedKeys, negativeCacheFPRate)
	}
}

// WithProbeLogger sets the logger for per-probe debug output.
func WithProbeLogger(l *slog.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = l
	}
}

// NewProber creates a Prober.
func NewProber(fetcher racecal.Fetcher, opts ...ProberOption) *Prober {
	p := &Prober{
		fetcher:     fetcher,
		baseURL:     racecal.DefaultBaseURL,
		concurrency: DefaultProbeConcurrency,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency <= 0 {
		p.concurrency = DefaultProbeConcurrency
	}
	return p
}

// Probe fetches each candidate's program page and returns, in candidate
// order, the keys whose page looks like a real race program. Fetch
// failures count as misses.
func (p *Prober) Probe(ctx context.Context, candidates []racecal.MeetingKey) []racecal.MeetingKey {
	if len(candidates) == 0 {
		return nil
	}
	p.expireNegative()

	hits := make([]bool, len(candidates))

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i, k := range candidates {
		if ctx.Err() != nil {
			break
		}
		if p.knownEmpty(k) {
			continue
		}
		g.Go(func() error {
			html, err := p.fetcher.Fetch(ctx, racecal.Get(racecal.ProgramURL(p.baseURL, k)))
			if err != nil {
				p.logger.Debug("probe failed", "key", k.String(), "error", err)
				return nil
			}
			if LooksLikeProgram(html) {
				hits[i] = true
				return nil
			}
			p.rememberEmpty(k)
			return nil
		})
	}
	_ = g.Wait()

	var found []racecal.MeetingKey
	for i, hit := range hits {
		if hit {
			found = append(found, candidates[i])
		}
	}
	p.logger.Debug("probe finished", "candidates", len(candidates), "found", len(found))
	return found
}

// expireNegative clears the negative cache when the day has turned.
func (p *Prober) expireNegative() {
	if p.negative == nil {
		return
	}
	today := racecal.Day(p.now())
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.negativeDay.Equal(today) {
		p.negative.Clear()
		p.negativeDay = today
	}
}

func (p *Prober) knownEmpty(k racecal.MeetingKey) bool {
	if p.negative == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.negative.Test(k)
}

func (p *Prober) rememberEmpty(k racecal.MeetingKey) {
	if p.negative == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.negative.Add(k)
}
