package crawl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
	"golang.org/x/sync/errgroup"
)

// probeSlack is how far short of the window end the walked listings may
// stop before the tail is probed.
const probeSlack = 3 * 24 * time.Hour

var _ racecal.Discoverer = (*Discovery)(nil)

// Listings returns the global listing and one calendar per region under
// baseURL.
func Listings(baseURL string) []string {
	base := strings.TrimRight(baseURL, "/")
	urls := []string{base + "/home.aspx"}
	for _, r := range racecal.Regions() {
		urls = append(urls, base+"/FreeFields/Calendar.aspx?State="+string(r))
	}
	return urls
}

// Discovery enumerates meetings by walking every listing in parallel and
// probing the part of the window the listings did not reach.
type Discovery struct {
	Walker *Walker

	// Prober is optional; without it the uncovered tail stays uncovered.
	Prober *Prober

	// Inventories supply venues to probe beyond those seen on listings.
	Inventories []racecal.VenueInventory

	// Listings defaults to Listings(racecal.DefaultBaseURL).
	Listings []string

	Logger *slog.Logger
}

// Discover returns the non-trial meeting keys dated inside w, sorted.
// Listings that cannot be reached contribute nothing. An error is
// returned only for an invalid window or a cancelled context, in which
// case the keys found so far are returned with it.
func (d *Discovery) Discover(ctx context.Context, w racecal.Window) ([]racecal.MeetingKey, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	listings := d.Listings
	if len(listings) == 0 {
		listings = Listings(racecal.DefaultBaseURL)
	}

	// Each worker owns its slot; results are merged after Wait.
	results := make([]*WalkResult, len(listings))
	g := new(errgroup.Group)
	for i, u := range listings {
		g.Go(func() error {
			results[i] = d.Walker.Walk(ctx, u, w)
			return nil
		})
	}
	_ = g.Wait()

	// covered is how far the listings reached, in or out of the window.
	var covered time.Time
	keys := make(racecal.KeySet)
	for _, res := range results {
		keys.Add(res.Keys...)
		if res.MaxDate.After(covered) {
			covered = res.MaxDate
		}
		logger.Info("listing walked",
			"url", res.URL,
			"keys", len(res.Keys),
			"hops", res.Hops,
			"stop", res.Stop.String(),
		)
	}

	if covered.After(w.End) {
		covered = w.End
	}
	if d.Prober != nil && ctx.Err() == nil && covered.Before(w.End.Add(-probeSlack)) {
		gap := racecal.Window{Start: w.Start, End: w.End}
		if !covered.IsZero() && covered.AddDate(0, 0, 1).After(gap.Start) {
			gap.Start = covered.AddDate(0, 0, 1)
		}

		venues := d.venues(ctx, keys, logger)
		candidates := Candidates(gap, venues, keys)
		found := d.Prober.Probe(ctx, candidates)
		keys.Add(found...)
		logger.Info("tail probed",
			"gap", gap.String(),
			"candidates", len(candidates),
			"found", len(found),
		)
	}

	var out []racecal.MeetingKey
	for _, k := range keys.Sorted() {
		if w.Contains(k.Date) && !racecal.IsTrialVenue(k.Venue) {
			out = append(out, k)
		}
	}

	return out, ctx.Err()
}

// venues merges the venues seen in keys with every inventory. An
// inventory that fails is logged and skipped.
func (d *Discovery) venues(ctx context.Context, keys racecal.KeySet, logger *slog.Logger) map[racecal.Region][]string {
	venues := make(map[racecal.Region][]string)
	for k := range keys {
		venues[k.Region] = append(venues[k.Region], k.Venue)
	}
	for _, inv := range d.Inventories {
		more, err := inv.Venues(ctx)
		if err != nil {
			logger.Warn("venue inventory unavailable", "error", err)
			continue
		}
		for region, names := range more {
			venues[region] = append(venues[region], names...)
		}
	}
	return venues
}
