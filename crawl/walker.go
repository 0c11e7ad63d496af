package crawl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/equinegpt/racecal"
)

// Walker defaults.
const (
	DefaultWalkDeadline  = 75 * time.Second
	DefaultHopDelay      = 250 * time.Millisecond
	DefaultMaxCandidates = 30
	maxHopBudget         = 40
)

// StopReason records why a walk ended.
type StopReason int

const (
	StopReachedEnd StopReason = iota
	StopUnchanged
	StopNoAdvance
	StopHopBudget
	StopDeadline
	StopFetchFailed
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopReachedEnd:
		return "reached-end"
	case StopUnchanged:
		return "unchanged"
	case StopNoAdvance:
		return "no-advance"
	case StopHopBudget:
		return "hop-budget"
	case StopDeadline:
		return "deadline"
	case StopFetchFailed:
		return "fetch-failed"
	case StopCancelled:
		return "cancelled"
	}
	return "unknown"
}

// WalkResult is the outcome of walking one listing.
type WalkResult struct {
	URL string

	// Keys are the keys seen inside the window, sorted.
	Keys []racecal.MeetingKey

	// MaxDate is the furthest key date seen on any page, in or out of the
	// window.
	MaxDate time.Time

	Hops int
	Stop StopReason
	Err  error
}

// Walker drives a listing page forward in time by replaying whichever of
// the page's own controls moves its furthest meeting date on.
type Walker struct {
	fetcher       racecal.Fetcher
	keys          racecal.KeyExtractor
	actions       racecal.ActionFinder
	maxHops       int
	deadline      time.Duration
	hopDelay      time.Duration
	maxCandidates int
	logger        *slog.Logger
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithMaxHops fixes the hop budget instead of deriving it from the window.
func WithMaxHops(n int) WalkerOption {
	return func(w *Walker) {
		w.maxHops = n
	}
}

// WithDeadline bounds the wall-clock time of one walk.
// Defaults to DefaultWalkDeadline (75s).
func WithDeadline(d time.Duration) WalkerOption {
	return func(w *Walker) {
		w.deadline = d
	}
}

// WithHopDelay sets the pause after each successful hop.
func WithHopDelay(d time.Duration) WalkerOption {
	return func(w *Walker) {
		w.hopDelay = d
	}
}

// WithMaxCandidates bounds how many actions are tried per hop.
func WithMaxCandidates(n int) WalkerOption {
	return func(w *Walker) {
		w.maxCandidates = n
	}
}

// WithLogger sets the logger for hop-level debug output.
func WithLogger(l *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = l
	}
}

// NewWalker creates a Walker.
func NewWalker(fetcher racecal.Fetcher, keys racecal.KeyExtractor, actions racecal.ActionFinder, opts ...WalkerOption) *Walker {
	w := &Walker{
		fetcher:       fetcher,
		keys:          keys,
		actions:       actions,
		deadline:      DefaultWalkDeadline,
		hopDelay:      DefaultHopDelay,
		maxCandidates: DefaultMaxCandidates,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HopBudget returns the number of hops allowed for a window: one per week
// plus eight, capped at 40.
func HopBudget(w racecal.Window) int {
	return min(w.Days()/7+8, maxHopBudget)
}

// page is one fetched listing state.
type page struct {
	url  string
	html string
	sig  uint64
	max  time.Time
	keys []racecal.MeetingKey
}

// Walk fetches listingURL and hops forward until the window end is
// reached or the listing stops moving. It never fails: a deadline or
// fetch failure ends the walk with the keys gathered so far.
func (w *Walker) Walk(ctx context.Context, listingURL string, win racecal.Window) *WalkResult {
	res := &WalkResult{URL: listingURL}

	if w.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.deadline)
		defer cancel()
	}

	budget := w.maxHops
	if budget <= 0 {
		budget = HopBudget(win)
	}

	seen := make(racecal.KeySet)
	collect := func(p *page) {
		for _, k := range p.keys {
			if win.Contains(k.Date) {
				seen.Add(k)
			}
		}
		if p.max.After(res.MaxDate) {
			res.MaxDate = p.max
		}
	}
	finish := func(stop StopReason) *WalkResult {
		res.Stop = stop
		res.Keys = seen.Sorted()
		w.logger.Debug("walk stopped", "url", listingURL, "reason", stop.String(),
			"hops", res.Hops, "keys", len(res.Keys), "maxDate", res.MaxDate.Format(time.DateOnly))
		return res
	}

	cur, err := w.load(ctx, racecal.Get(listingURL))
	if err != nil {
		res.Err = err
		if reason, ok := ctxStop(ctx); ok {
			return finish(reason)
		}
		return finish(StopFetchFailed)
	}
	collect(cur)

	var knownGood string
	for {
		if !res.MaxDate.IsZero() && !res.MaxDate.Before(win.End) {
			return finish(StopReachedEnd)
		}
		if res.Hops >= budget {
			return finish(StopHopBudget)
		}

		next, sig, stop := w.advance(ctx, cur, res.MaxDate, knownGood)
		if next == nil {
			if reason, ok := ctxStop(ctx); ok {
				return finish(reason)
			}
			return finish(stop)
		}

		res.Hops++
		knownGood = sig
		cur = next
		collect(cur)
		w.logger.Debug("walk hop", "url", listingURL, "hop", res.Hops, "maxDate", cur.max.Format(time.DateOnly))

		if w.hopDelay > 0 {
			select {
			case <-ctx.Done():
				reason, _ := ctxStop(ctx)
				return finish(reason)
			case <-time.After(w.hopDelay):
			}
		}
	}
}

// advance finds the action that moves cur past maxDate. The known-good
// action is re-located on cur and tried first; if it now returns the page
// unchanged the listing has stopped moving.
func (w *Walker) advance(ctx context.Context, cur *page, maxDate time.Time, knownGood string) (*page, string, StopReason) {
	set, err := w.actions.FindActions(cur.html, cur.url)
	if err != nil {
		return nil, "", StopNoAdvance
	}

	try := func(a racecal.Action) (*page, bool) {
		if a.Kind != racecal.ActionLink && len(set.Hidden) == 0 {
			return nil, false
		}
		next, err := w.load(ctx, set.Request(a, cur.url))
		if err != nil {
			return nil, false
		}
		return next, true
	}

	if knownGood != "" {
		if a, ok := set.Find(knownGood); ok {
			next, ok := try(a)
			if ok && next.sig == cur.sig {
				return nil, "", StopUnchanged
			}
			if ok && next.max.After(maxDate) {
				return next, knownGood, 0
			}
		}
	}

	tried := 0
	for _, a := range set.Actions {
		if ctx.Err() != nil {
			return nil, "", StopCancelled
		}
		sig := a.Signature()
		if sig == knownGood {
			continue
		}
		if tried >= w.maxCandidates {
			break
		}
		tried++

		next, ok := try(a)
		if !ok || next.sig == cur.sig {
			continue
		}
		if next.max.After(maxDate) {
			w.logger.Debug("walk action adopted", "url", cur.url, "kind", a.Kind.String(), "text", a.Text)
			return next, sig, 0
		}
	}

	return nil, "", StopNoAdvance
}

func (w *Walker) load(ctx context.Context, req *racecal.Request) (*page, error) {
	html, err := w.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	keys := w.keys.ExtractKeys(html, req.URL)
	return &page{
		url:  req.URL,
		html: html,
		sig:  PageSignature(html),
		max:  racecal.MaxDate(keys),
		keys: keys,
	}, nil
}

// ctxStop maps a finished context to the stop reason it implies.
func ctxStop(ctx context.Context) (StopReason, bool) {
	switch err := ctx.Err(); {
	case err == nil:
		return 0, false
	case errors.Is(err, context.DeadlineExceeded):
		return StopDeadline, true
	default:
		return StopCancelled, true
	}
}
