// Package crawl orchestrates meeting discovery and the daily pipeline.
// It walks listing pages, probes the uncovered tail of a window, harvests
// every meeting found, reconciles venues with the form provider and
// stores the result.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/reconcile"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pipeline defaults.
const (
	DefaultHarvestConcurrency   = 8
	DefaultReconcileConcurrency = 4
)

// Crawler runs discover, harvest, reconcile and store as one pass.
type Crawler struct {
	Discoverer racecal.Discoverer
	Harvester  racecal.Harvester

	// Reconciler is optional; without it records are stored without
	// provider ids.
	Reconciler racecal.Reconciler

	Races racecal.RaceService

	Concurrency          int
	ReconcileConcurrency int
	RetryDelays          []time.Duration

	Logger *slog.Logger
}

// RunOptions controls one pipeline pass.
type RunOptions struct {
	// Force bypasses intermediary caches when fetching programs.
	Force bool

	SkipReconcile bool
}

// Result holds the outcome of a pipeline pass.
type Result struct {
	RunID     string `json:"runId"`
	Keys      int    `json:"keys"`
	Harvested int    `json:"harvested"`
	Failed    int    `json:"failed"`
	Races     int    `json:"races"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	Ambiguous int    `json:"ambiguous"`

	// DateErrors lists dates whose reconciliation failed.
	DateErrors map[string]error `json:"-"`
}

// ProgressEvent reports progress during a pipeline pass.
type ProgressEvent struct {
	Type      ProgressType
	Completed int
	Total     int
	Key       string
	Races     int
	Error     error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressStarted ProgressType = iota
	ProgressCompleted
	ProgressFailed
	ProgressFinished
)

// ProgressFunc is a callback for reporting pipeline progress.
type ProgressFunc func(event ProgressEvent)

// Run executes one pass over w. Harvest and reconciliation failures are
// counted in the result, never returned; errors come only from discovery
// contract violations, cancellation or the store.
func (c *Crawler) Run(ctx context.Context, w racecal.Window, opts RunOptions, progress ProgressFunc) (*Result, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	result := &Result{RunID: uuid.NewString()}
	logger = logger.With("run", result.RunID)

	keys, err := c.Discoverer.Discover(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	result.Keys = len(keys)
	logger.Info("discovered meetings", "window", w.String(), "keys", len(keys), "byDate", FormatKeyCounts(keys))

	harvested := c.HarvestAll(ctx, keys, opts.Force, progress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ok []racecal.HarvestResult
	for _, h := range harvested {
		if h.Err != nil {
			result.Failed++
			logger.Warn("harvest failed", "key", h.Key.String(), "error", h.Err)
			continue
		}
		result.Harvested++
		result.Races += len(h.Records)
		ok = append(ok, h)
	}

	if c.Reconciler != nil && !opts.SkipReconcile {
		c.stamp(ctx, ok, result, logger)
	}

	for _, h := range ok {
		res, err := c.Races.ReplaceMeeting(ctx, h.Key, h.Records)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", h.Key, err)
		}
		result.Inserted += res.Inserted
		result.Updated += res.Updated
		result.Skipped += res.Skipped
	}

	if progress != nil {
		progress(ProgressEvent{
			Type:      ProgressFinished,
			Completed: len(keys),
			Total:     len(keys),
		})
	}

	return result, nil
}

// HarvestAll harvests keys in a bounded pool and returns one result per
// key in key order. Each meeting is retried with the crawler's delays.
func (c *Crawler) HarvestAll(ctx context.Context, keys []racecal.MeetingKey, force bool, progress ProgressFunc) []racecal.HarvestResult {
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultHarvestConcurrency
	}
	delays := c.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays()
	}

	logf := c.retryLog()

	total := len(keys)
	if progress != nil {
		progress(ProgressEvent{Type: ProgressStarted, Total: total})
	}

	results := make([]racecal.HarvestResult, total)
	resultCh := make(chan int, total)
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	go func() {
		for i, k := range keys {
			g.Go(func() error {
				records, err := HarvestWithRetryDelays(gctx, k, force, c.Harvester.Harvest, logf, delays)
				results[i] = racecal.HarvestResult{Key: k, Records: records, Err: err}
				resultCh <- i
				return nil
			})
		}
		_ = g.Wait()
		close(resultCh)
	}()

	for i := range resultCh {
		n := int(completed.Add(1))
		if progress == nil {
			continue
		}
		r := results[i]
		if r.Err != nil {
			progress(ProgressEvent{Type: ProgressFailed, Completed: n, Total: total, Key: r.Key.String(), Error: r.Err})
		} else {
			progress(ProgressEvent{Type: ProgressCompleted, Completed: n, Total: total, Key: r.Key.String(), Races: len(r.Records)})
		}
	}

	return results
}

// retryLog adapts the crawler's logger to HarvestWithRetryDelays.
func (c *Crawler) retryLog() LogFunc {
	if c.Logger == nil {
		return nil
	}
	return func(format string, args ...any) {
		c.Logger.Warn(fmt.Sprintf(format, args...))
	}
}

// stamp reconciles every date in harvested and sets ProviderID on the
// records of matched meetings.
func (c *Crawler) stamp(ctx context.Context, harvested []racecal.HarvestResult, result *Result, logger *slog.Logger) {
	byDate := make(map[time.Time][]racecal.VenueRef)
	for _, h := range harvested {
		v := racecal.VenueRef{Region: h.Key.Region, Venue: h.Key.Venue}
		byDate[h.Key.Date] = append(byDate[h.Key.Date], v)
	}

	concurrency := c.ReconcileConcurrency
	if concurrency <= 0 {
		concurrency = DefaultReconcileConcurrency
	}
	outcomes := reconcile.ReconcileDates(ctx, c.Reconciler, byDate, concurrency)

	dates := make([]time.Time, 0, len(outcomes))
	for d := range outcomes {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		o := outcomes[d]
		if o.Err != nil {
			if result.DateErrors == nil {
				result.DateErrors = make(map[string]error)
			}
			result.DateErrors[d.Format(time.DateOnly)] = o.Err
			logger.Warn("reconcile failed", "date", d.Format(time.DateOnly), "error", o.Err)
			continue
		}
		result.Matched += len(o.Reconciliation.Matches)
		result.Unmatched += len(o.Reconciliation.Unmatched)
		result.Ambiguous += len(o.Reconciliation.Ambiguous)
	}

	for _, h := range harvested {
		o, ok := outcomes[h.Key.Date]
		if !ok || o.Err != nil {
			continue
		}
		id, ok := o.Reconciliation.ProviderID(racecal.VenueRef{Region: h.Key.Region, Venue: h.Key.Venue})
		if !ok {
			continue
		}
		for _, r := range h.Records {
			r.ProviderID = &id
		}
	}
}
