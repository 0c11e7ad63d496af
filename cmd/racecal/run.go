package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/crawl"
)

// runOutput is the JSON shape printed by run --json.
type runOutput struct {
	*crawl.Result
	Window     string            `json:"window"`
	Purged     int               `json:"purged"`
	DateErrors map[string]string `json:"dateErrors,omitempty"`
}

// Run executes the run command: one full pipeline pass followed by a
// purge of races dated before today.
func (c *RunCmd) Run(deps *Dependencies) error {
	w := racecal.NewWindow(deps.Today, c.Days, c.IncludePast)

	if c.Concurrency > 0 {
		deps.Crawler.Concurrency = c.Concurrency
	}

	progress := func(event crawl.ProgressEvent) {
		switch event.Type {
		case crawl.ProgressStarted:
			fmt.Fprintf(deps.Stderr, "  Found %d meetings in %s\n", event.Total, w)
		case crawl.ProgressFailed:
			fmt.Fprintf(deps.Stderr, "  skip %s: %s\n", event.Key, racecal.ErrorMessage(event.Error))
		case crawl.ProgressCompleted, crawl.ProgressFinished:
		}
	}
	if c.JSON {
		progress = nil
	}

	result, err := deps.Crawler.Run(deps.Ctx, w, crawl.RunOptions{
		Force:         c.Force,
		SkipReconcile: c.SkipReconcile,
	}, progress)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	out := runOutput{Result: result, Window: w.String()}
	if !c.NoPurge {
		out.Purged, err = deps.Races.DeleteRacesBefore(deps.Ctx, deps.Today)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: purge: %s\n", racecal.ErrorMessage(err))
			return err
		}
	}

	dates := make([]string, 0, len(result.DateErrors))
	for d, e := range result.DateErrors {
		if out.DateErrors == nil {
			out.DateErrors = make(map[string]string, len(result.DateErrors))
		}
		out.DateErrors[d] = racecal.ErrorMessage(e)
		dates = append(dates, d)
	}
	sort.Strings(dates)

	if c.JSON {
		return writeJSON(deps.Stdout, out)
	}

	fmt.Fprintf(deps.Stdout, "Run %s over %s\n", result.RunID, w)
	fmt.Fprintf(deps.Stdout, "  Meetings: %d discovered, %d harvested, %d failed\n", result.Keys, result.Harvested, result.Failed)
	fmt.Fprintf(deps.Stdout, "  Races: %d (%d inserted, %d updated, %d skipped)\n", result.Races, result.Inserted, result.Updated, result.Skipped)
	if !c.SkipReconcile && deps.Crawler.Reconciler != nil {
		fmt.Fprintf(deps.Stdout, "  Venues: %d matched, %d unmatched, %d ambiguous\n", result.Matched, result.Unmatched, result.Ambiguous)
	}
	for _, d := range dates {
		fmt.Fprintf(deps.Stdout, "  Reconcile failed for %s: %s\n", d, out.DateErrors[d])
	}
	if !c.NoPurge {
		fmt.Fprintf(deps.Stdout, "  Purged %d races before %s\n", out.Purged, deps.Today.Format(time.DateOnly))
	}

	return nil
}
