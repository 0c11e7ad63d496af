package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/reconcile"
)

// reconcileOutput is the JSON shape printed by reconcile --json.
type reconcileOutput struct {
	Date      string              `json:"date"`
	Matches   []racecal.Match     `json:"matches"`
	Unmatched []racecal.VenueRef  `json:"unmatched"`
	Ambiguous []racecal.Ambiguity `json:"ambiguous"`
	Updated   int                 `json:"updated"`
}

// Run executes the reconcile command.
func (c *ReconcileCmd) Run(deps *Dependencies) error {
	if deps.Reconciler == nil {
		err := racecal.Errorf(racecal.EINVALID, "provider api key not configured; set PF_API_KEY")
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	date := deps.Today
	if c.Date != "" {
		d, err := parseDate(c.Date)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
			return err
		}
		date = d
	}

	venues, err := deps.Races.FindMeetings(deps.Ctx, date)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}
	if len(venues) == 0 {
		fmt.Fprintf(deps.Stdout, "No meetings stored for %s. Use 'racecal harvest --store' or 'racecal run' first.\n", date.Format(time.DateOnly))
		return nil
	}

	rec, err := deps.Reconciler.Reconcile(deps.Ctx, date, venues)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	out := reconcileOutput{
		Date:      date.Format(time.DateOnly),
		Matches:   matchList(rec),
		Unmatched: rec.Unmatched,
		Ambiguous: rec.Ambiguous,
	}

	var applyErr error
	if c.Apply {
		out.Updated, applyErr = reconcile.Apply(deps.Ctx, deps.Races, rec)
		if applyErr != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(applyErr))
		}
	}

	if c.JSON {
		return errors.Join(writeJSON(deps.Stdout, out), applyErr)
	}

	for _, m := range out.Matches {
		fmt.Fprintf(deps.Stdout, "%s  %s  ->  %s  %s (%s)\n", m.Venue.Region, m.Venue.Venue, m.ProviderID, m.RawName, m.Tier)
	}
	for _, v := range out.Unmatched {
		fmt.Fprintf(deps.Stdout, "%s  %s  unmatched\n", v.Region, v.Venue)
	}
	for _, a := range out.Ambiguous {
		names := make([]string, len(a.Candidates))
		for i, m := range a.Candidates {
			names[i] = fmt.Sprintf("%s (%s)", m.RawName, m.ProviderID)
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  ambiguous: %s\n", a.Venue.Region, a.Venue.Venue, strings.Join(names, ", "))
	}
	if c.Apply && applyErr == nil {
		fmt.Fprintf(deps.Stdout, "Updated %d races\n", out.Updated)
	}

	return applyErr
}

func matchList(rec *racecal.Reconciliation) []racecal.Match {
	out := make([]racecal.Match, 0, len(rec.Matches))
	for _, m := range rec.Matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue.Region != out[j].Venue.Region {
			return out[i].Venue.Region < out[j].Venue.Region
		}
		return out[i].Venue.Venue < out[j].Venue.Venue
	})
	return out
}
