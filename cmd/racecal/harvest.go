package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/program"
)

// Run executes the harvest command. Every target is attempted; the
// returned error joins the failures.
func (c *HarvestCmd) Run(deps *Dependencies) error {
	var (
		errs []error
		all  []*racecal.RaceRecord
	)
	for _, target := range c.Targets {
		key, err := targetKey(target)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
			errs = append(errs, err)
			continue
		}

		records, err := deps.Harvester.Harvest(deps.Ctx, key, c.Force)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s: %s\n", key, racecal.ErrorMessage(err))
			errs = append(errs, err)
			continue
		}

		if c.Store {
			res, err := deps.Races.ReplaceMeeting(deps.Ctx, key, records)
			if err != nil {
				fmt.Fprintf(deps.Stderr, "error: %s: %s\n", key, racecal.ErrorMessage(err))
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(deps.Stderr, "%s: %d inserted, %d updated, %d skipped\n",
				key, res.Inserted, res.Updated, res.Skipped)
		}

		all = append(all, records...)
	}

	if c.JSON {
		if all == nil {
			all = []*racecal.RaceRecord{}
		}
		if err := writeJSON(deps.Stdout, all); err != nil {
			return err
		}
	} else {
		for _, r := range all {
			printRace(deps, r)
		}
	}

	return errors.Join(errs...)
}

// targetKey accepts a meeting key or a program page URL.
func targetKey(target string) (racecal.MeetingKey, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return program.KeyFromURL(target)
	}
	return racecal.ParseMeetingKey(target)
}

func printRace(deps *Dependencies, r *racecal.RaceRecord) {
	prize := ""
	if r.Prize != nil {
		prize = fmt.Sprintf("$%d", *r.Prize)
	}
	distance := ""
	if r.DistanceM != nil {
		distance = fmt.Sprintf("%dm", *r.DistanceM)
	}
	fmt.Fprintf(deps.Stdout, "%s  %s  R%d  %s  %s  %s  %s  %s  %s  %s\n",
		r.Key.ISODate(), r.Key.Region, r.RaceNo, r.Key.Venue,
		distance, deref(r.Class), deref(r.Condition), deref(r.Age), prize, deref(r.ProviderID))
}
