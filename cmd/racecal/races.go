package main

import (
	"fmt"

	"github.com/equinegpt/racecal"
)

// Run executes the races command.
func (c *RacesCmd) Run(deps *Dependencies) error {
	filter, err := c.filter()
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	races, err := deps.Races.FindRaces(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	if c.JSON {
		if races == nil {
			races = []*racecal.RaceRecord{}
		}
		return writeJSON(deps.Stdout, races)
	}

	if len(races) == 0 {
		fmt.Fprintln(deps.Stdout, "No races found. Use 'racecal run' to harvest some.")
		return nil
	}
	for _, r := range races {
		printRace(deps, r)
	}
	return nil
}

func (c *RacesCmd) filter() (racecal.RaceFilter, error) {
	f := racecal.RaceFilter{
		MissingProviderID: c.MissingProviderID,
		Limit:             c.Limit,
		Offset:            c.Offset,
	}
	if c.From != "" {
		d, err := parseDate(c.From)
		if err != nil {
			return f, err
		}
		f.From = &d
	}
	if c.To != "" {
		d, err := parseDate(c.To)
		if err != nil {
			return f, err
		}
		f.To = &d
	}
	if c.Region != "" {
		r, err := racecal.ParseRegion(c.Region)
		if err != nil {
			return f, err
		}
		f.Region = &r
	}
	if c.Venue != "" {
		f.Venue = &c.Venue
	}
	return f, nil
}
