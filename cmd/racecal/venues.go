package main

import (
	"fmt"
	"strings"

	"github.com/equinegpt/racecal"
)

// Run executes the venues command.
func (c *VenuesCmd) Run(deps *Dependencies) error {
	inv := racecal.VenueInventory(deps.Races)
	if c.Builtin {
		inv = deps.Tracks
	}

	venues, err := inv.Venues(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	if c.JSON {
		if venues == nil {
			venues = map[racecal.Region][]string{}
		}
		return writeJSON(deps.Stdout, venues)
	}

	if len(venues) == 0 {
		fmt.Fprintln(deps.Stdout, "No venues stored. Use --builtin to list the track table.")
		return nil
	}
	for _, r := range racecal.Regions() {
		if names := venues[r]; len(names) > 0 {
			fmt.Fprintf(deps.Stdout, "%s  %s\n", r, strings.Join(names, ", "))
		}
	}
	return nil
}
