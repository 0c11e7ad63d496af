package main

import (
	"fmt"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/crawl"
)

// Run executes the discover command.
func (c *DiscoverCmd) Run(deps *Dependencies) error {
	w := racecal.NewWindow(deps.Today, c.Days, c.IncludePast)

	keys, err := deps.Discoverer.Discover(deps.Ctx, w)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	if c.JSON {
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = k.String()
		}
		return writeJSON(deps.Stdout, out)
	}

	for _, k := range keys {
		fmt.Fprintln(deps.Stdout, k.String())
	}
	fmt.Fprintf(deps.Stderr, "%d meetings in %s %s\n", len(keys), w, crawl.FormatKeyCounts(keys))

	return nil
}
