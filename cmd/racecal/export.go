package main

import (
	"fmt"
	"path/filepath"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/fs"
)

// Run executes the export command. The previous export in Dir is only
// replaced once every meeting has been written.
func (c *ExportCmd) Run(deps *Dependencies) error {
	filter := racecal.RaceFilter{From: &deps.Today}
	if c.From != "" {
		d, err := parseDate(c.From)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
			return err
		}
		filter.From = &d
	}
	if c.To != "" {
		d, err := parseDate(c.To)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
			return err
		}
		filter.To = &d
	}

	races, err := deps.Races.FindRaces(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", racecal.ErrorMessage(err))
		return err
	}

	dir := filepath.Clean(c.Dir)
	exporter := fs.NewExporter(filepath.Dir(dir), filepath.Base(dir))

	n, err := exporter.SaveRaces(deps.Ctx, races)
	if err == nil {
		err = exporter.Commit()
	}
	if err != nil {
		_ = exporter.Abort()
		fmt.Fprintf(deps.Stderr, "error exporting: %v\n", err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Exported %d meetings (%d races) to %s\n", n, len(races), exporter.Dir())
	return nil
}
