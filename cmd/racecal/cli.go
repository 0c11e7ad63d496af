package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/crawl"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	Config *Config

	// Today is the current civil date in the configured timezone.
	Today time.Time

	Races      racecal.RaceService
	Tracks     racecal.VenueInventory
	Discoverer racecal.Discoverer
	Harvester  racecal.Harvester
	Reconciler racecal.Reconciler
	Crawler    *crawl.Crawler
}

// Globals are flags accepted by every command. Set flags override the
// loaded configuration.
type Globals struct {
	Config    string `help:"Config file (default racecal.yaml in . or ~/.racecal)"`
	DB        string `help:"SQLite path or postgres:// URL"`
	LogLevel  string `help:"Log level (debug, info, warn, error)"`
	LogFormat string `help:"Log format (text, json)"`
	Verbose   bool   `short:"v" help:"Shorthand for --log-level=debug"`
}

func (g *Globals) apply(cfg *Config) {
	switch {
	case strings.HasPrefix(g.DB, "postgres://"), strings.HasPrefix(g.DB, "postgresql://"):
		cfg.DB.Driver = "postgres"
		cfg.DB.URL = g.DB
	case g.DB != "":
		cfg.DB.Driver = "sqlite"
		cfg.DB.Path = g.DB
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.Verbose {
		cfg.Log.Level = "debug"
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Globals

	Discover  DiscoverCmd  `cmd:"" help:"List meeting keys in a date window"`
	Harvest   HarvestCmd   `cmd:"" help:"Harvest race programs for meeting keys or program URLs"`
	Reconcile ReconcileCmd `cmd:"" help:"Match stored venues for a date with provider meetings"`
	Run       RunCmd       `cmd:"" help:"Discover, harvest, reconcile and store a date window"`
	Races     RacesCmd     `cmd:"" help:"List stored races"`
	Venues    VenuesCmd    `cmd:"" help:"List known venues per region"`
	Export    ExportCmd    `cmd:"" help:"Write stored races as one JSON file per meeting"`
}

// DiscoverCmd is the "discover" subcommand.
type DiscoverCmd struct {
	Days        int  `short:"d" default:"14" help:"Days ahead of today to cover"`
	IncludePast int  `default:"0" help:"Days before today to cover"`
	JSON        bool `help:"Print keys as a JSON array"`
}

// HarvestCmd is the "harvest" subcommand.
type HarvestCmd struct {
	Targets []string `arg:"" help:"Meeting keys (2025Sep20,VIC,Flemington) or program URLs"`
	Force   bool     `short:"f" help:"Bypass intermediary caches"`
	Store   bool     `short:"s" help:"Store harvested races, replacing each meeting"`
	JSON    bool     `help:"Print records as JSON"`
}

// ReconcileCmd is the "reconcile" subcommand.
type ReconcileCmd struct {
	Date  string `help:"Race date YYYY-MM-DD (default today)"`
	Apply bool   `help:"Write matched provider ids to stored races"`
	JSON  bool   `help:"Print the reconciliation as JSON"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	Days          int  `short:"d" default:"30" help:"Days ahead of today to cover"`
	IncludePast   int  `default:"2" help:"Days before today to cover"`
	Force         bool `default:"true" negatable:"" help:"Bypass intermediary caches when fetching programs"`
	SkipReconcile bool `help:"Store races without provider ids"`
	NoPurge       bool `help:"Keep races dated before today"`
	Concurrency   int  `short:"c" help:"Concurrent harvest limit (default from config)"`
	JSON          bool `help:"Print the run summary as JSON"`
}

// RacesCmd is the "races" subcommand.
type RacesCmd struct {
	From              string `help:"First date YYYY-MM-DD"`
	To                string `help:"Last date YYYY-MM-DD"`
	Region            string `short:"r" help:"Region (VIC, NSW, ...)"`
	Venue             string `help:"Venue name"`
	MissingProviderID bool   `help:"Only races without a provider id"`
	Limit             int    `short:"n" default:"0" help:"Maximum races to print"`
	Offset            int    `default:"0" help:"Races to skip"`
	JSON              bool   `help:"Print races as JSON"`
}

// VenuesCmd is the "venues" subcommand.
type VenuesCmd struct {
	Builtin bool `help:"Show the built-in track table instead of stored venues"`
	JSON    bool `help:"Print venues as JSON"`
}

// ExportCmd is the "export" subcommand.
type ExportCmd struct {
	Dir  string `arg:"" help:"Export directory, replaced atomically"`
	From string `help:"First date YYYY-MM-DD (default today)"`
	To   string `help:"Last date YYYY-MM-DD"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, racecal.Errorf(racecal.EINVALID, "invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
