package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/crawl"
	"github.com/equinegpt/racecal/goquery"
	rchttp "github.com/equinegpt/racecal/http"
	"github.com/equinegpt/racecal/postgres"
	"github.com/equinegpt/racecal/program"
	"github.com/equinegpt/racecal/reconcile"
	rcslog "github.com/equinegpt/racecal/slog"
	"github.com/equinegpt/racecal/sqlite"
	"github.com/equinegpt/racecal/yaml"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Config is loaded from file and environment when nil.
	Config *Config

	// DB is the open store, closed by Close.
	DB io.Closer

	// Services for end-to-end testing. Zero values are built from Config.
	Races    racecal.RaceService
	Fetcher  racecal.Fetcher
	Provider racecal.ProviderClient
	Now      func() time.Time
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{Now: time.Now}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("racecal"),
		kong.Description("Discover, harvest and reconcile Australian race meetings."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.UsageOnError(),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'racecal --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg := m.Config
	if cfg == nil {
		if cfg, err = LoadConfig(cli.Config); err != nil {
			return err
		}
	}
	cli.Globals.apply(cfg)

	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return racecal.Errorf(racecal.EINVALID, "unknown timezone %q", cfg.Timezone)
	}

	now := m.Now
	if now == nil {
		now = time.Now
	}
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
		Config: cfg,
		Today:  racecal.Day(now().In(loc)),
	}

	if m.Races == nil {
		if err := m.openStore(ctx, cfg.DB); err != nil {
			return err
		}
		defer m.Close()
	}
	deps.Races = rcslog.NewLoggingRaceService(m.Races, logger)

	tracks := yaml.Default()
	if cfg.Tracks.File != "" {
		if tracks, err = yaml.Load(cfg.Tracks.File); err != nil {
			return err
		}
	}
	deps.Tracks = tracks

	fetcher := m.Fetcher
	if fetcher == nil {
		fetcher = rchttp.NewFetcher(
			rchttp.WithConnectTimeout(cfg.HTTP.ConnectTimeout),
			rchttp.WithReadTimeout(cfg.HTTP.ReadTimeout),
			rchttp.WithMaxAttempts(cfg.HTTP.Retries),
			rchttp.WithLimiter(crawl.NewDomainLimiter(cfg.HTTP.RPS)),
		)
	}
	fetcher = rcslog.NewLoggingFetcher(fetcher, logger)
	defer fetcher.Close()

	deps.Harvester = rcslog.NewLoggingHarvester(program.NewHarvester(fetcher,
		program.WithBaseURL(cfg.Source.BaseURL),
		program.WithTrackGrader(tracks),
	), logger)

	deps.Discoverer = &crawl.Discovery{
		Walker: crawl.NewWalker(fetcher, goquery.NewKeyExtractor(), goquery.NewActionFinder(),
			crawl.WithDeadline(cfg.Discover.WalkDeadline),
			crawl.WithLogger(logger),
		),
		Prober: crawl.NewProber(fetcher,
			crawl.WithBaseURL(cfg.Source.BaseURL),
			crawl.WithProbeConcurrency(cfg.Discover.ProbeConcurrency),
			crawl.WithNegativeCache(),
			crawl.WithProbeLogger(logger),
		),
		Inventories: []racecal.VenueInventory{tracks, deps.Races},
		Listings:    crawl.Listings(cfg.Source.BaseURL),
		Logger:      logger,
	}

	provider := m.Provider
	if provider == nil && cfg.Provider.APIKey != "" {
		provider = rchttp.NewMeetingsClient(cfg.Provider.APIKey, rchttp.WithBaseURL(cfg.Provider.BaseURL))
	}
	if provider != nil {
		engine := reconcile.NewEngine(rcslog.NewLoggingProviderClient(provider, logger),
			reconcile.WithAliases(tracks),
			reconcile.WithCanonicalizer(newCanonicalizer(cfg.Reconcile)),
		)
		deps.Reconciler = rcslog.NewLoggingReconciler(engine, logger)
	}

	deps.Crawler = &crawl.Crawler{
		Discoverer:           deps.Discoverer,
		Harvester:            deps.Harvester,
		Reconciler:           deps.Reconciler,
		Races:                deps.Races,
		Concurrency:          cfg.Harvest.Concurrency,
		ReconcileConcurrency: cfg.Reconcile.Concurrency,
		Logger:               logger,
	}

	return kongCtx.Run(deps)
}

func (m *Main) openStore(ctx context.Context, cfg DBConfig) error {
	switch cfg.Driver {
	case "sqlite":
		db := sqlite.NewDB(cfg.Path)
		if err := db.Open(); err != nil {
			return fmt.Errorf("failed to open database at %q: %w", cfg.Path, err)
		}
		m.DB = db
		m.Races = sqlite.NewRaceService(db)
	case "postgres":
		if cfg.URL == "" {
			return racecal.Errorf(racecal.EINVALID, "db.url required for the postgres driver")
		}
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return err
		}
		m.DB = db
		m.Races = postgres.NewRaceService(db.Pool())
	default:
		return racecal.Errorf(racecal.EINVALID, "unknown db driver %q", cfg.Driver)
	}
	return nil
}

// newCanonicalizer extends the default venue tables with configured tokens.
func newCanonicalizer(cfg ReconcileConfig) *reconcile.Canonicalizer {
	return reconcile.NewCanonicalizer(
		reconcile.WithSponsorTokens(cfg.SponsorTokens...),
		reconcile.WithGenericTokens(cfg.GenericTokens...),
		reconcile.WithAbbreviations(cfg.Abbreviations),
	)
}

func newLogger(w io.Writer, cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, racecal.Errorf(racecal.EINVALID, "unknown log level %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, racecal.Errorf(racecal.EINVALID, "unknown log format %q", cfg.Format)
}

func defaultDBPath() string {
	if path := os.Getenv("RACECAL_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "racecal.db"
	}
	dir := filepath.Join(home, ".racecal")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "racecal.db")
}
