package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds settings read from racecal.yaml, RACECAL_* environment
// variables and a .env file in the working directory.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	Source    SourceConfig    `mapstructure:"source"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Discover  DiscoverConfig  `mapstructure:"discover"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Tracks    TracksConfig    `mapstructure:"tracks"`
	Log       LogConfig       `mapstructure:"log"`
	Timezone  string          `mapstructure:"timezone"`
}

// DBConfig selects the race store.
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	URL    string `mapstructure:"url"`
}

// SourceConfig locates the listing and program pages.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// ProviderConfig configures the form provider client.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig tunes the page fetcher.
type HTTPConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	Retries        int           `mapstructure:"retries"`
	RPS            float64       `mapstructure:"rps"`
}

// DiscoverConfig tunes listing walks and probing.
type DiscoverConfig struct {
	WalkDeadline     time.Duration `mapstructure:"walk_deadline"`
	ProbeConcurrency int           `mapstructure:"probe_concurrency"`
}

// HarvestConfig tunes program harvesting.
type HarvestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// ReconcileConfig tunes reconciliation. The token lists and
// abbreviations extend the canonicalizer's built-in tables.
type ReconcileConfig struct {
	Concurrency   int               `mapstructure:"concurrency"`
	SponsorTokens []string          `mapstructure:"sponsor_tokens"`
	GenericTokens []string          `mapstructure:"generic_tokens"`
	Abbreviations map[string]string `mapstructure:"abbreviations"`
}

// TracksConfig points at a track table replacing the built-in one.
type TracksConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration. When path is empty racecal.yaml is
// looked up in the working directory and $HOME/.racecal, and a missing
// file is not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("racecal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.racecal")
	}

	v.SetEnvPrefix("RACECAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("provider.api_key", "RACECAL_PROVIDER_API_KEY", "PF_API_KEY"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", defaultDBPath())
	v.SetDefault("db.url", "")
	v.SetDefault("source.base_url", "https://www.racingaustralia.horse")
	v.SetDefault("provider.base_url", "https://api.puntingform.com.au/v2/form/meetingslist")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("http.connect_timeout", 6*time.Second)
	v.SetDefault("http.read_timeout", 12*time.Second)
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.rps", 4.0)
	v.SetDefault("discover.walk_deadline", 75*time.Second)
	v.SetDefault("discover.probe_concurrency", 12)
	v.SetDefault("harvest.concurrency", 8)
	v.SetDefault("reconcile.concurrency", 4)
	v.SetDefault("reconcile.sponsor_tokens", []string{})
	v.SetDefault("reconcile.generic_tokens", []string{})
	v.SetDefault("reconcile.abbreviations", map[string]string{})
	v.SetDefault("tracks.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("timezone", "Australia/Melbourne")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
