package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./deals.db" description:"Path to the SQLite database file"`

	// Application configuration
	AreasDir          string `long:"areas-dir" env:"AREAS_DIR" default:"./areas" description:"Directory containing area configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for refresh processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Catalog source configuration
	SourceBaseURL    string  `long:"source-base-url" env:"SOURCE_BASE_URL" default:"https://backflipp.wishabi.com/flipp" description:"Base URL of the flyer catalog source"`
	SourceRateLimit  float64 `long:"source-rate-limit" env:"SOURCE_RATE_LIMIT" default:"1" description:"Maximum upstream requests per second"`
	SourceTimeout    int     `long:"source-timeout" env:"SOURCE_TIMEOUT" default:"30" description:"Upstream request timeout in seconds"`
	SourceMaxRetries int     `long:"source-max-retries" env:"SOURCE_MAX_RETRIES" default:"3" description:"Maximum attempts per upstream request"`

	// Freshness and matching
	FreshnessWindow int     `long:"freshness-window" env:"FRESHNESS_WINDOW" default:"168" description:"Hours a cached deal stays fresh"`
	FailureCooldown int     `long:"failure-cooldown" env:"FAILURE_COOLDOWN" default:"300" description:"Seconds before a failed area refresh may be retried"`
	MatchThreshold  float64 `long:"match-threshold" env:"MATCH_THRESHOLD" default:"0.3" description:"Minimum token overlap ratio for product matching"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36" description:"User agent string for upstream requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/Toronto)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		AreasDir:          raw.AreasDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		SourceBaseURL:     raw.SourceBaseURL,
		SourceRateLimit:   raw.SourceRateLimit,
		SourceTimeout:     raw.SourceTimeout,
		SourceMaxRetries:  raw.SourceMaxRetries,
		FreshnessWindow:   raw.FreshnessWindow,
		FailureCooldown:   raw.FailureCooldown,
		MatchThreshold:    raw.MatchThreshold,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}

// FreshnessWindowDuration returns the freshness window as a duration.
func (c *Cfg) FreshnessWindowDuration() time.Duration {
	return time.Duration(c.FreshnessWindow) * time.Hour
}

// FailureCooldownDuration returns the failure cooldown as a duration.
func (c *Cfg) FailureCooldownDuration() time.Duration {
	return time.Duration(c.FailureCooldown) * time.Second
}
