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
	// API configuration
	APIBaseURL string `long:"api-base-url" env:"API_BASE_URL" default:"mock" description:"Base URL of the timeline API, or 'mock' for the built-in server"`
	APIToken   string `long:"api-token" env:"API_TOKEN" description:"Bearer token for the timeline API (optional)"`

	// Cache configuration
	CacheKind     string `long:"cache-kind" env:"CACHE_KIND" default:"sqlite" choice:"sqlite" choice:"redis" description:"Feed cache backend"`
	CachePath     string `long:"cache-path" env:"CACHE_PATH" default:"./feedcomb.db" description:"SQLite cache database path"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for the redis cache backend"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password (optional)"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`

	// Application configuration
	FeedsDir      string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	PageSize      int    `long:"page-size" env:"PAGE_SIZE" default:"20" description:"Posts requested per timeline page"`
	MaxPosts      int    `long:"max-posts" env:"MAX_POSTS" default:"400" description:"Maximum posts kept in a feed window"`
	MaxConcurrent int    `long:"max-concurrent" env:"MAX_CONCURRENT" default:"4" description:"Maximum concurrent API requests"`
	MinIntervalMs int    `long:"min-interval-ms" env:"MIN_INTERVAL_MS" default:"100" description:"Minimum milliseconds between API requests"`
	MaxRetries    int    `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Retry attempts for failed API requests"`
	MockPosts     int    `long:"mock-posts" env:"MOCK_POSTS" default:"200" description:"Synthetic posts served by the built-in mock server"`
	MockRateLimit int    `long:"mock-rate-limit" env:"MOCK_RATE_LIMIT" default:"0" description:"Make every Nth mock request fail with 429 (0 disables)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"FeedComb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
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
		APIBaseURL:    raw.APIBaseURL,
		APIToken:      raw.APIToken,
		CacheKind:     raw.CacheKind,
		CachePath:     raw.CachePath,
		RedisAddr:     raw.RedisAddr,
		RedisPassword: raw.RedisPassword,
		RedisDB:       raw.RedisDB,
		FeedsDir:      raw.FeedsDir,
		PageSize:      raw.PageSize,
		MaxPosts:      raw.MaxPosts,
		MaxConcurrent: raw.MaxConcurrent,
		MinIntervalMs: raw.MinIntervalMs,
		MaxRetries:    raw.MaxRetries,
		MockPosts:     raw.MockPosts,
		MockRateLimit: raw.MockRateLimit,
		UserAgent:     raw.UserAgent,
		Timezone:      raw.Timezone,
		Debug:         raw.Debug,
		Version:       GetVersion(),
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
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
