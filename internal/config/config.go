// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Provide New() initializer to build a Config with defaults.
//   - Durations are plain time.Duration values; in YAML and env they are
//     written in Go duration syntax ("90s", "1h").
//   - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/okian/tenderwatch/internal/domain/classify"
)

// DefaultAPIBaseURL is the Find a Tender OCDS release package endpoint.
const DefaultAPIBaseURL = "https://www.find-tender.service.gov.uk/api/1.0/ocdsReleasePackages"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the procurement API endpoint.
	APIBaseURL string `koanf:"api_base_url"`

	// LookbackDays bounds updatedFrom to now minus this many days.
	LookbackDays int `koanf:"lookback_days"`

	// PageSize is the limit query parameter sent per page.
	PageSize int `koanf:"page_size"`

	// MaxPages caps pagination per run.
	MaxPages int `koanf:"max_pages"`

	// HTTPTimeout bounds a single upstream request.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// CacheTTL is the age below which a snapshot is served without fetching.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// StaleAfter is the age above which a snapshot is flagged as stale.
	StaleAfter time.Duration `koanf:"stale_after"`

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
	DefaultRetryAfter time.Duration `koanf:"default_retry_after"`

	// PollInterval enables background refreshes when positive.
	PollInterval time.Duration `koanf:"poll_interval"`

	// CachePath is the sqlite file holding the snapshot and preferences.
	CachePath string `koanf:"cache_path"`

	// Keywords are matched as case-insensitive substrings.
	Keywords []string `koanf:"keywords"`

	// ShowAll disables keyword matching.
	ShowAll bool `koanf:"show_all"`

	// SoonDays is how many days ahead a deadline is flagged as closing soon.
	SoonDays int `koanf:"soon_days"`

	// DebugBufferSize is the number of log entries kept for /api/debug.
	DebugBufferSize int `koanf:"debug_buffer_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		APIBaseURL:        DefaultAPIBaseURL,
		LookbackDays:      30,
		PageSize:          100,
		MaxPages:          10,
		HTTPTimeout:       30 * time.Second,
		CacheTTL:          time.Hour,
		StaleAfter:        24 * time.Hour,
		DefaultRetryAfter: 60 * time.Second,
		PollInterval:      0,
		CachePath:         defaultCachePath(),
		Keywords:          append([]string(nil), classify.DefaultKeywords...),
		ShowAll:           false,
		SoonDays:          14,
		DebugBufferSize:   50,
	}
}

// defaultCachePath places the database under the XDG cache home.
func defaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "tenderwatch", "tenders.db")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.APIBaseURL) == "":
		return fmt.Errorf("%w: api_base_url must not be empty", ErrInvalidConfig)
	case c.LookbackDays <= 0:
		return fmt.Errorf("%w: lookback_days must be positive", ErrInvalidConfig)
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page_size must be positive", ErrInvalidConfig)
	case c.MaxPages <= 0:
		return fmt.Errorf("%w: max_pages must be positive", ErrInvalidConfig)
	case c.HTTPTimeout <= 0:
		return fmt.Errorf("%w: http_timeout must be positive", ErrInvalidConfig)
	case c.CacheTTL < 0 || c.StaleAfter < 0:
		return fmt.Errorf("%w: cache_ttl and stale_after must not be negative", ErrInvalidConfig)
	case c.DefaultRetryAfter <= 0:
		return fmt.Errorf("%w: default_retry_after must be positive", ErrInvalidConfig)
	case c.PollInterval < 0:
		return fmt.Errorf("%w: poll_interval must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.CachePath) == "":
		return fmt.Errorf("%w: cache_path must not be empty", ErrInvalidConfig)
	case !c.ShowAll && len(c.Keywords) == 0:
		return fmt.Errorf("%w: keywords must not be empty unless show_all is set", ErrInvalidConfig)
	case c.SoonDays <= 0:
		return fmt.Errorf("%w: soon_days must be positive", ErrInvalidConfig)
	case c.DebugBufferSize < 0:
		return fmt.Errorf("%w: debug_buffer_size must not be negative", ErrInvalidConfig)
	}
	return nil
}
