// SPDX-License-Identifier: MIT

// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds every knob the daemon reads at startup. Values come from
// AIRCHECK_* environment variables with defaults suitable for container use.
type Config struct {
	// HTTP
	ListenAddr   string
	APIRateLimit int // requests per client IP per minute

	// Filesystem
	DataDir       string
	RecordingsDir string

	// Capture
	FFmpegPath string

	// Scheduling
	TickInterval         time.Duration
	SeriesExpandInterval time.Duration
	EventLookahead       time.Duration
	DefaultEventDuration time.Duration
	SeriesCacheTTL       time.Duration

	// Upstream guide endpoints. Overridable for tests and mirrors.
	GuideAPIBase    string
	SeriesAPIBase   string
	StreamConfigURL string

	// Logging
	LogLevel string
}

// FromEnv builds a Config from the environment.
func FromEnv() Config {
	return Config{
		ListenAddr:           ParseString("AIRCHECK_LISTEN", ":8080"),
		APIRateLimit:         ParseInt("AIRCHECK_RATE_LIMIT", 300),
		DataDir:              ParseString("AIRCHECK_DATA", "data"),
		RecordingsDir:        ParseString("AIRCHECK_RECORDINGS", "recordings"),
		FFmpegPath:           ParseString("AIRCHECK_FFMPEG", "ffmpeg"),
		TickInterval:         ParseDuration("AIRCHECK_TICK_INTERVAL", 30*time.Second),
		SeriesExpandInterval: ParseDuration("AIRCHECK_EXPAND_INTERVAL", time.Hour),
		EventLookahead:       ParseDuration("AIRCHECK_EVENT_LOOKAHEAD", 7*24*time.Hour),
		DefaultEventDuration: ParseDuration("AIRCHECK_DEFAULT_DURATION", 30*time.Minute),
		SeriesCacheTTL:       ParseDuration("AIRCHECK_SERIES_CACHE_TTL", time.Hour),
		GuideAPIBase:         ParseString("AIRCHECK_GUIDE_API", "https://api.nhk.jp/r7/f/broadcastevent/rs"),
		SeriesAPIBase:        ParseString("AIRCHECK_SERIES_API", "https://www.nhk.or.jp/radio-api/app/v1/web/series"),
		StreamConfigURL:      ParseString("AIRCHECK_STREAM_CONFIG", "https://www.nhk.or.jp/radio/config/config_web.xml"),
		LogLevel:             ParseString("AIRCHECK_LOG_LEVEL", "info"),
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.SeriesExpandInterval <= 0 {
		return fmt.Errorf("series expand interval must be positive, got %s", c.SeriesExpandInterval)
	}
	if c.DefaultEventDuration <= 0 {
		return fmt.Errorf("default event duration must be positive, got %s", c.DefaultEventDuration)
	}
	if c.APIRateLimit <= 0 {
		return fmt.Errorf("api rate limit must be positive, got %d", c.APIRateLimit)
	}
	if c.DataDir == "" || c.RecordingsDir == "" {
		return fmt.Errorf("data and recordings directories must be set")
	}
	return nil
}

// EnsureDirs creates the data and recordings directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.RecordingsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
