// SPDX-License-Identifier: MIT

package guide

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aircheckd/aircheck/internal/log"
	"github.com/rs/zerolog"
)

// Options configures a Client. Zero values fall back to production
// endpoints and defaults.
type Options struct {
	GuideAPIBase    string
	SeriesAPIBase   string
	StreamConfigURL string

	Lookahead       time.Duration // event query horizon, default 7 days
	DefaultDuration time.Duration // fallback for events without an end time

	HTTPClient *http.Client
}

// Client talks to the upstream guide service. All methods are safe for
// concurrent use.
type Client struct {
	guideBase       string
	seriesBase      string
	streamConfigURL string
	lookahead       time.Duration
	defaultDuration time.Duration
	http            *http.Client
	logger          zerolog.Logger
	now             func() time.Time
}

// backoffSchedule is the wait applied before retry attempts 2 and 3.
var backoffSchedule = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}

// NewClient creates a guide client.
func NewClient(opts Options) *Client {
	c := &Client{
		guideBase:       opts.GuideAPIBase,
		seriesBase:      opts.SeriesAPIBase,
		streamConfigURL: opts.StreamConfigURL,
		lookahead:       opts.Lookahead,
		defaultDuration: opts.DefaultDuration,
		http:            opts.HTTPClient,
		logger:          log.WithComponent("guide"),
		now:             time.Now,
	}
	if c.guideBase == "" {
		c.guideBase = "https://api.nhk.jp/r7/f/broadcastevent/rs"
	}
	if c.seriesBase == "" {
		c.seriesBase = "https://www.nhk.or.jp/radio-api/app/v1/web/series"
	}
	if c.streamConfigURL == "" {
		c.streamConfigURL = "https://www.nhk.or.jp/radio/config/config_web.xml"
	}
	if c.lookahead <= 0 {
		c.lookahead = 7 * 24 * time.Hour
	}
	if c.defaultDuration <= 0 {
		c.defaultDuration = 30 * time.Minute
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// get performs a GET with up to three attempts. Transport errors and 5xx
// responses are retried after the fixed backoff schedule; the last error is
// returned once attempts are exhausted. Non-5xx responses are returned to
// the caller together with the full body.
func (c *Client) get(ctx context.Context, url string, headers map[string]string) (int, []byte, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		res, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Debug().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("guide request failed")
			continue
		}
		body, err := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if res.StatusCode >= 500 {
			lastErr = fmt.Errorf("guide returned status %d", res.StatusCode)
			c.logger.Debug().Int("status", res.StatusCode).Str("url", url).Int("attempt", attempt+1).Msg("guide server error")
			continue
		}
		return res.StatusCode, body, nil
	}
	return 0, nil, fmt.Errorf("guide request to %s failed after 3 attempts: %w", url, lastErr)
}

// parseGuideTime accepts the timestamp shapes the guide is known to emit.
// Timestamps without a zone are interpreted as UTC.
func parseGuideTime(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
