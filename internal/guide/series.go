// SPDX-License-Identifier: MIT

package guide

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// seriesKanaBuckets is the fixed partition key-space of the series
// directory; one request per bucket enumerates the full catalog.
var seriesKanaBuckets = []string{"a", "k", "s", "t", "n", "h", "m", "y", "r", "w"}

var seriesKeyPattern = regexp.MustCompile(`(?i)/rs/([A-Z0-9]+)/?`)

// SeriesList enumerates all known series by iterating the kana buckets,
// de-duplicating by series id across buckets.
func (c *Client) SeriesList(ctx context.Context) ([]Series, error) {
	var out []Series
	seen := make(map[int64]bool)
	for _, kana := range seriesKanaBuckets {
		headers := map[string]string{
			"accept":           "application/json, text/javascript, */*; q=0.01",
			"x-requested-with": "XMLHttpRequest",
			"referer":          fmt.Sprintf("https://www.nhk.or.jp/radio/programs/index.html?kana=%s", kana),
		}
		_, body, err := c.get(ctx, fmt.Sprintf("%s?kana=%s", c.seriesBase, kana), headers)
		if err != nil {
			return nil, fmt.Errorf("series bucket %q: %w", kana, err)
		}

		// The directory payload is loosely typed (ids arrive as strings or
		// numbers), so entries are coerced field by field.
		var payload struct {
			Series []map[string]any `json:"series"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode series bucket %q: %w", kana, err)
		}

		for _, item := range payload.Series {
			s, ok := normalizeSeries(item)
			if !ok || seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	c.logger.Debug().Int("series", len(out)).Msg("fetched series directory")
	return out, nil
}

func normalizeSeries(item map[string]any) (Series, bool) {
	id, ok := coerceID(item["id"])
	if !ok {
		return Series{}, false
	}
	title := cleanString(item["title"])
	seriesURL := cleanString(item["url"])
	broadcastRaw := coerceString(item["radio_broadcast"])
	if title == "" || seriesURL == "" || broadcastRaw == "" {
		return Series{}, false
	}
	var broadcasts []string
	for _, b := range strings.Split(broadcastRaw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			broadcasts = append(broadcasts, b)
		}
	}
	return Series{
		ID:           id,
		Title:        title,
		Broadcasts:   broadcasts,
		URL:          seriesURL,
		ThumbnailURL: cleanString(item["thumbnail_url"]),
		ScheduleText: cleanString(item["schedule"]),
		AreaName:     cleanString(item["area"]),
	}, true
}

func coerceID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// ExtractSeriesKey pulls the series key out of a series page URL path.
func ExtractSeriesKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if m := seriesKeyPattern.FindStringSubmatch(u.Path); m != nil {
		return strings.ToUpper(m[1])
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// ResolveSeriesKey resolves a series page URL to its series key. URLs that
// do not carry the key directly are resolved through one HEAD redirect.
func (c *Client) ResolveSeriesKey(ctx context.Context, rawURL string) string {
	direct := ExtractSeriesKey(rawURL)
	if u, err := url.Parse(rawURL); err == nil && seriesKeyPattern.MatchString(u.Path) {
		return direct
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return direct
	}
	client := *c.http
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	res, err := client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", rawURL).Msg("series key redirect probe failed")
		return direct
	}
	defer res.Body.Close()

	location := strings.TrimSpace(res.Header.Get("Location"))
	if location == "" {
		return direct
	}
	if redirected := ExtractSeriesKey(location); redirected != "" {
		return redirected
	}
	return direct
}
