// SPDX-License-Identifier: MIT

package guide

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type eventsPayload struct {
	Error *struct {
		StatusCode int `json:"statuscode"`
	} `json:"error"`
	Result []eventWire `json:"result"`
}

type eventWire struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	URL         string `json:"url"`

	PublishedOn *struct {
		Name                 string `json:"name"`
		BroadcastDisplayName string `json:"broadcastDisplayName"`
	} `json:"publishedOn"`
	Location *struct {
		Name string `json:"name"`
	} `json:"location"`
	About *struct {
		URL          string `json:"url"`
		Canonical    string `json:"canonical"`
		PartOfSeries *struct {
			URL       string `json:"url"`
			Canonical string `json:"canonical"`
		} `json:"partOfSeries"`
	} `json:"about"`

	IdentifierGroup struct {
		BroadcastEventID string `json:"broadcastEventId"`
		ServiceID        string `json:"serviceId"`
		AreaID           string `json:"areaId"`
		RadioEpisodeID   string `json:"radioEpisodeId"`
		RadioSeriesID    string `json:"radioSeriesId"`
		Genre            []struct {
			Name1 string `json:"name1"`
			Name2 string `json:"name2"`
		} `json:"genre"`
	} `json:"identifierGroup"`

	// Loosely typed upstream blocks: values are cleaned field by field.
	DetailedDescription map[string]any `json:"detailedDescription"`
	Misc                *struct {
		MusicList []map[string]any `json:"musicList"`
	} `json:"misc"`
}

// Events fetches the scheduled broadcast events for a series key within the
// configured lookahead window. A not-found response (HTTP 404 or an error
// block carrying statuscode 404) means the series has no schedule and yields
// an empty slice. Malformed entries are skipped individually.
func (c *Client) Events(ctx context.Context, seriesKey string) ([]BroadcastEvent, error) {
	to := c.now().Add(c.lookahead).Format("2006-01-02T15:04")
	url := fmt.Sprintf("%s/%s.json?offset=0&size=10&to=%s&status=scheduled", c.guideBase, seriesKey, to)

	status, body, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return []BroadcastEvent{}, nil
	}

	var payload eventsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode events for %s: %w", seriesKey, err)
	}
	if payload.Error != nil && payload.Error.StatusCode == http.StatusNotFound {
		return []BroadcastEvent{}, nil
	}

	events := make([]BroadcastEvent, 0, len(payload.Result))
	for _, w := range payload.Result {
		ev, ok := c.normalizeEvent(w)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	c.logger.Debug().Str("series_key", seriesKey).Int("events", len(events)).Msg("fetched broadcast events")
	return events, nil
}

func (c *Client) normalizeEvent(w eventWire) (BroadcastEvent, bool) {
	ig := w.IdentifierGroup
	if w.StartDate == "" || ig.ServiceID == "" || ig.AreaID == "" {
		return BroadcastEvent{}, false
	}
	start, err := parseGuideTime(w.StartDate)
	if err != nil {
		return BroadcastEvent{}, false
	}
	end := start.Add(c.defaultDuration)
	if w.EndDate != "" {
		if parsed, err := parseGuideTime(w.EndDate); err == nil {
			end = parsed
		}
	}
	if !end.After(start) {
		return BroadcastEvent{}, false
	}

	title := w.Name
	if title == "" {
		title = "Untitled"
	}

	ev := BroadcastEvent{
		BroadcastEventID:    ig.BroadcastEventID,
		Title:               title,
		Description:         w.Description,
		Start:               start,
		End:                 end,
		ServiceID:           ig.ServiceID,
		AreaID:              ig.AreaID,
		EventURL:            w.URL,
		RadioEpisodeID:      ig.RadioEpisodeID,
		RadioSeriesID:       ig.RadioSeriesID,
		DetailedDescription: cleanStringMap(w.DetailedDescription),
	}
	if w.PublishedOn != nil {
		ev.ServiceName = w.PublishedOn.Name
		ev.ServiceDisplayName = w.PublishedOn.BroadcastDisplayName
	}
	if w.Location != nil {
		ev.Location = w.Location.Name
	}
	if w.About != nil {
		ev.EpisodeAPIURL = w.About.URL
		ev.EpisodeURL = w.About.Canonical
		if w.About.PartOfSeries != nil {
			ev.SeriesAPIURL = w.About.PartOfSeries.URL
			ev.SeriesURL = w.About.PartOfSeries.Canonical
		}
	}
	for _, g := range ig.Genre {
		if name := firstNonEmpty(g.Name2, g.Name1); name != "" {
			ev.Genres = append(ev.Genres, name)
		}
	}
	if w.Misc != nil {
		ev.MusicList = parseMusicList(w.Misc.MusicList)
	}
	return ev, true
}

func parseMusicList(raw []map[string]any) []MusicItem {
	var items []MusicItem
	for _, entry := range raw {
		item := MusicItem{
			Name:     cleanString(entry["name"]),
			NameRuby: cleanString(entry["nameruby"]),
			Lyricist: cleanString(entry["lyricist"]),
			Composer: cleanString(entry["composer"]),
			Arranger: cleanString(entry["arranger"]),
			Location: cleanString(entry["location"]),
			Provider: cleanString(entry["provider"]),
			Label:    cleanString(entry["label"]),
			Duration: cleanString(entry["duration"]),
			Code:     cleanString(entry["code"]),
		}
		if artists, ok := entry["byArtist"].([]any); ok {
			for _, a := range artists {
				m, ok := a.(map[string]any)
				if !ok {
					continue
				}
				name := cleanString(m["name"])
				if name == "" {
					continue
				}
				item.ByArtist = append(item.ByArtist, MusicArtist{
					Name: name,
					Role: cleanString(m["role"]),
					Part: cleanString(m["part"]),
				})
			}
		}
		items = append(items, item)
	}
	return items
}

func cleanString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func cleanStringMap(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s := cleanString(v); s != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
