// SPDX-License-Identifier: MIT

// Package guide fetches and normalizes broadcast schedules, the stream
// catalog, and the series directory from the upstream radio guide.
package guide

import (
	"strings"
	"time"
)

// BroadcastEvent is one scheduled or aired instance of a series, normalized
// from the upstream guide response.
type BroadcastEvent struct {
	BroadcastEventID string    `json:"broadcastEventId"`
	Title            string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Start            time.Time `json:"startDate"`
	End              time.Time `json:"endDate"`
	ServiceID        string    `json:"serviceId"`
	AreaID           string    `json:"areaId"`

	ServiceName         string            `json:"serviceName,omitempty"`
	ServiceDisplayName  string            `json:"serviceDisplayName,omitempty"`
	Location            string            `json:"location,omitempty"`
	EventURL            string            `json:"eventUrl,omitempty"`
	EpisodeAPIURL       string            `json:"episodeApiUrl,omitempty"`
	EpisodeURL          string            `json:"episodeUrl,omitempty"`
	SeriesAPIURL        string            `json:"seriesApiUrl,omitempty"`
	SeriesURL           string            `json:"seriesUrl,omitempty"`
	RadioEpisodeID      string            `json:"radioEpisodeId,omitempty"`
	RadioSeriesID       string            `json:"radioSeriesId,omitempty"`
	Genres              []string          `json:"genres,omitempty"`
	DetailedDescription map[string]string `json:"detailedDescription,omitempty"`
	MusicList           []MusicItem       `json:"musicList,omitempty"`
}

// MusicItem describes one piece of music listed for a broadcast.
type MusicItem struct {
	Name     string        `json:"name,omitempty"`
	NameRuby string        `json:"nameruby,omitempty"`
	Lyricist string        `json:"lyricist,omitempty"`
	Composer string        `json:"composer,omitempty"`
	Arranger string        `json:"arranger,omitempty"`
	Location string        `json:"location,omitempty"`
	Provider string        `json:"provider,omitempty"`
	Label    string        `json:"label,omitempty"`
	Duration string        `json:"duration,omitempty"`
	Code     string        `json:"code,omitempty"`
	ByArtist []MusicArtist `json:"byArtist,omitempty"`
}

// MusicArtist is a performer or contributor attached to a music item.
type MusicArtist struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	Part string `json:"part,omitempty"`
}

// CatalogEntry maps one geographic area to its per-service stream URLs.
// The catalog indexes the same entry under both the canonical area key and
// the slug alias, so lookups succeed with either identifier.
type CatalogEntry struct {
	AreaKey    string            `json:"areaKey"`
	AreaSlug   string            `json:"areaSlug,omitempty"`
	AreaNameJP string            `json:"areaNameJp,omitempty"`
	StationID  string            `json:"stationId,omitempty"`
	Streams    map[string]string `json:"streams"`
}

// StreamURL resolves the playable URL for a service identifier, applying
// the service alias mapping. Returns "" when the service is not carried.
func (c *CatalogEntry) StreamURL(serviceID string) string {
	return c.Streams[ServiceKey(serviceID)]
}

// Series is one entry of the upstream series directory.
type Series struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Broadcasts   []string `json:"broadcasts"`
	URL          string   `json:"url"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	ScheduleText string   `json:"scheduleText,omitempty"`
	AreaName     string   `json:"areaName,omitempty"`
}

// ServiceKey normalizes a service identifier to a stream-catalog key.
// "r3" is an alias the guide uses for the FM service.
func ServiceKey(serviceID string) string {
	key := strings.ToLower(strings.TrimSpace(serviceID))
	if key == "r3" {
		key = "fm"
	}
	return key
}
