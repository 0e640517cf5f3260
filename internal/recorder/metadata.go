// SPDX-License-Identifier: MIT

package recorder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aircheckd/aircheck/internal/guide"
)

// detailedDescriptionTiers are the well-known keys of the guide's detailed
// description block, in descending length/preference order. epg80 and epg40
// are description tiers, epg200 the long form, epgInformation free comments.
var detailedDescriptionTiers = map[string]bool{
	"epg80":          true,
	"epg40":          true,
	"epg200":         true,
	"epgInformation": true,
}

// BuildRecordingTags derives the metadata-tag mapping embedded into a
// finished recording: title, best-available description tier, optional long
// description and comment, remaining detailed-description fields joined as
// lines, and a flattened music-track listing.
func BuildRecordingTags(ev *guide.BroadcastEvent) map[string]string {
	dd := ev.DetailedDescription
	description := firstNonEmpty(dd["epg80"], dd["epg40"], ev.Description)

	tags := map[string]string{
		"title":       firstNonEmpty(ev.Title, "Untitled"),
		"description": description,
	}
	if dd["epg200"] != "" {
		tags["long_description"] = dd["epg200"]
	}
	if dd["epgInformation"] != "" {
		tags["comment"] = dd["epgInformation"]
	}

	var remain []string
	for k, v := range dd {
		if !detailedDescriptionTiers[k] {
			remain = append(remain, fmt.Sprintf("%s: %s", k, v))
		}
	}
	if len(remain) > 0 {
		sort.Strings(remain)
		tags["detailed_description"] = strings.Join(remain, "\n")
	}

	var musicLines []string
	for _, m := range ev.MusicList {
		var artists []string
		for _, a := range m.ByArtist {
			artists = append(artists, fmt.Sprintf("%s(%s/%s)", a.Name, a.Role, a.Part))
		}
		musicLines = append(musicLines, fmt.Sprintf("%s | %s", m.Name, strings.Join(artists, "; ")))
	}
	if len(musicLines) > 0 {
		tags["music_list"] = strings.Join(musicLines, "\n")
	}
	return tags
}

// BuildEventMetadata derives the descriptive metadata stored on a
// single-event reservation.
func BuildEventMetadata(seriesID int64, seriesKey string, ev *guide.BroadcastEvent) map[string]string {
	return map[string]string{
		"series_id":                formatSeriesID(seriesID),
		"series_code":              seriesKey,
		"broadcast_event_id":       ev.BroadcastEventID,
		"radio_series_id":          ev.RadioSeriesID,
		"radio_episode_id":         ev.RadioEpisodeID,
		"program_url":              firstNonEmpty(ev.EpisodeURL, ev.SeriesURL),
		"broadcast_event_info_url": ev.EventURL,
		"episode_api_url":          ev.EpisodeAPIURL,
		"series_api_url":           ev.SeriesAPIURL,
	}
}

// BuildSeriesWatchMetadata derives the descriptive metadata stored on a
// series-watch reservation.
func BuildSeriesWatchMetadata(p *ReservationPayload) map[string]string {
	return map[string]string{
		"series_id":            formatSeriesID(p.SeriesID),
		"series_code":          p.SeriesKey,
		"series_title":         p.SeriesTitle,
		"series_area":          p.SeriesArea,
		"series_schedule":      p.SeriesSchedule,
		"program_url":          p.ProgramURL,
		"series_thumbnail_url": p.SeriesThumbnailURL,
	}
}

func formatSeriesID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
