// SPDX-License-Identifier: MIT

package guide

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type catalogDataXML struct {
	AreaJP  string `xml:"areajp"`
	Area    string `xml:"area"`
	AreaKey string `xml:"areakey"`
	APIKey  string `xml:"apikey"`
	R1HLS   string `xml:"r1hls"`
	R2HLS   string `xml:"r2hls"`
	FMHLS   string `xml:"fmhls"`
}

// StreamCatalog fetches the area/stream configuration and returns a map
// keyed by both canonical area key and slug alias. Both keys reference the
// same entry, so either identifier resolves identical stream URLs.
func (c *Client) StreamCatalog(ctx context.Context) (map[string]*CatalogEntry, error) {
	status, body, err := c.get(ctx, c.streamConfigURL, nil)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("stream config returned status %d", status)
	}
	return parseStreamCatalog(body)
}

// parseStreamCatalog walks the document for <data> nodes at any depth; the
// upstream wraps them in varying container elements.
func parseStreamCatalog(body []byte) (map[string]*CatalogEntry, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	out := make(map[string]*CatalogEntry)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse stream config: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "data" {
			continue
		}
		var raw catalogDataXML
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return nil, fmt.Errorf("parse stream config data node: %w", err)
		}

		streams := map[string]string{}
		for key, url := range map[string]string{
			"r1": strings.TrimSpace(raw.R1HLS),
			"r2": strings.TrimSpace(raw.R2HLS),
			"fm": strings.TrimSpace(raw.FMHLS),
		} {
			if url != "" {
				streams[key] = url
			}
		}

		areaKey := strings.TrimSpace(raw.AreaKey)
		if areaKey == "" || len(streams) == 0 {
			continue
		}
		entry := &CatalogEntry{
			AreaKey:    areaKey,
			AreaSlug:   strings.TrimSpace(raw.Area),
			AreaNameJP: strings.TrimSpace(raw.AreaJP),
			StationID:  strings.TrimSpace(raw.APIKey),
			Streams:    streams,
		}
		out[areaKey] = entry
		if entry.AreaSlug != "" {
			if _, exists := out[entry.AreaSlug]; !exists {
				out[entry.AreaSlug] = entry
			}
		}
	}
	return out, nil
}
