// SPDX-License-Identifier: MIT

package guide

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesListDeduplicatesAcrossBuckets(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("kana") {
		case "a":
			// ids arrive as numbers or strings depending on the bucket.
			fmt.Fprint(w, `{"series":[
				{"id":101,"title":"Morning Jazz","url":"https://www.example/rs/ABC123/","radio_broadcast":"FM","schedule":"Mon 10:00"},
				{"id":"102","title":"Night Talk","url":"https://www.example/rs/XYZ789/","radio_broadcast":"R1,R2"}
			]}`)
		case "k":
			fmt.Fprint(w, `{"series":[
				{"id":"101","title":"Morning Jazz","url":"https://www.example/rs/ABC123/","radio_broadcast":"FM"},
				{"title":"No ID","url":"https://www.example/rs/NOID/","radio_broadcast":"FM"},
				{"id":103,"title":"","url":"https://www.example/rs/EMPTY/","radio_broadcast":"FM"}
			]}`)
		default:
			fmt.Fprint(w, `{"series":[]}`)
		}
	}))

	series, err := c.SeriesList(context.Background())
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, int64(101), series[0].ID)
	assert.Equal(t, []string{"FM"}, series[0].Broadcasts)
	assert.Equal(t, int64(102), series[1].ID)
	assert.Equal(t, []string{"R1", "R2"}, series[1].Broadcasts)
}

func TestSeriesListPropagatesBucketFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.SeriesList(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `series bucket "a"`)
}

func TestExtractSeriesKey(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"canonical path", "https://www.example/radio/rs/ABC123/", "ABC123"},
		{"lowercase key", "https://www.example/rs/abc123", "ABC123"},
		{"trailing segment fallback", "https://www.example/radio/series/WXYZ", "WXYZ"},
		{"empty path", "https://www.example", ""},
		{"unparsable", "://bad", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractSeriesKey(tc.url))
		})
	}
}

func TestResolveSeriesKeyDirect(t *testing.T) {
	c := NewClient(Options{})
	key := c.ResolveSeriesKey(context.Background(), "https://www.example/radio/rs/ABC123/")
	assert.Equal(t, "ABC123", key)
}

func TestResolveSeriesKeyFollowsRedirect(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/radio/series/short" {
			w.Header().Set("Location", "https://www.example/radio/rs/DEF456/")
			w.WriteHeader(http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	key := c.ResolveSeriesKey(context.Background(), srv.URL+"/radio/series/short")
	assert.Equal(t, "DEF456", key)
}

func TestResolveSeriesKeyRedirectProbeFallsBack(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Location header; the trailing path segment is the best guess.
		w.WriteHeader(http.StatusOK)
	}))

	key := c.ResolveSeriesKey(context.Background(), srv.URL+"/radio/series/GUESS")
	assert.Equal(t, "GUESS", key)
}
