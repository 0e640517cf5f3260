// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aircheckd/aircheck/internal/recorder"
	"github.com/go-chi/chi/v5"
)

// safeRecordingID rejects identifiers that could escape the recordings
// directory when joined into a path.
func safeRecordingID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (s *Server) handleRecordingsList(w http.ResponseWriter, _ *http.Request) {
	rs, err := s.recordings.Recordings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rs == nil {
		rs = []recorder.Recording{}
	}
	s.writeJSON(w, http.StatusOK, rs)
}

func (s *Server) recordingByID(id string) (*recorder.Recording, error) {
	rs, err := s.recordings.Recordings()
	if err != nil {
		return nil, err
	}
	for i := range rs {
		if rs[i].ID == id {
			return &rs[i], nil
		}
	}
	return nil, nil
}

// handleRecordingPatchMetadata merges the posted tag values into a
// recording's metadata mapping. Values are stringified.
func (s *Server) handleRecordingPatchMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordingID")

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found := false
	err := s.recordings.UpdateRecordings(func(rs []recorder.Recording) ([]recorder.Recording, error) {
		for i := range rs {
			if rs[i].ID != id {
				continue
			}
			found = true
			if rs[i].Metadata == nil {
				rs[i].Metadata = map[string]string{}
			}
			for k, v := range patch {
				rs[i].Metadata[k] = fmt.Sprint(v)
			}
		}
		return rs, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "recording not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleRecordingDownload converts the stored capture into a tagged m4a
// container and serves it as an attachment.
func (s *Server) handleRecordingDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordingID")
	if !safeRecordingID(id) {
		http.Error(w, "invalid recording id", http.StatusBadRequest)
		return
	}
	rec, err := s.recordingByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "recording not found", http.StatusNotFound)
		return
	}

	recDir := filepath.Join(s.recordingsDir, rec.ID)
	manifest := filepath.Join(recDir, recorder.ManifestName)
	out := filepath.Join(recDir, "download.m4a")
	if err := s.remuxer.Remux(r.Context(), manifest, out, rec.Metadata); err != nil {
		s.logger.Error().Err(err).Str("recording_id", id).Msg("download conversion failed")
		http.Error(w, "conversion failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.ID+".m4a"))
	http.ServeFile(w, r, out)
}

// handleRecordingDelete removes the recording's directory and its record.
func (s *Server) handleRecordingDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordingID")
	if !safeRecordingID(id) {
		http.Error(w, "invalid recording id", http.StatusBadRequest)
		return
	}

	if err := os.RemoveAll(filepath.Join(s.recordingsDir, id)); err != nil {
		s.logger.Warn().Err(err).Str("recording_id", id).Msg("recording directory removal failed")
	}
	err := s.recordings.UpdateRecordings(func(rs []recorder.Recording) ([]recorder.Recording, error) {
		out := rs[:0]
		for _, rec := range rs {
			if rec.ID == id {
				continue
			}
			out = append(out, rec)
		}
		return out, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
