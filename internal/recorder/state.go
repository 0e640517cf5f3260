// SPDX-License-Identifier: MIT

package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/aircheckd/aircheck/internal/log"
	"github.com/google/renameio/v2"
)

const stateFileName = "state.json"

// writeStateFile records a progress breadcrumb inside a recording's
// directory. Existing fields are preserved so the file accumulates the
// lifecycle of the capture. Best effort: breadcrumbs never fail a
// recording.
func writeStateFile(recDir, state string, extra map[string]any) {
	path := filepath.Join(recDir, stateFileName)

	payload := map[string]any{}
	if raw, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(raw, &payload)
	}
	payload["state"] = state
	payload["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	for k, v := range extra {
		payload[k] = v
	}

	buf, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	if err := renameio.WriteFile(path, buf, 0o644); err != nil {
		logger := log.WithComponent("recorder")
		logger.Debug().Err(err).Str("path", path).Msg("state breadcrumb write failed")
	}
}
