// SPDX-License-Identifier: MIT

package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readState(t *testing.T, dir string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, stateFileName))
	require.NoError(t, err)
	var state map[string]any
	require.NoError(t, json.Unmarshal(raw, &state))
	return state
}

func TestWriteStateFileAccumulatesFields(t *testing.T) {
	dir := t.TempDir()

	writeStateFile(dir, "prepared", map[string]any{"stream_url": "https://streams.example/fm.m3u8"})
	writeStateFile(dir, "capture_started", nil)
	writeStateFile(dir, "capture_finished", map[string]any{"exit_code": 0})

	state := readState(t, dir)
	assert.Equal(t, "capture_finished", state["state"])
	// Earlier breadcrumb fields survive later writes.
	assert.Equal(t, "https://streams.example/fm.m3u8", state["stream_url"])
	assert.Equal(t, float64(0), state["exit_code"])
	assert.Contains(t, state, "updated_at")
}

func TestWriteStateFileMissingDirIsBestEffort(t *testing.T) {
	// Must not panic or create anything outside the given directory.
	writeStateFile(filepath.Join(t.TempDir(), "does-not-exist"), "prepared", nil)
}
