// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureAndComponentFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "aircheck-test", Version: "test"})

	logger := WithComponent("unit")
	logger.Info().Str("event", "test.fired").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "aircheck-test", entry["service"])
	assert.Equal(t, "unit", entry["component"])
	assert.Equal(t, "test.fired", entry["event"])
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestConfigureIsIdempotent(t *testing.T) {
	var first, second bytes.Buffer
	Configure(Config{Output: &first, Service: "one"})
	Configure(Config{Output: &second, Service: "two"})

	base := Base()
	base.Info().Msg("routed")
	assert.Empty(t, second.Bytes(), "second Configure must not take effect")
}
