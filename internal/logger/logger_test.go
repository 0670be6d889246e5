package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "info", true)
	log.Debug("hidden")
	log.Info("order placed", "order_number", "A1B2C3D4")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "order placed", line["msg"])
	assert.Equal(t, "A1B2C3D4", line["order_number"])
}
