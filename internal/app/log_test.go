package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line %q", line)
		out = append(out, m)
	}
	return out
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	a := newZerologAdapter(zerolog.New(&buf), "service")

	a.Info("alerts fetched", "aoi_id", "a1", "count", 3)
	a.Warn("alert fetch failed", "error", errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "alerts fetched", lines[0]["message"])
	assert.Equal(t, "service", lines[0]["component"])
	assert.Equal(t, "a1", lines[0]["aoi_id"])
	assert.Equal(t, 3.0, lines[0]["count"])

	assert.Equal(t, "warn", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestZerologAdapter_OddArgs(t *testing.T) {
	var buf bytes.Buffer
	a := newZerologAdapter(zerolog.New(&buf), "test")

	a.Error("odd", "key", "value", "dangling")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "value", lines[0]["key"])
	assert.Equal(t, "dangling", lines[0]["!BADKEY"])
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	a := newZerologAdapter(zerolog.New(&buf).Level(zerolog.WarnLevel), "test")

	a.Debug("hidden")
	a.Info("hidden")
	a.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, f, err := newLogger(dir, "20250601T120000Z", "info", &console)
	require.NoError(t, err)
	defer f.Close()

	logger.Info().Str("aoi_id", "a1").Msg("created")

	data, err := os.ReadFile(filepath.Join(dir, "aoi.log"))
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "20250601T120000Z", line["op_id"])
	assert.Equal(t, "created", line["message"])
	assert.Contains(t, console.String(), "created")
}
