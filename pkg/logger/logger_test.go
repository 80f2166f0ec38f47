package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	SetupWriter(&buf, "debug", "json")
	return &buf
}

func TestForRecordTypeNamesLogger(t *testing.T) {
	buf := captureJSON(t)
	ForRecordType("item").Warn("hello")
	ForRecordType("").Info("default")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "items_logger", first["logger"])
	assert.Equal(t, "WARN", first["level"])
	assert.Equal(t, "documents_logger", second["logger"])
}

func TestFromContextAddsLegacyID(t *testing.T) {
	buf := captureJSON(t)
	ctx := WithLegacyID(context.Background(), "2654497")
	FromContext(ctx).Info("processing")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "2654497", line["legacy_recid"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
