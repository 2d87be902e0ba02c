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

func TestNewJSONLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "WARNING", "json")
	l.Info("dropped")
	l.Warn("kept", "index", "english")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "english", rec["index"])
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(" debug "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestFromContextTagsRequestID(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	SetupTo(&buf, "info", "text")
	ctx := WithRequestID(context.Background(), "abc123")
	FromContext(ctx).Info("search completed")
	FromContext(context.Background()).Info("no id")

	assert.Equal(t, "abc123", RequestID(ctx))
	assert.Contains(t, buf.String(), "request_id=abc123")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("request_id")))
}
