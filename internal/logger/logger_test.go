package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "json", Level: slog.LevelInfo})

	log.Info("thread saved", "thread_id", "thr-123")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"msg":"thread saved"`)
	assert.Contains(t, out, `"thread_id":"thr-123"`)
}

func TestNew_ProductionDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production"})

	log.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty", Level: slog.LevelWarn})

	log.Debug("hidden")
	log.Info("also hidden")
	assert.Empty(t, buf.String())

	log.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestPrettyHandler_Attrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: "pretty"})

	log.With("collection_id", "coll-1").Info("collection created")

	out := buf.String()
	assert.Contains(t, out, "collection created")
	assert.Contains(t, out, "collection_id=coll-1")
}
