package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FormatFollowsEnvironment(t *testing.T) {
	tests := []struct {
		env      string
		format   string
		wantJSON bool
	}{
		{"production", "", true},
		{"development", "", false},
		{"staging", "", false},
		{"development", FormatJSON, true},
		{"production", FormatPretty, false},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Writer: &buf, Environment: tt.env, Format: tt.format, Level: slog.LevelInfo})
			l.Info("bucket created", "bucket_id", "bkt-1")

			var decoded map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &decoded) == nil
			assert.Equal(t, tt.wantJSON, isJSON)
			assert.Contains(t, buf.String(), "bkt-1")
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Format: FormatPretty, Level: slog.LevelWarn})

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("shown warn")
	l.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "ERR")
}

func TestPrettyHandler_Line(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)

	r := slog.NewRecord(time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC), slog.LevelInfo, "cache cleared", 0)
	r.AddAttrs(
		slog.String("user_id", "u1"),
		slog.Int("keys", 4),
		slog.String("query", "buy milk"),
		slog.Duration("took", 1500*time.Millisecond),
	)
	require.NoError(t, h.Handle(t.Context(), r))

	out := buf.String()
	assert.Contains(t, out, "09:30:15")
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "cache cleared")
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "keys=4")
	assert.Contains(t, out, `query="buy milk"`)
	assert.Contains(t, out, "took=1.5s")
	assert.Equal(t, byte('\n'), out[len(out)-1])
}

func TestPrettyHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewPrettyHandler(&buf, nil))

	l.With("backend", "sqlite").
		WithGroup("op").
		Info("store call",
			slog.String("name", "DeleteBucket"),
			slog.Group("stats", slog.Int("notes", 3), slog.Int("shares", 1)),
			slog.Group("empty"),
		)

	out := buf.String()
	assert.Contains(t, out, "backend=sqlite")
	assert.Contains(t, out, "op.name=DeleteBucket")
	assert.Contains(t, out, "op.stats.notes=3")
	assert.Contains(t, out, "op.stats.shares=1")
	assert.NotContains(t, out, "empty")
}

func TestPrettyHandler_WithAttrsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewPrettyHandler(&buf, nil))

	base.With("request_id", "r1").Info("first")
	base.Info("second")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "request_id=r1")
	assert.NotContains(t, string(lines[1]), "request_id")
}

func TestPrettyHandler_Source(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Format: FormatPretty, AddSource: true})
	l.Info("with source")
	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Writer: &buf, Format: FormatJSON})

	l.WithError(errors.New("disk full")).
		WithFields(map[string]any{"backend": "docstore"}).
		Component("cache").
		Warn("write failed")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "disk full", decoded["error"])
	assert.Equal(t, "docstore", decoded["backend"])
	assert.Equal(t, "cache", decoded["component"])

	assert.Same(t, l, l.WithError(nil))
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(t.Context(), slog.LevelError))
}
