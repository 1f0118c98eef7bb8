package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf)

	l.Info("token issued",
		String("username", "alice"),
		Int("attempt", 2),
		Int64("expires_at", 1700000000),
		Duration("ttl", 15*time.Minute),
		Error(errors.New("boom")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "token issued", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "alice", entry["username"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, float64(1700000000), entry["expires_at"])
	assert.Equal(t, "15m0s", entry["ttl"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(WarnLevel, &buf)

	l.Info("hidden")
	l.Warn("shown")
	assert.Len(t, decodeLines(t, &buf), 1)

	l.SetLevel(DebugLevel)
	l.Debug("now shown")
	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestLogger_WithSharesLevelAndAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(InfoLevel, &buf)
	child := Component(l, "sweeper")

	l.SetLevel(ErrorLevel)
	child.Info("dropped")
	child.Error("kept")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "sweeper", entries[0]["component"])
}

func TestLogger_TeesToAllWriters(t *testing.T) {
	var a, b bytes.Buffer
	l := New(InfoLevel, &a, &b)
	l.Info("hello")

	assert.Len(t, decodeLines(t, &a), 1)
	assert.Len(t, decodeLines(t, &b), 1)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"fatal":   FatalLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.With(String("a", "b")).Panic("ignored")
		l.Fatal("ignored")
	})
	assert.NoError(t, l.Sync())
}
