package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" ERROR ", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestLogWithLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	defer SetLevel(LevelInfo)

	Debug("hidden", "k", 1)
	assert.Empty(t, buf.String())

	Info("fetch done", "count", 3, "dangling")
	out := buf.String()
	assert.Contains(t, out, "fetch done")
	assert.Contains(t, out, "count=3")
	assert.NotContains(t, out, "dangling")

	buf.Reset()
	Error("fetch failed", errors.New("boom"), "url", "http://x")
	out = buf.String()
	assert.Contains(t, out, "level=error")
	assert.Contains(t, out, "err=boom")
}
