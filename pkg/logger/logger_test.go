package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), "output: %s", buf.String())
	return line
}

func TestNew_JSONLine(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Service: "avg-api", Out: &buf})

	log.Info().Str("shop_id", "s1").Msg("verification initialized")

	line := decodeLine(t, &buf)
	assert.Equal(t, "verification initialized", line["message"])
	assert.Equal(t, "s1", line["shop_id"])
	assert.Equal(t, "avg-api", line["service"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "time")
	assert.Contains(t, line, "caller")
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{" WARNING ", false, false, true},
		{"error", false, false, false},
		{"verbose", false, true, true},
		{"", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Options{Level: tt.level, Out: &buf})

			log.Debug().Msg("d")
			assert.Equal(t, tt.debugSeen, buf.Len() > 0)
			buf.Reset()
			log.Info().Msg("i")
			assert.Equal(t, tt.infoSeen, buf.Len() > 0)
			buf.Reset()
			log.Warn().Msg("w")
			assert.Equal(t, tt.warnSeen, buf.Len() > 0)
		})
	}
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Pretty: true, Out: &buf})
	log.Info().Msg("ready")

	assert.Contains(t, buf.String(), "ready")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Options{Out: &buf}), "reconciler")
	log.Info().Msg("sweep started")

	assert.Equal(t, "reconciler", decodeLine(t, &buf)["component"])
}

func TestMaskIdentifier(t *testing.T) {
	tests := map[string]string{
		"alice@example.com": "a****@example.com",
		"  bob@shop.cz ":    "b**@shop.cz",
		"750101/1234":       "7**********",
		"x":                 "x*",
		"":                  "",
		"Žofie":             "Ž****",
	}
	for in, want := range tests {
		assert.Equal(t, want, MaskIdentifier(in), in)
	}
}
