package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
		"warning": zerolog.WarnLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvLogTimestamp, "nope")
	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level %v", cfg.Level)
	}
	if !cfg.JSON {
		t.Fatalf("expected json output")
	}
	if !cfg.Timestamp {
		t.Fatalf("invalid bool must keep the default")
	}
}

func TestApplyJSONWritesStructuredLines(t *testing.T) {
	var out bytes.Buffer
	logger := Apply(Config{Level: zerolog.InfoLevel, JSON: true, Out: &out})
	logger.Info().Str("cmd", "AFCD_GET_INFO").Msg("dispatch")
	logger.Debug().Msg("hidden")
	if !strings.Contains(out.String(), `"cmd":"AFCD_GET_INFO"`) {
		t.Fatalf("unexpected output %q", out.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Fatalf("debug line must be filtered at info level")
	}
}
