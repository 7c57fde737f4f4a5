package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("OPTIMIZE_IMAGES_TEST_VAR", "")
	if got := EnvOrDefault("OPTIMIZE_IMAGES_TEST_VAR", "fallback"); got != "fallback" {
		t.Errorf("EnvOrDefault() = %q, want fallback", got)
	}
	t.Setenv("OPTIMIZE_IMAGES_TEST_VAR", "set")
	if got := EnvOrDefault("OPTIMIZE_IMAGES_TEST_VAR", "fallback"); got != "set" {
		t.Errorf("EnvOrDefault() = %q, want set", got)
	}
}

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := NewStartupLogger("optimize-images").
		RunID("run-42").
		ConfigFile("config/image-optimization.yaml").
		Dir("input", "/site/images").
		Feature("dryRun", true).
		Config("formats", "webp,avif")
	s.event(logger.Info()).Msg("Run configuration resolved")

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid log line: %v\n%s", err, buf.String())
	}

	run, _ := doc["run"].(map[string]any)
	if run["name"] != "optimize-images" || run["runId"] != "run-42" {
		t.Errorf("run = %v", run)
	}
	if doc["configFile"] != "config/image-optimization.yaml" {
		t.Errorf("configFile = %v", doc["configFile"])
	}
	if dirs, _ := doc["dirs"].(map[string]any); dirs["input"] != "/site/images" {
		t.Errorf("dirs = %v", doc["dirs"])
	}
	if features, _ := doc["features"].(map[string]any); features["dryRun"] != true {
		t.Errorf("features = %v", doc["features"])
	}
	if cfg, _ := doc["config"].(map[string]any); cfg["formats"] != "webp,avif" {
		t.Errorf("config = %v", doc["config"])
	}
	if _, ok := doc["resolveDuration"]; ok {
		t.Error("resolveDuration logged without being set")
	}
}
