package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"pathbridge/internal/config"
)

func TestNew_ReleaseBuildWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}

	logger := newWithWriter(&buf, cfg, "1.2.3", "bridge")
	logger.Info("hello", "station", "JSQ")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	for k, want := range map[string]string{"msg": "hello", "app": "bridge", "version": "1.2.3", "env": "prod", "station": "JSQ"} {
		if rec[k] != want {
			t.Errorf("%s = %v, want %q", k, rec[k], want)
		}
	}
}

func TestNew_DevBuildUsesTint(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}

	logger := newWithWriter(&buf, cfg, "dev", "bridge")
	logger.Info("hello")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("dev output should be text, got %q", out)
	}
	if !strings.Contains(out, "hello") || !strings.Contains(out, "app=bridge") {
		t.Errorf("output = %q, want message and app attribute", out)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}

	logger := newWithWriter(&buf, cfg, "1.0.0", "bridge")
	logger.Info("dropped")

	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}
}
