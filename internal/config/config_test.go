package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: "9090"
redis:
  addr: "localhost:6379"
  ttl: "2h"
  channel: "practice:events"
practice:
  ttl: "30m"
  max_question_count: 20
  sweep_interval: "1m"
questions:
  file: "questions.yaml"
  cache_ttl: "5m"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Channel != "practice:events" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Practice.MaxQuestionCount != 20 || cfg.Questions.File != "questions.yaml" {
		t.Fatalf("unexpected practice config %+v", cfg.Practice)
	}
	if got := TTLDuration(cfg.Practice.TTL, time.Hour); got != 30*time.Minute {
		t.Fatalf("expected 30m session ttl, got %v", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"negative max": {"practice:\n  max_question_count: -1\n", "max_question_count"},
		"bad duration": {"practice:\n  ttl: \"soon\"\n", "practice.ttl"},
		"zero ttl":     {"practice:\n  ttl: \"0s\"\n", "practice.ttl must be positive"},
		"negative ttl": {"practice:\n  ttl: \"-5m\"\n", "practice.ttl must be positive"},
		"bad yaml":     {"server: [", "yaml"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty value, got %v", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid value, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
