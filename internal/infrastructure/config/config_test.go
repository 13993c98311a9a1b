package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.App.Addr != ":9091" {
		t.Fatalf("addr: %q", cfg.App.Addr)
	}
	if cfg.Capture.MaxContentLength != 250000 {
		t.Fatalf("max content length: %d", cfg.Capture.MaxContentLength)
	}
	if cfg.Buffer.Capacity != 10 {
		t.Fatalf("capacity: %d", cfg.Buffer.Capacity)
	}
	if cfg.RetentionPeriod() != domain.RetentionOneWeek {
		t.Fatalf("period: %q", cfg.Retention.Period)
	}
	if got := cfg.Cooldowns(); got != domain.DefaultCooldowns() {
		t.Fatalf("cooldowns: %+v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestDefaultDecodesEveryKey(t *testing.T) {
	cfg := Default()
	if cfg.Retention.CheckInterval != 5*time.Minute || cfg.Retention.CooldownDefault != 2*time.Hour {
		t.Fatalf("durations: %+v", cfg.Retention)
	}
	if len(cfg.Capture.RedactHeaders) != 4 || cfg.Capture.RedactHeaders[0] != "Authorization" {
		t.Fatalf("redact headers: %v", cfg.Capture.RedactHeaders)
	}
	if !cfg.Capture.Decompress || !cfg.Capture.AsyncWrites || cfg.Capture.QueueSize != 1024 {
		t.Fatalf("capture: %+v", cfg.Capture)
	}
}

func TestDecodeReportsBadValues(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("buffer.capacity", "lots")
	if _, err := decode(v); err == nil || !strings.Contains(err.Error(), "decode config") {
		t.Fatalf("expected a decode error, got %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := `
app:
  addr: ":7000"
storage:
  driver: memory
capture:
  redact_headers: [X-Api-Key]
retention:
  period: 1h
  cooldown_hourly: 10m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORMACEPTOR_APP_LOG_LEVEL", "debug")
	t.Setenv("WORMACEPTOR_BUFFER_CAPACITY", "25")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Addr != ":7000" || cfg.Storage.Driver != "memory" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.App.LogLevel != "debug" || cfg.Buffer.Capacity != 25 {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if len(cfg.Capture.RedactHeaders) != 1 || cfg.Capture.RedactHeaders[0] != "X-Api-Key" {
		t.Fatalf("redact headers: %v", cfg.Capture.RedactHeaders)
	}
	if cfg.RetentionPeriod() != domain.RetentionOneHour || cfg.Retention.CooldownHourly != 10*time.Minute {
		t.Fatalf("retention: %+v", cfg.Retention)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("WORMACEPTOR_STORAGE_DRIVER", "redis")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing explicit file")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("app: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "storage.driver") {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestYAML(t *testing.T) {
	out, err := Default().YAML()
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{"driver: sqlite", "cooldown_hourly: 30m0s", "max_content_length: 250000"} {
		if !strings.Contains(s, want) {
			t.Fatalf("yaml missing %q:\n%s", want, s)
		}
	}
}
