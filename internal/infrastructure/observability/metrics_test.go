package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/azikar24/WormaCeptor-sub003/internal/domain"
	"github.com/azikar24/WormaCeptor-sub003/internal/usecase"
)

var _ usecase.Recorder = (*Metrics)(nil)

func TestMetricsRecorder(t *testing.T) {
	m := NewMetrics()
	m.Captured(domain.StatusRequested)
	m.Captured(domain.StatusRequested)
	m.Captured(domain.StatusComplete)
	m.WriteFailed("insert")
	m.QueueDepth(3)
	m.ActivitySize(7)
	m.Purged("ok", 4)
	m.Purged("skipped", 0)

	if got := testutil.ToFloat64(m.CapturedTotal.WithLabelValues("requested")); got != 2 {
		t.Fatalf("requested: %v", got)
	}
	if got := testutil.ToFloat64(m.WriteFailuresTotal.WithLabelValues("insert")); got != 1 {
		t.Fatalf("write failures: %v", got)
	}
	if got := testutil.ToFloat64(m.WriteQueueDepth); got != 3 {
		t.Fatalf("queue depth: %v", got)
	}
	if got := testutil.ToFloat64(m.ActivityEntries); got != 7 {
		t.Fatalf("activity: %v", got)
	}
	if got := testutil.ToFloat64(m.DeletedTotal); got != 4 {
		t.Fatalf("deleted: %v", got)
	}
	if n := testutil.CollectAndCount(m.PurgesTotal); n != 2 {
		t.Fatalf("purge series: %d", n)
	}
	if got := testutil.ToFloat64(m.BuildInfo.WithLabelValues(Version, Commit)); got != 1 {
		t.Fatalf("build info: %v", got)
	}
	if _, err := m.Registry().Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestLoggerLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "WARN")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "shown" || line["service"] != "wormaceptor" || line["version"] != Version {
		t.Fatalf("unexpected line: %v", line)
	}

	if NewLoggerTo(&buf, "bogus").GetLevel().String() != "info" {
		t.Fatalf("unknown level should fall back to info")
	}
}

func TestBuildInfoString(t *testing.T) {
	b := BuildInfo{Version: "v1.0.0", Commit: "abc123", GoVersion: "go1.22.0"}
	if got := b.String(); got != "v1.0.0 (abc123, go1.22.0)" {
		t.Fatalf("got %q", got)
	}
	b.Date = "2026-01-02T03:04:05Z"
	if got := b.String(); got != "v1.0.0 (abc123, 2026-01-02T03:04:05Z, go1.22.0)" {
		t.Fatalf("got %q", got)
	}
	if Build().Name != "wormaceptor" {
		t.Fatalf("unexpected name")
	}
}
