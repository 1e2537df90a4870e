package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	SetLevel(0)

	Get().Info(context.Background(), "artifact composed",
		String("artifact_id", "a-1"),
		Int("risk_score", 80),
		Bool("valid", true),
		Duration("took", time.Millisecond),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "artifact composed" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["artifact_id"] != "a-1" {
		t.Errorf("unexpected artifact_id: %v", rec["artifact_id"])
	}
	if src, _ := rec["source"].(string); !strings.Contains(src, "logger_test.go") {
		t.Errorf("expected caller source to point at the test file, got %q", src)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Warn(ctx, "shown", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "boom") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestLoggerNamedAndWith(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	SetLevel(0)

	Named("ledger").With(String("artifact_id", "a-9")).Info(context.Background(), "recorded")
	if !strings.Contains(buf.String(), `"ledger"`) {
		t.Errorf("expected group name in output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "a-9") {
		t.Errorf("expected bound field in output: %q", buf.String())
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInitWithWriterRejectsUnknownFormat(t *testing.T) {
	if err := InitWithWriter(&bytes.Buffer{}, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Error(context.Background(), "nothing")
}
