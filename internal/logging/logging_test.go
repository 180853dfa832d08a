package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("pipeline: run finished", slog.Int("items", 3))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if rec["msg"] != "pipeline: run finished" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["items"] != float64(3) {
		t.Errorf("items = %v", rec["items"])
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelInfo, FormatText)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", slog.String("k", "v"))
	if !strings.Contains(buf.String(), "msg=hello k=v") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNew_AutoWithoutTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelInfo, FormatAuto)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("output = %q, want JSON", buf.String())
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelWarn, FormatJSON)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, slog.LevelInfo, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
