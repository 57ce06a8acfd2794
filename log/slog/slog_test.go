package slog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/unkn0wn-root/reccache"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Debug("dropped", nil)
	l.Info("bulk insert submitted", reccache.Fields{"records": 3})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("want exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "bulk insert submitted" || line["level"] != "INFO" {
		t.Fatalf("line = %#v", line)
	}
	if line["records"] != float64(3) {
		t.Fatalf("records = %#v", line["records"])
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "loud"); err == nil {
		t.Fatal("expected error")
	}
}
