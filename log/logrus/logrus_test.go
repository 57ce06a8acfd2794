package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unkn0wn-root/reccache"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := LogrusLogger{E: logrus.NewEntry(base)}

	l.Error("detached task failed", reccache.Fields{"task": "bulk_insert"})

	e := hook.LastEntry()
	if e == nil {
		t.Fatal("no entry")
	}
	if e.Level != logrus.ErrorLevel || e.Message != "detached task failed" {
		t.Fatalf("entry = %v %q", e.Level, e.Message)
	}
	if e.Data["task"] != "bulk_insert" {
		t.Fatalf("data = %#v", e.Data)
	}
}

func TestNewParsesLevel(t *testing.T) {
	l, err := New("warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.E.Logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level = %v", l.E.Logger.GetLevel())
	}
	if _, err := New("loud"); err == nil {
		t.Fatal("expected error")
	}
}
