package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestInfoWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: zerolog.InfoLevel, Output: &buf})

	l.Info("pairing started", "code", "ABC123", "attempt", 1)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v (%s)", err, buf.String())
	}
	if decoded["message"] != "pairing started" {
		t.Fatalf("expected message field, got %+v", decoded)
	}
	if decoded["code"] != "ABC123" {
		t.Fatalf("expected code=ABC123, got %+v", decoded)
	}
}

func TestErrorIncludesErrField(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: zerolog.InfoLevel, Output: &buf})

	l.Error("sync failed", errors.New("boom"), "peer", "deviceA")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if decoded["error"] != "boom" {
		t.Fatalf("expected error field, got %+v", decoded)
	}
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: zerolog.WarnLevel, Output: &buf})

	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected Info to be filtered at Warn level, got %q", buf.String())
	}

	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatalf("expected Warn to pass through")
	}
}

func TestNopDiscardsEverything(t *testing.T) {
	l := NewNop()
	l.Info("anything")
	l.Error("anything", errors.New("x"))
}

func TestOddKeyValuePairsLogsTrailingUnderExtra(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: zerolog.InfoLevel, Output: &buf})

	l.Info("odd args", "onlykey")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if decoded["extra"] != "onlykey" {
		t.Fatalf("expected trailing unpaired value under extra, got %+v", decoded)
	}
}
