package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestContextFieldsSurviveNesting(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithUserID(ctx, "user-9")
	log.Info(ctx, "hello")

	entry := decodeLastLine(t, buf)
	if entry["request_id"] != "req-123" || entry["user_id"] != "user-9" {
		t.Fatalf("context fields missing: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("service field missing: %v", entry)
	}
}

func TestErrorCarriesStackAndError(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})

	log.Error(context.Background(), "boom", errors.New("kaput"))

	entry := decodeLastLine(t, buf)
	if entry["error"] != "kaput" {
		t.Fatalf("expected error field, got %v", entry)
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatalf("expected stack on error line: %v", entry)
	}
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf, WarnStack: true})
	log.Warn(context.Background(), "careful")
	if _, ok := decodeLastLine(t, buf)["stack"]; !ok {
		t.Fatalf("expected stack when WarnStack is set")
	}

	buf.Reset()
	log = New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})
	log.Warn(context.Background(), "careful")
	if _, ok := decodeLastLine(t, buf)["stack"]; ok {
		t.Fatalf("stack should be absent when WarnStack is off")
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("empty value should default to info, got %v", lvl)
	}
	if lvl := ParseLevel("nonsense"); lvl != zerolog.InfoLevel {
		t.Fatalf("unknown value should default to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %v", lvl)
	}
}
