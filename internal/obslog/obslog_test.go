package obslog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelInformational)

	l.Warn("idle timeout", Str("address", "127.0.0.1:1"), Int("session", 7))

	out := buf.String()
	if !strings.Contains(out, "idle timeout") {
		t.Fatalf("want message in output, got %q", out)
	}
	if !strings.Contains(out, "127.0.0.1:1") {
		t.Fatalf("want address field in output, got %q", out)
	}
	if !strings.Contains(out, "7") {
		t.Fatalf("want session field in output, got %q", out)
	}
}

func TestLoggerBelowLevelIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelError)

	l.Warn("should not appear")

	if buf.Len() != 0 {
		t.Fatalf("want no output below configured level, got %q", buf.String())
	}
}

func TestDefaultIsMemoized(t *testing.T) {
	if Default() != Default() {
		t.Fatal("want Default() to return the same logger instance across calls")
	}
}

func TestErrFieldAttachesErrorMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelInformational)

	l.Error("boom", Err(errBoom{}))

	if !strings.Contains(buf.String(), "kaboom") {
		t.Fatalf("want error text in output, got %q", buf.String())
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "kaboom" }
