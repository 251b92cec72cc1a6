package logs

import (
	"errors"
	"testing"
)

func TestLogger(t *testing.T) {
	logger := NewLogger()
	logger.Debug("one")
	logger.Info("two")
	logger.Warn("three")

	if logger.HasErrors() {
		t.Fatal("expected no errors yet")
	}

	logger.Error("four", errors.New("boom"))

	logs := logger.Logs()
	if len(logs) != 4 {
		t.Fatalf("expected 4 logs, got %d", len(logs))
	}
	want := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i, log := range logs {
		if log.Level != want[i] {
			t.Errorf("log %d: expected level %v, got %v", i, want[i], log.Level)
		}
	}
	if logs[3].Message != "four" {
		t.Errorf("expected message 'four', got %q", logs[3].Message)
	}
	if !logger.HasErrors() {
		t.Error("expected HasErrors after an error entry")
	}
	if errs := logger.Errors(); len(errs) != 1 || errs[0] != "four" {
		t.Errorf("expected Errors to be [four], got %v", errs)
	}
}

func TestFormat(t *testing.T) {
	got := Format([]*Log{
		{Message: "Running protoc", Level: LevelDebug},
		{Message: "Compilation failed", Level: LevelError},
	})
	want := "debug: Running protoc\nerror: Compilation failed\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
	if Format(nil) != "" {
		t.Error("expected empty output for no entries")
	}
}

func TestLevelString(t *testing.T) {
	tests := map[Level]string{
		LevelDebug: "debug",
		LevelInfo:  "info",
		LevelWarn:  "warn",
		LevelError: "error",
		Level(9):   "Level(9)",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", int(level), got, want)
		}
	}
}
