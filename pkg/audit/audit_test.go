package audit

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestEventNew(t *testing.T) {
	event := NewEvent("alice", "instance.add", true)

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Operation != "instance.add" {
		t.Errorf("Operation = %q, want %q", event.Operation, "instance.add")
	}
	if !event.Online {
		t.Error("Online should be true")
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEventChaining(t *testing.T) {
	event := NewEvent("alice", "instance.add", true).
		WithEntity("instance", "inst-uuid-1").
		WithECID("ec-42").
		WithSuccess().
		WithDuration(time.Second)

	if event.Entity != "instance" {
		t.Errorf("Entity = %q", event.Entity)
	}
	if event.EntityID != "inst-uuid-1" {
		t.Errorf("EntityID = %q", event.EntityID)
	}
	if event.ECID != "ec-42" {
		t.Errorf("ECID = %q", event.ECID)
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEventWithError(t *testing.T) {
	event := NewEvent("alice", "instance.add", true).WithError(errors.New("test error"))

	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error != "test error" {
		t.Errorf("Error = %q", event.Error)
	}

	event2 := NewEvent("alice", "instance.add", true).WithError(nil)
	if event2.Success {
		t.Error("Success should be false even with nil error")
	}
	if event2.Error != "" {
		t.Errorf("Error should be empty with nil error, got %q", event2.Error)
	}
}

func TestFileLoggerBasic(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	event := NewEvent("alice", "instance.add", true).
		WithEntity("instance", "inst-uuid-1").
		WithSuccess()

	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Query returned %d events, want 1", len(events))
	}
	if events[0].EntityID != "inst-uuid-1" {
		t.Errorf("EntityID = %q, want inst-uuid-1", events[0].EntityID)
	}
}

func TestFileLoggerQueryFilters(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	mustLog := func(e *Event) {
		t.Helper()
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}
	mustLog(NewEvent("alice", "instance.add", true).WithEntity("instance", "i1").WithSuccess())
	mustLog(NewEvent("bob", "node.remove", true).WithEntity("node", "n1").WithError(errors.New("boom")))

	events, err := logger.Query(Filter{User: "bob"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 || events[0].User != "bob" {
		t.Fatalf("Query(User=bob) = %+v, want exactly bob's event", events)
	}

	failures, err := logger.Query(Filter{FailureOnly: true})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(failures) != 1 || failures[0].Success {
		t.Fatalf("Query(FailureOnly) = %+v, want exactly the failed event", failures)
	}
}

func TestFileLoggerRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 3; i++ {
		if err := logger.Log(NewEvent("alice", "instance.add", true).WithSuccess()); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	matches, err := filepath.Glob(logPath + ".*")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("expected at least one rotated backup file")
	}
}

func TestDefaultLoggerNoOp(t *testing.T) {
	if err := Log(NewEvent("alice", "instance.add", true)); err != nil {
		t.Errorf("Log with no default logger configured should not error: %v", err)
	}
	events, err := Query(Filter{})
	if err != nil {
		t.Errorf("Query with no default logger configured should not error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Query with no default logger should return no events, got %d", len(events))
	}
}

func TestDefaultLoggerSetAndUse(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	SetDefaultLogger(logger)
	defer SetDefaultLogger(nil)

	if err := Log(NewEvent("alice", "instance.add", true).WithSuccess()); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	events, err := Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Query returned %d events, want 1", len(events))
	}
}

func TestFileLoggerQueryNonExistentFile(t *testing.T) {
	logger := &FileLogger{path: filepath.Join(t.TempDir(), "missing.log")}
	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query on missing file should not error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Query on missing file should return no events, got %d", len(events))
	}
}
