package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netops-lab/loopctl/pkg/intent"
	"github.com/netops-lab/loopctl/pkg/reconcile"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "dist-rtr01", "apply")

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Device != "dist-rtr01" {
		t.Errorf("Device = %q, want %q", event.Device, "dist-rtr01")
	}
	if event.Operation != "apply" {
		t.Errorf("Operation = %q, want %q", event.Operation, "apply")
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_Chaining(t *testing.T) {
	plan := &reconcile.Plan{
		Device:   "dist-rtr01",
		ToCreate: []intent.Loopback{{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255"}},
		ToDelete: []reconcile.ObservedLoopback{{ID: 900, IPv4: "10.9.0.1", Netmask: "255.255.255.0"}},
	}
	result := &reconcile.Result{
		Device: "dist-rtr01",
		Actions: []reconcile.ActionResult{
			{Action: reconcile.ActionCreate, Device: "dist-rtr01", LoopbackID: 100, RollbackID: 10031},
		},
	}

	event := NewEvent("alice", "dist-rtr01", "apply").
		WithPlan(plan).
		WithResult(result).
		WithSuccess().
		WithDuration(time.Second).
		WithExecuteMode(true)

	if event.Creates != 1 || event.Updates != 0 || event.Deletes != 1 {
		t.Errorf("plan summary = %d/%d/%d", event.Creates, event.Updates, event.Deletes)
	}
	if len(event.Actions) != 1 {
		t.Errorf("expected 1 action, got %d", len(event.Actions))
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
	if !event.ExecuteMode || event.DryRun {
		t.Error("execute mode should clear DryRun")
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("alice", "r1", "apply").WithError(errors.New("boom"))
	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error != "boom" {
		t.Errorf("Error = %q", event.Error)
	}
}

func TestFileLogger_LogAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(path, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}
	defer logger.Close()

	events := []*Event{
		NewEvent("alice", "r1", "plan").WithSuccess(),
		NewEvent("alice", "r1", "apply").WithSuccess().WithExecuteMode(true),
		NewEvent("bob", "r2", "apply").WithError(errors.New("partial failure")),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log() error: %v", err)
		}
	}

	got, err := logger.Query(Filter{Device: "r1"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Query(Device=r1) returned %d events, want 2", len(got))
	}

	got, err = logger.Query(Filter{FailureOnly: true})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 1 || got[0].User != "bob" {
		t.Errorf("Query(FailureOnly) = %+v", got)
	}

	got, err = logger.Query(Filter{Operation: "apply", Limit: 1})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Limit=1 returned %d events", len(got))
	}
}

func TestFileLogger_QueryMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(path, RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	logger.Close()
	os.Remove(path)

	got, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query() on missing file error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d events, want 0", len(got))
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(path, RotationConfig{MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	for i := 0; i < 3; i++ {
		if err := logger.Log(NewEvent("alice", "r1", "plan")); err != nil {
			t.Fatalf("Log() error: %v", err)
		}
	}

	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Error("expected rotated audit files")
	}
}
