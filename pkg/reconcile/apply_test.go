package reconcile

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/netops-lab/loopctl/pkg/intent"
	"github.com/netops-lab/loopctl/pkg/util"
)

// fakeClient records calls and fails on request for specific loopbacks.
type fakeClient struct {
	calls      []string
	failOn     map[int]error
	rollbackID int
}

func (f *fakeClient) record(action string, device string, id int, dryRun bool) (int, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s:%s:%d:dry=%v", action, device, id, dryRun))
	if err, ok := f.failOn[id]; ok {
		return 0, err
	}
	if dryRun {
		return 0, nil
	}
	f.rollbackID++
	return f.rollbackID, nil
}

func (f *fakeClient) CreateLoopback(_ context.Context, device string, lb intent.Loopback, dryRun bool) (int, error) {
	return f.record("create", device, lb.ID, dryRun)
}

func (f *fakeClient) UpdateLoopback(_ context.Context, device string, lb intent.Loopback, dryRun bool) (int, error) {
	return f.record("update", device, lb.ID, dryRun)
}

func (f *fakeClient) DeleteLoopback(_ context.Context, device string, id int, dryRun bool) (int, error) {
	return f.record("delete", device, id, dryRun)
}

func testPlan() *Plan {
	return &Plan{
		Device: "r1",
		ToCreate: []intent.Loopback{
			{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255"},
		},
		ToUpdate: []intent.Loopback{
			{ID: 200, IPv4: "10.2.0.1", Netmask: "255.255.255.255"},
		},
		ToDelete: []ObservedLoopback{
			{ID: 300, IPv4: "10.3.0.1", Netmask: "255.255.255.0"},
		},
	}
}

func TestApply_OrderAndOutcomes(t *testing.T) {
	client := &fakeClient{}
	applier := NewApplier(client)

	result, err := applier.Apply(context.Background(), testPlan(), Options{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	wantCalls := []string{
		"create:r1:100:dry=false",
		"update:r1:200:dry=false",
		"delete:r1:300:dry=false",
	}
	if !reflect.DeepEqual(client.calls, wantCalls) {
		t.Errorf("calls = %v, want %v", client.calls, wantCalls)
	}

	if result.Succeeded() != 3 || result.Failed() != 0 {
		t.Errorf("succeeded=%d failed=%d, want 3/0", result.Succeeded(), result.Failed())
	}

	// Rollback ids come back newest first.
	if got, want := result.RollbackIDs(), []int{3, 2, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("RollbackIDs() = %v, want %v", got, want)
	}
}

func TestApply_DryRunParity(t *testing.T) {
	dry := &fakeClient{}
	if _, err := NewApplier(dry).Apply(context.Background(), testPlan(), Options{DryRun: true}); err != nil {
		t.Fatalf("dry-run Apply() error: %v", err)
	}

	real := &fakeClient{}
	if _, err := NewApplier(real).Apply(context.Background(), testPlan(), Options{}); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	// Same action list, only the dry-run flag differs.
	if len(dry.calls) != len(real.calls) {
		t.Fatalf("dry-run issued %d actions, real issued %d", len(dry.calls), len(real.calls))
	}
	for _, c := range dry.calls {
		if !strings.HasSuffix(c, "dry=true") {
			t.Errorf("dry-run call %q did not set dry-run flag", c)
		}
	}
}

func TestApply_PerActionFailures(t *testing.T) {
	boom := fmt.Errorf("503 service unavailable")
	client := &fakeClient{failOn: map[int]error{200: boom}}

	result, err := NewApplier(client).Apply(context.Background(), testPlan(), Options{})
	if err != nil {
		t.Fatalf("Apply() without StopOnError should not return an error, got %v", err)
	}

	if len(client.calls) != 3 {
		t.Errorf("batch should continue past the failure, got %d calls", len(client.calls))
	}
	if result.Failed() != 1 || result.Succeeded() != 2 {
		t.Errorf("succeeded=%d failed=%d, want 2/1", result.Succeeded(), result.Failed())
	}

	failures := result.Failures()
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}

	var applyErr *util.ApplyError
	if !errors.As(failures[0].Err, &applyErr) {
		t.Fatalf("failure err %T should be *util.ApplyError", failures[0].Err)
	}
	if applyErr.Device != "r1" || applyErr.LoopbackID != 200 || applyErr.Action != "update" {
		t.Errorf("ApplyError = %+v", applyErr)
	}
	if applyErr.Index != 1 {
		t.Errorf("Index = %d, want 1 (position in batch)", applyErr.Index)
	}
	if applyErr.Cause() != boom {
		t.Error("Cause() should return the transport error")
	}
}

func TestApply_StopOnError(t *testing.T) {
	client := &fakeClient{failOn: map[int]error{100: fmt.Errorf("timeout")}}

	result, err := NewApplier(client).Apply(context.Background(), testPlan(), Options{StopOnError: true})
	if err == nil {
		t.Fatal("expected error when StopOnError cuts the batch short")
	}
	if !errors.Is(err, util.ErrApply) {
		t.Errorf("error %v should unwrap to ErrApply", err)
	}

	if len(client.calls) != 1 {
		t.Errorf("batch should stop at first failure, got %d calls", len(client.calls))
	}
	if len(result.Actions) != 1 {
		t.Errorf("result should record the attempted action only, got %d", len(result.Actions))
	}
}

func TestApply_EmptyPlan(t *testing.T) {
	client := &fakeClient{}
	result, err := NewApplier(client).Apply(context.Background(), &Plan{Device: "r1"}, Options{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(client.calls) != 0 {
		t.Error("empty plan must not touch the client")
	}
	if len(result.Actions) != 0 {
		t.Error("empty plan should produce no action results")
	}
}

func TestApply_IdempotentAfterConvergence(t *testing.T) {
	// Applying a plan and recomputing against the resulting state
	// yields an empty plan.
	dev := &intent.Device{
		Name:            "r1",
		DeleteUnmanaged: true,
		Loopbacks: []intent.Loopback{
			{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255"},
		},
	}
	observed := []ObservedLoopback{
		{ID: 900, IPv4: "10.9.0.1", Netmask: "255.255.255.0"},
	}

	plan := mustPlan(t, dev, observed)
	if plan.IsEmpty() {
		t.Fatal("precondition: plan should not be empty")
	}

	// Simulate the orchestrator converging to intent.
	converged := []ObservedLoopback{
		{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255"},
	}
	replan := mustPlan(t, dev, converged)
	if !replan.IsEmpty() {
		t.Errorf("recomputed plan should be empty, got %s", replan.Summary())
	}
}
