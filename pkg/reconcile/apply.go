package reconcile

import (
	"context"

	"github.com/netops-lab/loopctl/pkg/intent"
	"github.com/netops-lab/loopctl/pkg/util"
)

// Action is the type of a single planned change.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Client is the orchestration surface the applier drives. The dry-run
// flag asks the orchestrator to construct and validate the change
// without committing it. Committed changes return the orchestrator's
// rollback id (0 when none was issued, e.g. dry-run).
type Client interface {
	CreateLoopback(ctx context.Context, device string, lb intent.Loopback, dryRun bool) (rollbackID int, err error)
	UpdateLoopback(ctx context.Context, device string, lb intent.Loopback, dryRun bool) (rollbackID int, err error)
	DeleteLoopback(ctx context.Context, device string, id int, dryRun bool) (rollbackID int, err error)
}

// ActionResult is the outcome of one create/update/delete request.
// Failures are reported per action, never aggregated, so the caller can
// decide whether to roll back already-applied actions.
type ActionResult struct {
	Action     Action `json:"action"`
	Device     string `json:"device"`
	LoopbackID int    `json:"loopback_id"`
	RollbackID int    `json:"rollback_id,omitempty"`
	Err        error  `json:"-"`
	Error      string `json:"error,omitempty"`
}

// Result is the outcome of applying one device's plan.
type Result struct {
	Device  string         `json:"device"`
	DryRun  bool           `json:"dry_run"`
	Actions []ActionResult `json:"actions"`
}

// Succeeded returns the number of actions that completed.
func (r *Result) Succeeded() int {
	n := 0
	for _, a := range r.Actions {
		if a.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of actions that failed.
func (r *Result) Failed() int {
	return len(r.Actions) - r.Succeeded()
}

// Failures returns the failed actions in apply order.
func (r *Result) Failures() []ActionResult {
	var out []ActionResult
	for _, a := range r.Actions {
		if a.Err != nil {
			out = append(out, a)
		}
	}
	return out
}

// RollbackIDs returns the orchestrator rollback ids of committed
// actions, newest first — the order they must be reverted in.
func (r *Result) RollbackIDs() []int {
	var out []int
	for i := len(r.Actions) - 1; i >= 0; i-- {
		if r.Actions[i].Err == nil && r.Actions[i].RollbackID != 0 {
			out = append(out, r.Actions[i].RollbackID)
		}
	}
	return out
}

// Options controls apply behavior.
type Options struct {
	// DryRun constructs and validates every request without committing.
	// The returned action list is identical to what a real apply would
	// attempt.
	DryRun bool

	// StopOnError aborts the batch at the first failed action. The
	// default is to continue and report every action's outcome.
	StopOnError bool
}

// Applier executes reconciliation plans against an orchestration
// client. It holds no state between calls; retry policy and rollback
// decisions belong to the caller.
type Applier struct {
	client Client
}

// NewApplier creates an applier backed by the given client.
func NewApplier(client Client) *Applier {
	return &Applier{client: client}
}

// Apply issues the plan's creates, then updates, then deletes. Every
// action's outcome is recorded individually. The returned error is
// non-nil only when StopOnError cut the batch short; partial failures
// without StopOnError are reported through the Result alone.
func (a *Applier) Apply(ctx context.Context, plan *Plan, opts Options) (*Result, error) {
	result := &Result{Device: plan.Device, DryRun: opts.DryRun}

	log := util.WithDevice(plan.Device)
	if plan.IsEmpty() {
		log.Info("no changes needed - device is in desired state")
		return result, nil
	}

	index := 0
	run := func(action Action, id int, do func() (int, error)) error {
		if opts.DryRun {
			log.Infof("[DRY-RUN] would %s Loopback%d", action, id)
		} else {
			log.Infof("applying %s Loopback%d", action, id)
		}

		rollbackID, err := do()
		ar := ActionResult{Action: action, Device: plan.Device, LoopbackID: id, RollbackID: rollbackID}
		if err != nil {
			ar.Err = &util.ApplyError{
				Device:     plan.Device,
				LoopbackID: id,
				Action:     string(action),
				Index:      index,
				Err:        err,
			}
			ar.Error = ar.Err.Error()
			log.Errorf("failed to %s Loopback%d: %v", action, id, err)
		}
		result.Actions = append(result.Actions, ar)
		index++

		if ar.Err != nil && opts.StopOnError {
			return ar.Err
		}
		return nil
	}

	for _, lb := range plan.ToCreate {
		lb := lb
		if err := run(ActionCreate, lb.ID, func() (int, error) {
			return a.client.CreateLoopback(ctx, plan.Device, lb, opts.DryRun)
		}); err != nil {
			return result, err
		}
	}
	for _, lb := range plan.ToUpdate {
		lb := lb
		if err := run(ActionUpdate, lb.ID, func() (int, error) {
			return a.client.UpdateLoopback(ctx, plan.Device, lb, opts.DryRun)
		}); err != nil {
			return result, err
		}
	}
	for _, lb := range plan.ToDelete {
		id := lb.ID
		if err := run(ActionDelete, id, func() (int, error) {
			return a.client.DeleteLoopback(ctx, plan.Device, id, opts.DryRun)
		}); err != nil {
			return result, err
		}
	}

	return result, nil
}
