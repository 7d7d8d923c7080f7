// Package audit provides audit logging for reconciliation runs.
package audit

import (
	"fmt"
	"time"

	"github.com/netops-lab/loopctl/pkg/reconcile"
)

// Event represents one auditable plan or apply invocation.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Device    string    `json:"device"`
	Operation string    `json:"operation"` // "plan", "apply", "rollback"

	// Plan summary at the time of the invocation.
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`

	// Per-action outcomes (apply only).
	Actions []reconcile.ActionResult `json:"actions,omitempty"`

	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	ExecuteMode bool          `json:"execute_mode"` // true if -x was used
	DryRun      bool          `json:"dry_run"`
	Duration    time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithPlan records the plan's action counts
func (e *Event) WithPlan(plan *reconcile.Plan) *Event {
	e.Creates = len(plan.ToCreate)
	e.Updates = len(plan.ToUpdate)
	e.Deletes = len(plan.ToDelete)
	return e
}

// WithResult records per-action apply outcomes
func (e *Event) WithResult(result *reconcile.Result) *Event {
	e.Actions = result.Actions
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithExecuteMode marks if execute mode was used
func (e *Event) WithExecuteMode(execute bool) *Event {
	e.ExecuteMode = execute
	e.DryRun = !execute
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
