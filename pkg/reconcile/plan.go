// Package reconcile computes and applies loopback reconciliation plans.
//
// Plan computation is pure: it diffs declared intent against an
// observed snapshot and is deterministic for fixed inputs regardless of
// input ordering. Applying a plan is a separate, side-effecting step
// that delegates every change to an external orchestration client.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netops-lab/loopctl/pkg/intent"
	"github.com/netops-lab/loopctl/pkg/util"
)

// ObservedLoopback is a loopback as reported by the orchestrator.
// Same shape as intent.Loopback but sourced from live device state;
// it may have no corresponding intent entry.
type ObservedLoopback struct {
	ID          int    `json:"id"`
	IPv4        string `json:"ipv4"`
	Netmask     string `json:"netmask"`
	Description string `json:"description,omitempty"`
}

// Plan holds the per-device actions needed to bring observed state to
// the declared intent. The three sets are disjoint by loopback id and
// sorted by id. A plan is computed fresh per invocation and consumed
// immediately; it is never persisted.
type Plan struct {
	Device   string             `json:"device"`
	ToCreate []intent.Loopback  `json:"to_create"`
	ToUpdate []intent.Loopback  `json:"to_update"`
	ToDelete []ObservedLoopback `json:"to_delete"`
}

// IsEmpty returns true if the device already matches intent.
func (p *Plan) IsEmpty() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdate) == 0 && len(p.ToDelete) == 0
}

// Summary returns a one-line count of planned actions.
func (p *Plan) Summary() string {
	return fmt.Sprintf("%d to create, %d to update, %d to delete",
		len(p.ToCreate), len(p.ToUpdate), len(p.ToDelete))
}

// String returns a human-readable listing of the planned actions.
func (p *Plan) String() string {
	if p.IsEmpty() {
		return "No changes"
	}

	var sb strings.Builder
	for _, lb := range p.ToCreate {
		fmt.Fprintf(&sb, "  [ADD] Loopback%d %s %s\n", lb.ID, lb.IPv4, lb.Netmask)
	}
	for _, lb := range p.ToUpdate {
		fmt.Fprintf(&sb, "  [MOD] Loopback%d %s %s\n", lb.ID, lb.IPv4, lb.Netmask)
	}
	for _, lb := range p.ToDelete {
		fmt.Fprintf(&sb, "  [DEL] Loopback%d %s %s\n", lb.ID, lb.IPv4, lb.Netmask)
	}
	return sb.String()
}

// ComputePlan diffs a device's declared loopbacks against an observed
// snapshot:
//
//   - declared but not observed            → ToCreate
//   - in both with differing fields        → ToUpdate
//   - observed but not declared            → ToDelete, only when the
//     device's DeleteUnmanaged policy is set; otherwise left alone.
//
// Duplicate ids on either side are a configuration error, never merged.
func ComputePlan(dev *intent.Device, observed []ObservedLoopback) (*Plan, error) {
	declared := make(map[int]intent.Loopback, len(dev.Loopbacks))
	for _, lb := range dev.Loopbacks {
		if _, ok := declared[lb.ID]; ok {
			return nil, util.NewConfigurationError(dev.Name, "duplicate loopback id %d in intent", lb.ID)
		}
		declared[lb.ID] = lb
	}

	current := make(map[int]ObservedLoopback, len(observed))
	for _, lb := range observed {
		if _, ok := current[lb.ID]; ok {
			return nil, util.NewConfigurationError(dev.Name, "duplicate loopback id %d in observed state", lb.ID)
		}
		current[lb.ID] = lb
	}

	plan := &Plan{Device: dev.Name}

	for id, want := range declared {
		have, exists := current[id]
		switch {
		case !exists:
			plan.ToCreate = append(plan.ToCreate, want)
		case want.IPv4 != have.IPv4 || want.Netmask != have.Netmask || want.Description != have.Description:
			plan.ToUpdate = append(plan.ToUpdate, want)
		}
	}

	var unmanaged []int
	for id := range current {
		if _, ok := declared[id]; !ok {
			unmanaged = append(unmanaged, id)
		}
	}
	sort.Ints(unmanaged)

	if len(unmanaged) > 0 {
		if dev.DeleteUnmanaged {
			util.WithDevice(dev.Name).Warnf(
				"delete_unmanaged_loopbacks=true: will delete %d loopbacks not in intent: %v",
				len(unmanaged), unmanaged)
			for _, id := range unmanaged {
				plan.ToDelete = append(plan.ToDelete, current[id])
			}
		} else {
			util.WithDevice(dev.Name).Infof(
				"safe mode: ignoring %d unmanaged loopbacks: %v", len(unmanaged), unmanaged)
		}
	}

	// Map iteration order is random; sort so identical inputs always
	// yield an identical plan.
	sort.Slice(plan.ToCreate, func(i, j int) bool { return plan.ToCreate[i].ID < plan.ToCreate[j].ID })
	sort.Slice(plan.ToUpdate, func(i, j int) bool { return plan.ToUpdate[i].ID < plan.ToUpdate[j].ID })

	return plan, nil
}
