package reconcile

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/netops-lab/loopctl/pkg/intent"
	"github.com/netops-lab/loopctl/pkg/util"
)

func mustPlan(t *testing.T, dev *intent.Device, observed []ObservedLoopback) *Plan {
	t.Helper()
	plan, err := ComputePlan(dev, observed)
	if err != nil {
		t.Fatalf("ComputePlan() error: %v", err)
	}
	return plan
}

func createIDs(p *Plan) []int {
	ids := make([]int, 0, len(p.ToCreate))
	for _, lb := range p.ToCreate {
		ids = append(ids, lb.ID)
	}
	return ids
}

func updateIDs(p *Plan) []int {
	ids := make([]int, 0, len(p.ToUpdate))
	for _, lb := range p.ToUpdate {
		ids = append(ids, lb.ID)
	}
	return ids
}

func deleteIDs(p *Plan) []int {
	ids := make([]int, 0, len(p.ToDelete))
	for _, lb := range p.ToDelete {
		ids = append(ids, lb.ID)
	}
	return ids
}

// ============================================================================
// Property Tests
// ============================================================================

func TestComputePlan_EmptyObserved(t *testing.T) {
	dev := &intent.Device{
		Name: "r1",
		Loopbacks: []intent.Loopback{
			{ID: 300, IPv4: "10.3.0.1", Netmask: "255.255.255.255"},
			{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255"},
			{ID: 200, IPv4: "10.2.0.1", Netmask: "255.255.255.255"},
		},
	}

	plan := mustPlan(t, dev, nil)

	if got, want := createIDs(plan), []int{100, 200, 300}; !reflect.DeepEqual(got, want) {
		t.Errorf("ToCreate ids = %v, want %v (every declared id, sorted)", got, want)
	}
	if len(plan.ToUpdate) != 0 || len(plan.ToDelete) != 0 {
		t.Errorf("ToUpdate/ToDelete should be empty, got %v / %v", updateIDs(plan), deleteIDs(plan))
	}
}

func TestComputePlan_Converged(t *testing.T) {
	dev := &intent.Device{
		Name: "r1",
		Loopbacks: []intent.Loopback{
			{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255", Description: "mgmt"},
		},
	}
	observed := []ObservedLoopback{
		{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255", Description: "mgmt"},
	}

	plan := mustPlan(t, dev, observed)
	if !plan.IsEmpty() {
		t.Errorf("intent == observed should yield empty plan, got %s", plan.Summary())
	}
}

func TestComputePlan_DeleteGatedByPolicy(t *testing.T) {
	observed := []ObservedLoopback{
		{ID: 500, IPv4: "10.5.0.1", Netmask: "255.255.255.0"},
		{ID: 600, IPv4: "10.6.0.1", Netmask: "255.255.255.0"},
	}

	safe := &intent.Device{Name: "r1", DeleteUnmanaged: false}
	plan := mustPlan(t, safe, observed)
	if len(plan.ToDelete) != 0 {
		t.Errorf("safe mode must never delete, got %v", deleteIDs(plan))
	}

	managed := &intent.Device{Name: "r1", DeleteUnmanaged: true}
	plan = mustPlan(t, managed, observed)
	if got, want := deleteIDs(plan), []int{500, 600}; !reflect.DeepEqual(got, want) {
		t.Errorf("ToDelete ids = %v, want %v", got, want)
	}
}

func TestComputePlan_OrderIndependent(t *testing.T) {
	loopbacks := []intent.Loopback{
		{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255"},
		{ID: 200, IPv4: "10.2.0.2", Netmask: "255.255.255.255"},
		{ID: 300, IPv4: "10.3.0.1", Netmask: "255.255.255.255"},
		{ID: 400, IPv4: "10.4.0.1", Netmask: "255.255.255.255"},
	}
	observed := []ObservedLoopback{
		{ID: 200, IPv4: "10.2.0.1", Netmask: "255.255.255.255"}, // differs → update
		{ID: 300, IPv4: "10.3.0.1", Netmask: "255.255.255.255"}, // matches
		{ID: 900, IPv4: "10.9.0.1", Netmask: "255.255.255.0"},   // unmanaged → delete
	}

	base := mustPlan(t, &intent.Device{Name: "r1", DeleteUnmanaged: true, Loopbacks: loopbacks}, observed)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		lbs := append([]intent.Loopback(nil), loopbacks...)
		obs := append([]ObservedLoopback(nil), observed...)
		rng.Shuffle(len(lbs), func(a, b int) { lbs[a], lbs[b] = lbs[b], lbs[a] })
		rng.Shuffle(len(obs), func(a, b int) { obs[a], obs[b] = obs[b], obs[a] })

		plan := mustPlan(t, &intent.Device{Name: "r1", DeleteUnmanaged: true, Loopbacks: lbs}, obs)
		if !reflect.DeepEqual(plan, base) {
			t.Fatalf("permuted inputs produced a different plan:\n%s\nvs\n%s", plan, base)
		}
	}
}

func TestComputePlan_SetsAreDisjointAndCoverDiff(t *testing.T) {
	dev := &intent.Device{
		Name:            "r1",
		DeleteUnmanaged: true,
		Loopbacks: []intent.Loopback{
			{ID: 1, IPv4: "10.0.0.1", Netmask: "255.255.255.255"}, // create
			{ID: 2, IPv4: "10.0.0.2", Netmask: "255.255.255.255"}, // update
			{ID: 3, IPv4: "10.0.0.3", Netmask: "255.255.255.255"}, // unchanged
		},
	}
	observed := []ObservedLoopback{
		{ID: 2, IPv4: "10.0.9.2", Netmask: "255.255.255.255"},
		{ID: 3, IPv4: "10.0.0.3", Netmask: "255.255.255.255"},
		{ID: 4, IPv4: "10.0.0.4", Netmask: "255.255.255.255"}, // delete
	}

	plan := mustPlan(t, dev, observed)

	seen := make(map[int]int)
	for _, id := range createIDs(plan) {
		seen[id]++
	}
	for _, id := range updateIDs(plan) {
		seen[id]++
	}
	for _, id := range deleteIDs(plan) {
		seen[id]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("id %d appears in %d sets, sets must be disjoint", id, n)
		}
	}

	want := map[int]int{1: 1, 2: 1, 4: 1}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("plan covers ids %v, want %v", seen, want)
	}
}

// ============================================================================
// Scenario Tests
// ============================================================================

func TestComputePlan_UnmanagedIgnoredInSafeMode(t *testing.T) {
	dev := &intent.Device{
		Name:            "r1",
		DeleteUnmanaged: false,
		Loopbacks: []intent.Loopback{
			{ID: 100, IPv4: "10.100.100.1", Netmask: "255.255.255.255"},
		},
	}
	observed := []ObservedLoopback{
		{ID: 100, IPv4: "10.100.100.1", Netmask: "255.255.255.255"},
		{ID: 200, IPv4: "10.200.0.1", Netmask: "255.255.255.0"},
	}

	plan := mustPlan(t, dev, observed)
	if !plan.IsEmpty() {
		t.Errorf("expected empty plan, got %s", plan.Summary())
	}
}

func TestComputePlan_UnmanagedDeletedWhenEnabled(t *testing.T) {
	dev := &intent.Device{
		Name:            "r1",
		DeleteUnmanaged: true,
		Loopbacks: []intent.Loopback{
			{ID: 100, IPv4: "10.100.100.1", Netmask: "255.255.255.255"},
		},
	}
	observed := []ObservedLoopback{
		{ID: 100, IPv4: "10.100.100.1", Netmask: "255.255.255.255"},
		{ID: 200, IPv4: "10.200.0.1", Netmask: "255.255.255.0"},
	}

	plan := mustPlan(t, dev, observed)
	if len(plan.ToCreate) != 0 || len(plan.ToUpdate) != 0 {
		t.Errorf("expected no creates/updates, got %s", plan.Summary())
	}
	if got, want := deleteIDs(plan), []int{200}; !reflect.DeepEqual(got, want) {
		t.Errorf("ToDelete ids = %v, want %v", got, want)
	}
}

func TestComputePlan_AddressDrift(t *testing.T) {
	dev := &intent.Device{
		Name: "r1",
		Loopbacks: []intent.Loopback{
			{ID: 100, IPv4: "10.100.100.2", Netmask: "255.255.255.255"},
		},
	}
	observed := []ObservedLoopback{
		{ID: 100, IPv4: "10.100.100.1", Netmask: "255.255.255.255"},
	}

	plan := mustPlan(t, dev, observed)
	if got, want := updateIDs(plan), []int{100}; !reflect.DeepEqual(got, want) {
		t.Errorf("ToUpdate ids = %v, want %v", got, want)
	}
	if len(plan.ToCreate) != 0 || len(plan.ToDelete) != 0 {
		t.Errorf("only an update expected, got %s", plan.Summary())
	}
}

func TestComputePlan_DescriptionDrift(t *testing.T) {
	dev := &intent.Device{
		Name: "r1",
		Loopbacks: []intent.Loopback{
			{ID: 100, IPv4: "10.100.100.1", Netmask: "255.255.255.255", Description: "mgmt"},
		},
	}
	observed := []ObservedLoopback{
		{ID: 100, IPv4: "10.100.100.1", Netmask: "255.255.255.255"},
	}

	plan := mustPlan(t, dev, observed)
	if got, want := updateIDs(plan), []int{100}; !reflect.DeepEqual(got, want) {
		t.Errorf("ToUpdate ids = %v, want %v", got, want)
	}
}

func TestComputePlan_DuplicateIntentID(t *testing.T) {
	dev := &intent.Device{
		Name: "r1",
		Loopbacks: []intent.Loopback{
			{ID: 100, IPv4: "10.0.0.1", Netmask: "255.255.255.255"},
			{ID: 100, IPv4: "10.0.0.2", Netmask: "255.255.255.255"},
		},
	}

	_, err := ComputePlan(dev, nil)
	if err == nil {
		t.Fatal("expected error for duplicate intent id")
	}
	if !errors.Is(err, util.ErrConfiguration) {
		t.Errorf("error %v should unwrap to ErrConfiguration", err)
	}
}

func TestComputePlan_DuplicateObservedID(t *testing.T) {
	dev := &intent.Device{Name: "r1"}
	observed := []ObservedLoopback{
		{ID: 100, IPv4: "10.0.0.1", Netmask: "255.255.255.255"},
		{ID: 100, IPv4: "10.0.0.2", Netmask: "255.255.255.255"},
	}

	_, err := ComputePlan(dev, observed)
	if err == nil {
		t.Fatal("expected error for duplicate observed id")
	}
	if !errors.Is(err, util.ErrConfiguration) {
		t.Errorf("error %v should unwrap to ErrConfiguration", err)
	}
}

// ============================================================================
// Plan Rendering
// ============================================================================

func TestPlan_String(t *testing.T) {
	plan := &Plan{
		Device:   "r1",
		ToCreate: []intent.Loopback{{ID: 100, IPv4: "10.1.0.1", Netmask: "255.255.255.255"}},
		ToDelete: []ObservedLoopback{{ID: 900, IPv4: "10.9.0.1", Netmask: "255.255.255.0"}},
	}

	s := plan.String()
	for _, want := range []string{"[ADD] Loopback100", "[DEL] Loopback900"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q:\n%s", want, s)
		}
	}

	empty := &Plan{Device: "r1"}
	if empty.String() != "No changes" {
		t.Errorf("empty plan String() = %q", empty.String())
	}
}
