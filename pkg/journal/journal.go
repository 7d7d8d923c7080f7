// Package journal records executed apply runs in Redis so a later
// `loopctl rollback` can find the NSO rollback ids to revert.
//
// Layout:
//
//	loopctl:runs              list of run ids, newest first
//	loopctl:run:<id>          hash of run metadata
//	loopctl:run:<id>:actions  list of JSON action records, apply order
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/netops-lab/loopctl/pkg/reconcile"
	"github.com/netops-lab/loopctl/pkg/util"
)

const (
	runsKey   = "loopctl:runs"
	runPrefix = "loopctl:run:"

	// maxRuns caps journal history; older runs are trimmed.
	maxRuns = 500
)

// Run is one executed apply pass for one device.
type Run struct {
	ID        string                   `json:"id"`
	Device    string                   `json:"device"`
	Timestamp time.Time                `json:"timestamp"`
	DryRun    bool                     `json:"dry_run"`
	Actions   []reconcile.ActionResult `json:"actions"`
}

// NewRun builds a journal run from an apply result.
func NewRun(result *reconcile.Result) *Run {
	return &Run{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Device:    result.Device,
		Timestamp: time.Now(),
		DryRun:    result.DryRun,
		Actions:   result.Actions,
	}
}

// RollbackIDs returns the run's NSO rollback fixed-numbers, newest
// first — the order they must be reverted in.
func (r *Run) RollbackIDs() []int {
	var out []int
	for i := len(r.Actions) - 1; i >= 0; i-- {
		if r.Actions[i].Error == "" && r.Actions[i].RollbackID != 0 {
			out = append(out, r.Actions[i].RollbackID)
		}
	}
	return out
}

// Succeeded returns the number of actions that completed.
func (r *Run) Succeeded() int {
	n := 0
	for _, a := range r.Actions {
		if a.Error == "" {
			n++
		}
	}
	return n
}

// Failed returns the number of actions that failed.
func (r *Run) Failed() int {
	return len(r.Actions) - r.Succeeded()
}

// Journal is a Redis-backed run store.
type Journal struct {
	client *redis.Client
}

// Open connects to Redis and verifies it responds.
func Open(ctx context.Context, addr string, db int) (*Journal, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to journal at %s: %w", addr, err)
	}
	util.Debugf("journal connected to %s (db %d)", addr, db)
	return &Journal{client: client}, nil
}

// Close releases the Redis connection.
func (j *Journal) Close() error {
	return j.client.Close()
}

// Record persists a run. Dry runs are not recorded — there is nothing
// to roll back.
func (j *Journal) Record(ctx context.Context, run *Run) error {
	if run.DryRun {
		return nil
	}

	actions := make([]interface{}, 0, len(run.Actions))
	for _, a := range run.Actions {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encoding action record: %w", err)
		}
		actions = append(actions, string(data))
	}

	pipe := j.client.TxPipeline()
	pipe.HSet(ctx, runPrefix+run.ID,
		"device", run.Device,
		"timestamp", run.Timestamp.Format(time.RFC3339Nano),
		"succeeded", strconv.Itoa(run.Succeeded()),
		"failed", strconv.Itoa(run.Failed()),
	)
	if len(actions) > 0 {
		pipe.RPush(ctx, runPrefix+run.ID+":actions", actions...)
	}
	pipe.LPush(ctx, runsKey, run.ID)
	pipe.LTrim(ctx, runsKey, 0, maxRuns-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}

	util.WithDevice(run.Device).Debugf("journaled run %s (%d actions)", run.ID, len(run.Actions))
	return nil
}

// Run loads one run by id.
func (j *Journal) Run(ctx context.Context, id string) (*Run, error) {
	meta, err := j.client.HGetAll(ctx, runPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	if len(meta) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, util.ErrNotFound)
	}

	run := &Run{ID: id, Device: meta["device"]}
	if ts, err := time.Parse(time.RFC3339Nano, meta["timestamp"]); err == nil {
		run.Timestamp = ts
	}

	records, err := j.client.LRange(ctx, runPrefix+id+":actions", 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading actions for run %s: %w", id, err)
	}
	for _, rec := range records {
		var a reconcile.ActionResult
		if err := json.Unmarshal([]byte(rec), &a); err != nil {
			return nil, fmt.Errorf("decoding action record in run %s: %w", id, err)
		}
		run.Actions = append(run.Actions, a)
	}
	return run, nil
}

// Runs returns up to limit runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = maxRuns
	}
	ids, err := j.client.LRange(ctx, runsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	runs := make([]*Run, 0, len(ids))
	for _, id := range ids {
		run, err := j.Run(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LastRun returns the most recent run, optionally filtered by device.
func (j *Journal) LastRun(ctx context.Context, device string) (*Run, error) {
	runs, err := j.Runs(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if device == "" || run.Device == device {
			return run, nil
		}
	}
	return nil, fmt.Errorf("no journaled runs for %q: %w", device, util.ErrNotFound)
}
