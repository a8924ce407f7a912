// Package lifecycle records stage transitions, timings, and counts for one
// ingestion attempt. Transitions are strictly forward; only the pipeline
// driving the job writes, status polling only reads through the job store.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/ports"
)

type Tracker struct {
	store ports.JobStore
	now   func() time.Time

	job     *domain.Job
	stage   *domain.StageEntry
	started time.Time
}

// NewAttempt starts a fresh attempt for jobID. Redelivered messages reuse
// the job id; the previous attempt's stages are discarded so the forward
// invariant holds within the new attempt.
func NewAttempt(ctx context.Context, store ports.JobStore, jobID string) (*Tracker, error) {
	return newAttempt(ctx, store, jobID, time.Now)
}

func newAttempt(ctx context.Context, store ports.JobStore, jobID string, now func() time.Time) (*Tracker, error) {
	created := now().UTC()
	if prev, err := store.Get(ctx, jobID); err == nil {
		created = prev.CreatedAt
	}
	t := &Tracker{
		store: store,
		now:   now,
		job: &domain.Job{
			ID:        jobID,
			State:     domain.JobQueued,
			CreatedAt: created,
			UpdatedAt: now().UTC(),
		},
	}
	return t, store.Put(ctx, t.job)
}

func (t *Tracker) SetDocID(docID string) {
	t.job.DocID = docID
}

// Enter closes the current stage and opens the next one. States must
// advance strictly forward.
func (t *Tracker) Enter(ctx context.Context, state domain.JobState) error {
	next, ok := state.Rank()
	if !ok {
		return fmt.Errorf("lifecycle: %q is not a pipeline state", state)
	}
	if cur, _ := t.job.State.Rank(); t.job.State != domain.JobQueued && next <= cur {
		return fmt.Errorf("lifecycle: transition %s -> %s is not forward", t.job.State, state)
	}

	t.closeStage()
	t.job.State = state
	t.stage = &domain.StageEntry{
		Name:      string(state),
		StartedAt: t.now().UTC(),
	}
	t.started = t.stage.StartedAt
	t.job.Stages = append(t.job.Stages, *t.stage)
	return t.put(ctx)
}

// Count attaches a stage-specific counter to the current stage.
func (t *Tracker) Count(key string, n int64) {
	if t.stage == nil {
		return
	}
	if t.stage.Counts == nil {
		t.stage.Counts = map[string]int64{}
	}
	t.stage.Counts[key] += n
	t.syncStage()
}

// Done closes the last stage and marks the job complete.
func (t *Tracker) Done(ctx context.Context) error {
	t.closeStage()
	t.job.State = domain.JobDone
	return t.put(ctx)
}

// Fail records the failing stage and the error classification, then moves
// the job to its terminal failed state.
func (t *Tracker) Fail(ctx context.Context, err error) error {
	t.closeStage()
	t.job.FailedStage = string(t.job.State)
	t.job.State = domain.JobFailed
	t.job.Error = err.Error()
	t.job.ErrorKind = domain.KindOf(err)
	return t.put(ctx)
}

func (t *Tracker) Job() *domain.Job {
	return t.job
}

func (t *Tracker) closeStage() {
	if t.stage == nil {
		return
	}
	t.stage.Duration = t.now().UTC().Sub(t.started)
	t.syncStage()
	t.stage = nil
}

// syncStage copies the working entry back into the job's stage list.
func (t *Tracker) syncStage() {
	if t.stage != nil && len(t.job.Stages) > 0 {
		t.job.Stages[len(t.job.Stages)-1] = *t.stage
	}
}

func (t *Tracker) put(ctx context.Context) error {
	t.job.UpdatedAt = t.now().UTC()
	if err := t.store.Put(ctx, t.job); err != nil {
		return fmt.Errorf("persist job state %s: %w", t.job.State, err)
	}
	return nil
}
