package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
)

func newWorkflow(id string) *entity.Workflow {
	now := time.Now()
	return &entity.Workflow{
		ID:             id,
		Name:           "Dossier prep",
		Type:           entity.TypeINDSubmission,
		Status:         entity.StatusNotStarted,
		CreatedBy:      "user-1",
		OrganizationID: "org-1",
		ModuleID:       "regulatory",
		ProjectID:      "proj-1",
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
}

func newTask(id, workflowID string, order int) *entity.Task {
	return &entity.Task{
		ID:         id,
		WorkflowID: workflowID,
		Name:       "step",
		Status:     entity.TaskNotStarted,
		Order:      order,
		CreatedAt:  time.Now(),
	}
}

func TestStore_WorkflowCRUD(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newWorkflow("wf-1")))
	err := s.Create(ctx, newWorkflow("wf-1"))
	assert.ErrorIs(t, err, entity.ErrValidation, "duplicate id must be rejected")

	got, err := s.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Dossier prep", got.Name)

	_, err = s.GetByID(ctx, "wf-2")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "wf-1"))
	assert.ErrorIs(t, s.Delete(ctx, "wf-1"), entity.ErrNotFound)
}

func TestStore_UpdateCAS(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newWorkflow("wf-1")))

	w, err := s.GetByID(ctx, "wf-1")
	require.NoError(t, err)

	w.Name = "Renamed"
	require.NoError(t, s.Update(ctx, w, 1))
	assert.Equal(t, int64(2), w.Version, "version bumped on the caller's copy")

	// A writer holding the old version must lose
	stale := newWorkflow("wf-1")
	stale.Name = "Stale"
	err = s.Update(ctx, stale, 1)
	assert.ErrorIs(t, err, entity.ErrConflict)

	got, err := s.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, int64(2), got.Version)

	missing := newWorkflow("wf-9")
	assert.ErrorIs(t, s.Update(ctx, missing, 1), entity.ErrNotFound)
}

func TestStore_CloneIsolation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	w := newWorkflow("wf-1")
	w.RequiredReviewers = []string{"alice"}
	require.NoError(t, s.Create(ctx, w))

	// Mutating the caller's copy after Create must not touch the store
	w.Name = "mutated"
	w.RequiredReviewers[0] = "mallory"

	got, err := s.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Dossier prep", got.Name)
	assert.Equal(t, []string{"alice"}, got.RequiredReviewers)

	// And mutating a read copy must not poison later reads
	got.Name = "also mutated"
	again, err := s.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Dossier prep", again.Name)
}

func TestTaskStore_UniqueOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	tasks := s.Tasks()

	require.NoError(t, tasks.Create(ctx, newTask("t-1", "wf-1", 1)))
	require.NoError(t, tasks.Create(ctx, newTask("t-2", "wf-1", 2)))

	err := tasks.Create(ctx, newTask("t-3", "wf-1", 2))
	assert.ErrorIs(t, err, entity.ErrValidation, "duplicate order in one workflow")

	// The same order is fine in another workflow
	require.NoError(t, tasks.Create(ctx, newTask("t-4", "wf-2", 2)))

	// Moving onto an occupied slot is rejected too
	moved := newTask("t-2", "wf-1", 1)
	assert.ErrorIs(t, tasks.Update(ctx, moved), entity.ErrValidation)

	max, err := tasks.MaxOrder(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, max)

	max, err = tasks.MaxOrder(ctx, "wf-empty")
	require.NoError(t, err)
	assert.Equal(t, 0, max)
}

func TestTaskStore_ListOrdering(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	tasks := s.Tasks()

	require.NoError(t, tasks.Create(ctx, newTask("t-3", "wf-1", 3)))
	require.NoError(t, tasks.Create(ctx, newTask("t-1", "wf-1", 1)))
	require.NoError(t, tasks.Create(ctx, newTask("t-2", "wf-1", 2)))

	got, err := tasks.ListByWorkflowID(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, task := range got {
		assert.Equal(t, i+1, task.Order)
	}
}

func TestTaskStore_DeleteByWorkflowID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	tasks := s.Tasks()

	require.NoError(t, tasks.Create(ctx, newTask("t-1", "wf-1", 1)))
	require.NoError(t, tasks.Create(ctx, newTask("t-2", "wf-1", 2)))
	require.NoError(t, tasks.Create(ctx, newTask("t-3", "wf-2", 1)))

	require.NoError(t, tasks.DeleteByWorkflowID(ctx, "wf-1"))

	got, err := tasks.ListByWorkflowID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := tasks.ListByWorkflowID(ctx, "wf-2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other workflows untouched")
}

func TestReviewStore_OneDecisionPerReviewer(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	reviews := s.Reviews()

	first := &entity.Review{ID: "r-1", WorkflowID: "wf-1", ReviewerID: "alice", Decision: entity.DecisionApprove, DecidedAt: time.Now()}
	require.NoError(t, reviews.Create(ctx, first))

	dup := &entity.Review{ID: "r-2", WorkflowID: "wf-1", ReviewerID: "alice", Decision: entity.DecisionReject, DecidedAt: time.Now()}
	assert.ErrorIs(t, reviews.Create(ctx, dup), entity.ErrValidation)

	other := &entity.Review{ID: "r-3", WorkflowID: "wf-2", ReviewerID: "alice", Decision: entity.DecisionReject, DecidedAt: time.Now()}
	require.NoError(t, reviews.Create(ctx, other), "same reviewer on another workflow is fine")

	got, err := reviews.ListByWorkflowID(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.DecisionApprove, got[0].Decision)
}

func TestReviewStore_UpdateReplacesDecision(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	reviews := s.Reviews()

	r := &entity.Review{ID: "r-1", WorkflowID: "wf-1", ReviewerID: "alice", Decision: entity.DecisionReject, DecidedAt: time.Now()}
	require.NoError(t, reviews.Create(ctx, r))

	changed := &entity.Review{ID: "r-1", WorkflowID: "wf-1", ReviewerID: "alice", Decision: entity.DecisionApprove, Comment: "resolved", DecidedAt: time.Now()}
	require.NoError(t, reviews.Update(ctx, changed))

	got, err := reviews.ListByWorkflowID(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.DecisionApprove, got[0].Decision)
	assert.Equal(t, "resolved", got[0].Comment)

	missing := &entity.Review{ID: "r-9", WorkflowID: "wf-1", ReviewerID: "bob", Decision: entity.DecisionApprove, DecidedAt: time.Now()}
	assert.ErrorIs(t, reviews.Update(ctx, missing), entity.ErrNotFound)
}

func TestStore_TransactionRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newWorkflow("wf-keep")))

	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.Create(txCtx, newWorkflow("wf-tx")); err != nil {
			return err
		}
		if err := s.Tasks().Create(txCtx, newTask("t-1", "wf-tx", 1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetByID(ctx, "wf-tx")
	assert.ErrorIs(t, err, entity.ErrNotFound, "workflow rolled back")
	_, err = s.Tasks().GetByID(ctx, "t-1")
	assert.ErrorIs(t, err, entity.ErrNotFound, "task rolled back")

	_, err = s.GetByID(ctx, "wf-keep")
	assert.NoError(t, err, "pre-transaction state survives the rollback")
}

func TestStore_RollbackPreservesConcurrentWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newWorkflow("wf-b")))

	done := make(chan error, 1)
	boom := errors.New("boom")
	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.Create(txCtx, newWorkflow("wf-tx")); err != nil {
			return err
		}
		// An unrelated writer outside the transaction renames wf-b while the
		// transaction is open. It must wait out the transaction and its write
		// must survive the rollback.
		go func() {
			b, err := s.GetByID(ctx, "wf-b")
			if err != nil {
				done <- err
				return
			}
			b.Name = "renamed outside tx"
			done <- s.Update(ctx, b, b.Version)
		}()
		time.Sleep(10 * time.Millisecond)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, <-done)

	_, err = s.GetByID(ctx, "wf-tx")
	assert.ErrorIs(t, err, entity.ErrNotFound, "transaction write rolled back")

	b, err := s.GetByID(ctx, "wf-b")
	require.NoError(t, err)
	assert.Equal(t, "renamed outside tx", b.Name, "committed write on an unrelated workflow survives")
}

func TestStore_TransactionCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.Create(txCtx, newWorkflow("wf-tx")); err != nil {
			return err
		}
		// Nested transactions join the outer one
		return s.WithTransaction(txCtx, func(innerCtx context.Context) error {
			return s.Tasks().Create(innerCtx, newTask("t-1", "wf-tx", 1))
		})
	})
	require.NoError(t, err)

	_, err = s.GetByID(ctx, "wf-tx")
	assert.NoError(t, err)
	_, err = s.Tasks().GetByID(ctx, "t-1")
	assert.NoError(t, err)
}

func TestStore_ListFilters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a := newWorkflow("wf-a")
	a.ModuleID = "regulatory"
	a.Status = entity.StatusInProgress
	require.NoError(t, s.Create(ctx, a))

	b := newWorkflow("wf-b")
	b.ModuleID = "clinical"
	require.NoError(t, s.Create(ctx, b))

	got, err := s.List(ctx, port.WorkflowFilter{ModuleID: "clinical"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "wf-b", got[0].ID)

	got, err = s.List(ctx, port.WorkflowFilter{Status: entity.StatusInProgress})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "wf-a", got[0].ID)

	got, err = s.List(ctx, port.WorkflowFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
