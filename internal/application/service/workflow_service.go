package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinvera/regflow/internal/application/bus"
	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
	"github.com/clinvera/regflow/internal/domain/event"
	domainwf "github.com/clinvera/regflow/internal/domain/workflow"
)

// CreateWorkflowInput carries the caller-supplied fields for a new workflow
type CreateWorkflowInput struct {
	Name           string
	Type           entity.WorkflowType
	Description    string
	ModuleID       string
	OrganizationID string
	ProjectID      string
	CreatedBy      string
	DueDate        *time.Time
}

// WorkflowPatch is a partial update. Nil fields are left untouched.
// A non-nil Status is validated against the transition table.
type WorkflowPatch struct {
	Name        *string
	Description *string
	DueDate     *time.Time
	Status      *entity.Status
}

// WorkflowService manages workflow aggregates: creation, lookup, status
// transitions, and cascade deletion.
type WorkflowService interface {
	Create(ctx context.Context, in CreateWorkflowInput) (*entity.Workflow, error)
	Get(ctx context.Context, id string) (*entity.Workflow, error)
	List(ctx context.Context, filter port.WorkflowFilter) ([]*entity.Workflow, error)

	// Update applies a patch with optimistic concurrency; expectedVersion 0
	// skips the version check (the caller takes the last-write-wins risk)
	Update(ctx context.Context, id string, patch WorkflowPatch, expectedVersion int64) (*entity.Workflow, error)

	Start(ctx context.Context, id string, expectedVersion int64) (*entity.Workflow, error)
	Hold(ctx context.Context, id string, expectedVersion int64) (*entity.Workflow, error)
	Resume(ctx context.Context, id string, expectedVersion int64) (*entity.Workflow, error)
	Cancel(ctx context.Context, id, reason string, expectedVersion int64) (*entity.Workflow, error)

	Delete(ctx context.Context, id string) error
}

type workflowServiceImpl struct {
	workflowRepo port.WorkflowRepository
	taskRepo     port.TaskRepository
	txManager    port.TransactionManager
	locks        *WorkflowLocks
	bus          bus.EventBus
	logger       Logger
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	workflowRepo port.WorkflowRepository,
	taskRepo port.TaskRepository,
	txManager port.TransactionManager,
	locks *WorkflowLocks,
	eventBus bus.EventBus,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		workflowRepo: workflowRepo,
		taskRepo:     taskRepo,
		txManager:    txManager,
		locks:        locks,
		bus:          eventBus,
		logger:       logger,
	}
}

// Create validates the input and persists a fresh workflow in NOT_STARTED
func (s *workflowServiceImpl) Create(ctx context.Context, in CreateWorkflowInput) (*entity.Workflow, error) {
	now := time.Now()
	w := &entity.Workflow{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Type:           in.Type,
		Description:    in.Description,
		Status:         entity.StatusNotStarted,
		Progress:       0,
		StartDate:      now,
		DueDate:        in.DueDate,
		CreatedBy:      in.CreatedBy,
		OrganizationID: in.OrganizationID,
		ModuleID:       in.ModuleID,
		ProjectID:      in.ProjectID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := s.workflowRepo.Create(ctx, w); err != nil {
		s.logger.Error("Failed to create workflow", "error", err, "name", in.Name)
		return nil, fmt.Errorf("create workflow: %w", err)
	}

	s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowCreated, w.ID, map[string]interface{}{
		"name": w.Name,
		"type": w.Type.String(),
	}))

	s.logger.Info("Workflow created", "workflow_id", w.ID, "type", w.Type.String())
	return w, nil
}

// Get retrieves a workflow by id
func (s *workflowServiceImpl) Get(ctx context.Context, id string) (*entity.Workflow, error) {
	return s.workflowRepo.GetByID(ctx, id)
}

// List returns workflows matching the filter, most recently updated first
func (s *workflowServiceImpl) List(ctx context.Context, filter port.WorkflowFilter) ([]*entity.Workflow, error) {
	return s.workflowRepo.List(ctx, filter)
}

// Update applies a patch under the per-workflow lock
func (s *workflowServiceImpl) Update(ctx context.Context, id string, patch WorkflowPatch, expectedVersion int64) (*entity.Workflow, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	eventType := event.TypeWorkflowUpdated
	payload := map[string]interface{}{}

	if patch.Status != nil && *patch.Status != w.Status {
		previous := w.Status
		if err := s.applyTransition(ctx, w, *patch.Status); err != nil {
			return nil, err
		}
		eventType = statusEventType(previous, w.Status)
		payload["previous_status"] = previous.String()
		payload["new_status"] = w.Status.String()
	}

	if patch.Name != nil {
		w.Name = *patch.Name
	}
	if patch.Description != nil {
		w.Description = *patch.Description
	}
	if patch.DueDate != nil {
		w.DueDate = patch.DueDate
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := s.update(ctx, w, expectedVersion); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.NewEvent(eventType, w.ID, payload))
	return w, nil
}

// Start moves the workflow from NOT_STARTED to IN_PROGRESS
func (s *workflowServiceImpl) Start(ctx context.Context, id string, expectedVersion int64) (*entity.Workflow, error) {
	return s.transition(ctx, id, domainwf.TriggerStart, expectedVersion)
}

// Hold pauses an in-progress workflow
func (s *workflowServiceImpl) Hold(ctx context.Context, id string, expectedVersion int64) (*entity.Workflow, error) {
	return s.transition(ctx, id, domainwf.TriggerHold, expectedVersion)
}

// Resume returns a held workflow to IN_PROGRESS
func (s *workflowServiceImpl) Resume(ctx context.Context, id string, expectedVersion int64) (*entity.Workflow, error) {
	return s.transition(ctx, id, domainwf.TriggerResume, expectedVersion)
}

// Cancel terminally cancels the workflow; a reason is required
func (s *workflowServiceImpl) Cancel(ctx context.Context, id, reason string, expectedVersion int64) (*entity.Workflow, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", entity.ErrValidation)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := w.Status
	if err := s.applyTrigger(ctx, w, domainwf.TriggerCancel); err != nil {
		return nil, err
	}
	w.CancelReason = reason

	if err := s.update(ctx, w, expectedVersion); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowCancelled, w.ID, map[string]interface{}{
		"previous_status": previous.String(),
		"reason":          reason,
	}))

	s.logger.Info("Workflow cancelled", "workflow_id", w.ID, "reason", reason)
	return w, nil
}

// Delete removes the workflow and all of its tasks in one transaction
func (s *workflowServiceImpl) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.workflowRepo.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.taskRepo.DeleteByWorkflowID(txCtx, id); err != nil {
			return fmt.Errorf("delete workflow tasks: %w", err)
		}
		if err := s.workflowRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete workflow: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete workflow", "error", err, "workflow_id", id)
		return err
	}

	s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowDeleted, id, nil))

	s.logger.Info("Workflow deleted", "workflow_id", id)
	return nil
}

// transition fires a single trigger against the workflow's machine under the
// per-workflow lock. The trigger is explicit, not inferred from a target
// status, so e.g. RESUME on a NOT_STARTED workflow fails instead of starting it.
func (s *workflowServiceImpl) transition(ctx context.Context, id string, trigger domainwf.Trigger, expectedVersion int64) (*entity.Workflow, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	w, err := s.workflowRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := w.Status
	if err := s.applyTrigger(ctx, w, trigger); err != nil {
		return nil, err
	}

	if err := s.update(ctx, w, expectedVersion); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.NewEvent(statusEventType(previous, w.Status), w.ID, map[string]interface{}{
		"previous_status": previous.String(),
		"new_status":      w.Status.String(),
	}))

	return w, nil
}

// applyTransition resolves a requested target status (from a patch) to its
// trigger and applies it
func (s *workflowServiceImpl) applyTransition(ctx context.Context, w *entity.Workflow, target entity.Status) error {
	trigger, err := domainwf.TriggerFor(w.Status, target)
	if err != nil {
		return err
	}
	return s.applyTrigger(ctx, w, trigger)
}

// applyTrigger fires the trigger against the workflow's machine and applies
// the resulting status to the aggregate
func (s *workflowServiceImpl) applyTrigger(ctx context.Context, w *entity.Workflow, trigger domainwf.Trigger) error {
	machine := domainwf.BuildMachine(w.Status, w.Type.RequiresApproval(), w.Progress)
	if err := machine.Fire(ctx, trigger); err != nil {
		return err
	}

	w.Status = machine.State()
	if w.Status == entity.StatusCompleted {
		now := time.Now()
		w.CompletedDate = &now
	}
	return nil
}

// update persists the aggregate with the version discipline: expectedVersion
// 0 means compare against the version just read under the lock
func (s *workflowServiceImpl) update(ctx context.Context, w *entity.Workflow, expectedVersion int64) error {
	if expectedVersion == 0 {
		expectedVersion = w.Version
	}
	w.UpdatedAt = time.Now()
	return s.workflowRepo.Update(ctx, w, expectedVersion)
}

// statusEventType picks the event type announced for a status change
func statusEventType(from, to entity.Status) event.Type {
	switch {
	case from == entity.StatusNotStarted && to == entity.StatusInProgress:
		return event.TypeWorkflowStarted
	case to == entity.StatusCompleted:
		return event.TypeWorkflowCompleted
	case to == entity.StatusCancelled:
		return event.TypeWorkflowCancelled
	default:
		return event.TypeWorkflowUpdated
	}
}
