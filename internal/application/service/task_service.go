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
)

// CreateTaskInput carries the caller-supplied fields for a new task.
// Order 0 means "append": the task gets max(existing order)+1.
type CreateTaskInput struct {
	Name        string
	Description string
	Order       int
	AssignedTo  string
	DueDate     *time.Time
}

// TaskPatch is a partial task update. Nil fields are left untouched; a
// non-nil Status is validated against the task transition table.
type TaskPatch struct {
	Name        *string
	Description *string
	Status      *entity.TaskStatus
	AssignedTo  *string
	DueDate     *time.Time
}

// CompleteTaskInput is the completion payload merged into the task
type CompleteTaskInput struct {
	CompletedBy string
	Note        string
}

// TaskService manages the tasks of a workflow. Every mutation recomputes the
// owning workflow's progress under the same per-workflow lock, so concurrent
// mutations on disjoint tasks never lose an update.
type TaskService interface {
	Create(ctx context.Context, workflowID string, in CreateTaskInput) (*entity.Task, error)
	Get(ctx context.Context, taskID string) (*entity.Task, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Task, error)
	Update(ctx context.Context, taskID string, patch TaskPatch) (*entity.Task, error)
	Complete(ctx context.Context, taskID string, in CompleteTaskInput) (*entity.Task, error)
	Assign(ctx context.Context, taskID, userID string) (*entity.Task, error)
	Delete(ctx context.Context, taskID string) error
}

type taskServiceImpl struct {
	workflowRepo port.WorkflowRepository
	taskRepo     port.TaskRepository
	locks        *WorkflowLocks
	bus          bus.EventBus
	logger       Logger
}

// NewTaskService creates a new TaskService
func NewTaskService(
	workflowRepo port.WorkflowRepository,
	taskRepo port.TaskRepository,
	locks *WorkflowLocks,
	eventBus bus.EventBus,
	logger Logger,
) TaskService {
	return &taskServiceImpl{
		workflowRepo: workflowRepo,
		taskRepo:     taskRepo,
		locks:        locks,
		bus:          eventBus,
		logger:       logger,
	}
}

// Create adds a task to a workflow and recomputes its progress
func (s *taskServiceImpl) Create(ctx context.Context, workflowID string, in CreateTaskInput) (*entity.Task, error) {
	unlock := s.locks.Lock(workflowID)
	defer unlock()

	w, err := s.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	order := in.Order
	if order == 0 {
		max, err := s.taskRepo.MaxOrder(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("next task order: %w", err)
		}
		order = max + 1
	}

	t := &entity.Task{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		Name:        in.Name,
		Description: in.Description,
		Status:      entity.TaskNotStarted,
		Order:       order,
		AssignedTo:  in.AssignedTo,
		DueDate:     in.DueDate,
		CreatedAt:   time.Now(),
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(ctx, t); err != nil {
		s.logger.Error("Failed to create task", "error", err, "workflow_id", workflowID)
		return nil, err
	}

	completion, err := s.recomputeProgress(ctx, w)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.NewTaskEvent(event.TypeTaskCreated, workflowID, t.ID, map[string]interface{}{
		"name":  t.Name,
		"order": t.Order,
	}))
	if completion != nil {
		s.bus.Publish(ctx, completion)
	}

	s.logger.Info("Task created", "task_id", t.ID, "workflow_id", workflowID, "order", t.Order)
	return t, nil
}

// Get retrieves a task by id
func (s *taskServiceImpl) Get(ctx context.Context, taskID string) (*entity.Task, error) {
	return s.taskRepo.GetByID(ctx, taskID)
}

// ListByWorkflow returns the workflow's tasks sorted by order
func (s *taskServiceImpl) ListByWorkflow(ctx context.Context, workflowID string) ([]*entity.Task, error) {
	return s.taskRepo.ListByWorkflowID(ctx, workflowID)
}

// Update applies a patch to a task and recomputes the parent's progress
func (s *taskServiceImpl) Update(ctx context.Context, taskID string, patch TaskPatch) (*entity.Task, error) {
	return s.mutate(ctx, taskID, event.TypeTaskUpdated, nil, func(t *entity.Task) error {
		if patch.Status != nil && *patch.Status != t.Status {
			if !t.Status.CanTransition(*patch.Status) {
				return fmt.Errorf("%w: task cannot move from %s to %s", entity.ErrValidation, t.Status, *patch.Status)
			}
			t.Status = *patch.Status
			if t.Status == entity.TaskComplete && t.CompletedDate == nil {
				now := time.Now()
				t.CompletedDate = &now
			}
		}
		if patch.Name != nil {
			t.Name = *patch.Name
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.AssignedTo != nil {
			t.AssignedTo = *patch.AssignedTo
		}
		if patch.DueDate != nil {
			t.DueDate = patch.DueDate
		}
		return t.Validate()
	})
}

// Complete marks the task COMPLETE, stamps the completion date, and merges
// the completion payload
func (s *taskServiceImpl) Complete(ctx context.Context, taskID string, in CompleteTaskInput) (*entity.Task, error) {
	return s.mutate(ctx, taskID, event.TypeTaskCompleted, map[string]interface{}{
		"completed_by": in.CompletedBy,
	}, func(t *entity.Task) error {
		if t.Status == entity.TaskComplete {
			return fmt.Errorf("%w: task %s is already complete", entity.ErrValidation, t.ID)
		}
		now := time.Now()
		t.Status = entity.TaskComplete
		t.CompletedDate = &now
		t.CompletedBy = in.CompletedBy
		t.CompletionNote = in.Note
		return nil
	})
}

// Assign sets the task's assignee
func (s *taskServiceImpl) Assign(ctx context.Context, taskID, userID string) (*entity.Task, error) {
	return s.mutate(ctx, taskID, event.TypeTaskAssigned, map[string]interface{}{
		"assigned_to": userID,
	}, func(t *entity.Task) error {
		t.AssignedTo = userID
		return nil
	})
}

// Delete removes the task and recomputes the parent's progress
func (s *taskServiceImpl) Delete(ctx context.Context, taskID string) error {
	t, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(t.WorkflowID)
	defer unlock()

	// Re-read under the lock in case the task moved underneath us
	t, err = s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	w, err := s.workflowRepo.GetByID(ctx, t.WorkflowID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		s.logger.Error("Failed to delete task", "error", err, "task_id", taskID)
		return err
	}

	completion, err := s.recomputeProgress(ctx, w)
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, event.NewTaskEvent(event.TypeTaskDeleted, t.WorkflowID, t.ID, nil))
	if completion != nil {
		s.bus.Publish(ctx, completion)
	}

	s.logger.Info("Task deleted", "task_id", taskID, "workflow_id", t.WorkflowID)
	return nil
}

// mutate is the shared lock-load-apply-recompute path for task updates
func (s *taskServiceImpl) mutate(ctx context.Context, taskID string, eventType event.Type, payload map[string]interface{}, apply func(*entity.Task) error) (*entity.Task, error) {
	t, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(t.WorkflowID)
	defer unlock()

	t, err = s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	w, err := s.workflowRepo.GetByID(ctx, t.WorkflowID)
	if err != nil {
		return nil, err
	}

	if err := apply(t); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(ctx, t); err != nil {
		s.logger.Error("Failed to update task", "error", err, "task_id", taskID)
		return nil, err
	}

	completion, err := s.recomputeProgress(ctx, w)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.NewTaskEvent(eventType, t.WorkflowID, t.ID, payload))
	if completion != nil {
		s.bus.Publish(ctx, completion)
	}

	return t, nil
}

// recomputeProgress re-reads the task set and updates the workflow's derived
// progress. When progress reaches 100 on an IN_PROGRESS workflow whose type
// needs no approval, the workflow completes atomically with the recompute;
// the returned completion event (nil otherwise) is published by the caller.
// Terminal workflows still get their progress recomputed for audit reads but
// never re-trigger completion.
func (s *taskServiceImpl) recomputeProgress(ctx context.Context, w *entity.Workflow) (*event.Event, error) {
	tasks, err := s.taskRepo.ListByWorkflowID(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("list tasks for progress: %w", err)
	}

	progress := entity.ComputeProgress(tasks)
	completed := progress == 100 &&
		w.Status == entity.StatusInProgress &&
		!w.Type.RequiresApproval()

	if progress == w.Progress && !completed {
		return nil, nil
	}

	previous := w.Status
	w.Progress = progress
	if completed {
		w.Status = entity.StatusCompleted
		now := time.Now()
		w.CompletedDate = &now
	}

	w.UpdatedAt = time.Now()
	if err := s.workflowRepo.Update(ctx, w, w.Version); err != nil {
		return nil, fmt.Errorf("update workflow progress: %w", err)
	}

	if !completed {
		return nil, nil
	}

	s.logger.Info("Workflow auto-completed", "workflow_id", w.ID, "previous_status", previous.String())
	return event.NewEvent(event.TypeWorkflowCompleted, w.ID, map[string]interface{}{
		"previous_status": previous.String(),
		"new_status":      w.Status.String(),
	}), nil
}
