package entity

import (
	"fmt"
	"time"
)

// TaskStatus represents the status of a single task
type TaskStatus string

const (
	TaskNotStarted    TaskStatus = "NOT_STARTED"
	TaskInProgress    TaskStatus = "IN_PROGRESS"
	TaskPendingReview TaskStatus = "PENDING_REVIEW"
	TaskComplete      TaskStatus = "COMPLETE"
	TaskBlocked       TaskStatus = "BLOCKED"
)

var validTaskStatuses = map[TaskStatus]bool{
	TaskNotStarted:    true,
	TaskInProgress:    true,
	TaskPendingReview: true,
	TaskComplete:      true,
	TaskBlocked:       true,
}

// Legal task status moves. BLOCKED is a caller-settable flag: any non-complete
// task may be blocked and later returned to any non-complete status. There is
// no dependency mechanism that sets it automatically.
var taskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskNotStarted:    {TaskInProgress: true, TaskComplete: true, TaskBlocked: true},
	TaskInProgress:    {TaskPendingReview: true, TaskComplete: true, TaskBlocked: true},
	TaskPendingReview: {TaskInProgress: true, TaskComplete: true, TaskBlocked: true},
	TaskBlocked:       {TaskNotStarted: true, TaskInProgress: true, TaskPendingReview: true},
	TaskComplete:      {},
}

// IsValid returns true if the status is a valid task status
func (s TaskStatus) IsValid() bool {
	return validTaskStatuses[s]
}

// CanTransition returns true if the move from s to target is permitted
func (s TaskStatus) CanTransition(target TaskStatus) bool {
	return taskTransitions[s][target]
}

// String returns the string representation of the task status
func (s TaskStatus) String() string {
	return string(s)
}

// Task is an ordered unit of work owned by exactly one workflow.
// Order defines sequential display order within the workflow, not a
// dependency graph; values are unique per workflow but may have gaps.
type Task struct {
	ID             string     `json:"id"`
	WorkflowID     string     `json:"workflow_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Status         TaskStatus `json:"status"`
	Order          int        `json:"order"`
	AssignedTo     string     `json:"assigned_to,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletedDate  *time.Time `json:"completed_date,omitempty"`
	CompletedBy    string     `json:"completed_by,omitempty"`
	CompletionNote string     `json:"completion_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Validate checks required fields and enum values
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: task name is required", ErrValidation)
	}
	if t.WorkflowID == "" {
		return fmt.Errorf("%w: task workflow id is required", ErrValidation)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: unrecognized task status %q", ErrValidation, t.Status)
	}
	if t.Order <= 0 {
		return fmt.Errorf("%w: task order must be positive, got %d", ErrValidation, t.Order)
	}
	return nil
}
