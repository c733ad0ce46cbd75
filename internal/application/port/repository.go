package port

import (
	"context"

	"github.com/clinvera/regflow/internal/domain/entity"
)

// WorkflowFilter narrows a workflow listing. Zero-valued fields match everything.
type WorkflowFilter struct {
	ModuleID       string
	OrganizationID string
	ProjectID      string
	CreatedBy      string
	Status         entity.Status
	Type           entity.WorkflowType
}

// TaskFilter narrows a cross-workflow task listing
type TaskFilter struct {
	Status entity.TaskStatus
}

// WorkflowRepository defines persistence operations for Workflow aggregates.
// GetByID returns entity.ErrNotFound for unknown ids; Update returns
// entity.ErrConflict when expectedVersion does not match the stored version.
type WorkflowRepository interface {
	Create(ctx context.Context, w *entity.Workflow) error
	GetByID(ctx context.Context, id string) (*entity.Workflow, error)

	// List returns matching workflows ordered by updated_at descending
	List(ctx context.Context, filter WorkflowFilter) ([]*entity.Workflow, error)

	// Update persists w with a compare-and-swap on version: the row is written
	// only if its stored version equals expectedVersion, and w.Version is
	// bumped to expectedVersion+1 on success
	Update(ctx context.Context, w *entity.Workflow, expectedVersion int64) error

	Delete(ctx context.Context, id string) error
}

// TaskRepository defines persistence operations for Task entities.
// Tasks are scoped to one workflow; Create fails with entity.ErrValidation
// when the order value is already taken within the workflow.
type TaskRepository interface {
	Create(ctx context.Context, t *entity.Task) error
	GetByID(ctx context.Context, id string) (*entity.Task, error)

	// ListByWorkflowID returns the workflow's tasks sorted by order ascending
	ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Task, error)

	// MaxOrder returns the highest order value in the workflow, 0 when empty
	MaxOrder(ctx context.Context, workflowID string) (int, error)

	Update(ctx context.Context, t *entity.Task) error
	Delete(ctx context.Context, id string) error
	DeleteByWorkflowID(ctx context.Context, workflowID string) error

	// ListByAssignee returns every task assigned to the user across workflows
	ListByAssignee(ctx context.Context, userID string, filter TaskFilter) ([]*entity.Task, error)
}

// ReviewRepository defines persistence operations for review decisions
type ReviewRepository interface {
	Create(ctx context.Context, r *entity.Review) error

	// Update replaces the decision the reviewer already recorded on the
	// workflow; entity.ErrNotFound when there is none
	Update(ctx context.Context, r *entity.Review) error

	ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Review, error)
}

// TemplateRegistry provides read-only access to workflow templates.
// Templates are configuration loaded at startup, never mutated.
type TemplateRegistry interface {
	Get(id string) (*entity.Template, error)
	List() []*entity.Template
}

// TransactionManager handles store transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
