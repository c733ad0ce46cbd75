package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
	"github.com/clinvera/regflow/internal/infrastructure/persistence/sqlite"
)

// TaskRepository implements port.TaskRepository on SQLite
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `
	id, workflow_id, name, description, status, task_order,
	assigned_to, due_date, completed_date, completed_by,
	completion_note, created_at
`

// Create inserts a new task row. A duplicate order within the workflow
// violates the unique index and surfaces as entity.ErrValidation.
func (r *TaskRepository) Create(ctx context.Context, t *entity.Task) error {
	query := `
		INSERT INTO tasks (
			id, workflow_id, name, description, status, task_order,
			assigned_to, due_date, completed_date, completed_by,
			completion_note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		t.ID,
		t.WorkflowID,
		t.Name,
		nullString(t.Description),
		t.Status.String(),
		t.Order,
		nullString(t.AssignedTo),
		nullTime(t.DueDate),
		nullTime(t.CompletedDate),
		nullString(t.CompletedBy),
		nullString(t.CompletionNote),
		t.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: order %d already taken in workflow %s", entity.ErrValidation, t.Order, t.WorkflowID)
		}
		r.logger.Error("Failed to create task",
			zap.String("task_id", t.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by id
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	t, err := scanTask(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get task",
			zap.String("task_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return t, nil
}

// ListByWorkflowID returns the workflow's tasks ordered by task_order
func (r *TaskRepository) ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE workflow_id = ? ORDER BY task_order ASC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		r.logger.Error("Failed to list tasks",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// MaxOrder returns the highest order value in the workflow, 0 when empty
func (r *TaskRepository) MaxOrder(ctx context.Context, workflowID string) (int, error) {
	var max sql.NullInt64
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		"SELECT MAX(task_order) FROM tasks WHERE workflow_id = ?", workflowID)
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max task order: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// Update writes the full task row
func (r *TaskRepository) Update(ctx context.Context, t *entity.Task) error {
	query := `
		UPDATE tasks
		SET name = ?, description = ?, status = ?, task_order = ?,
			assigned_to = ?, due_date = ?, completed_date = ?,
			completed_by = ?, completion_note = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		t.Name,
		nullString(t.Description),
		t.Status.String(),
		t.Order,
		nullString(t.AssignedTo),
		nullTime(t.DueDate),
		nullTime(t.CompletedDate),
		nullString(t.CompletedBy),
		nullString(t.CompletionNote),
		t.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: order %d already taken in workflow %s", entity.ErrValidation, t.Order, t.WorkflowID)
		}
		r.logger.Error("Failed to update task",
			zap.String("task_id", t.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", t.ID, entity.ErrNotFound)
	}

	return nil
}

// Delete removes a task row
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete task",
			zap.String("task_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to delete task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, entity.ErrNotFound)
	}

	return nil
}

// DeleteByWorkflowID removes every task in the workflow
func (r *TaskRepository) DeleteByWorkflowID(ctx context.Context, workflowID string) error {
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		"DELETE FROM tasks WHERE workflow_id = ?", workflowID)
	if err != nil {
		r.logger.Error("Failed to delete workflow tasks",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return fmt.Errorf("failed to delete workflow tasks: %w", err)
	}
	return nil
}

// ListByAssignee returns every task assigned to the user across workflows
func (r *TaskRepository) ListByAssignee(ctx context.Context, userID string, filter port.TaskFilter) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = ?`
	args := []interface{}{userID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status.String())
	}
	query += " ORDER BY workflow_id, task_order ASC"

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list tasks by assignee",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks by assignee: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// scanTask scans a single task row
func scanTask(row rowScanner) (*entity.Task, error) {
	var t entity.Task
	var description, assignedTo, completedBy, completionNote sql.NullString
	var dueDate, completedDate sql.NullTime
	var status string

	err := row.Scan(
		&t.ID,
		&t.WorkflowID,
		&t.Name,
		&description,
		&status,
		&t.Order,
		&assignedTo,
		&dueDate,
		&completedDate,
		&completedBy,
		&completionNote,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = entity.TaskStatus(status)
	if description.Valid {
		t.Description = description.String
	}
	if assignedTo.Valid {
		t.AssignedTo = assignedTo.String
	}
	if completedBy.Valid {
		t.CompletedBy = completedBy.String
	}
	if completionNote.Valid {
		t.CompletionNote = completionNote.String
	}
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	if completedDate.Valid {
		d := completedDate.Time
		t.CompletedDate = &d
	}

	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]*entity.Task, error) {
	var tasks []*entity.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
