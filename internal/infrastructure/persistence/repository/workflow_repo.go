package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
	"github.com/clinvera/regflow/internal/infrastructure/persistence/sqlite"
)

// WorkflowRepository implements port.WorkflowRepository on SQLite
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

const workflowColumns = `
	id, name, type, description, status, progress,
	start_date, due_date, completed_date, cancel_reason,
	created_by, organization_id, module_id, project_id,
	required_reviewers, created_at, updated_at, version
`

// Create inserts a new workflow row
func (r *WorkflowRepository) Create(ctx context.Context, w *entity.Workflow) error {
	query := `
		INSERT INTO workflows (
			id, name, type, description, status, progress,
			start_date, due_date, completed_date, cancel_reason,
			created_by, organization_id, module_id, project_id,
			required_reviewers, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	reviewers, err := marshalReviewers(w.RequiredReviewers)
	if err != nil {
		return err
	}

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		w.ID,
		w.Name,
		w.Type.String(),
		nullString(w.Description),
		w.Status.String(),
		w.Progress,
		w.StartDate,
		nullTime(w.DueDate),
		nullTime(w.CompletedDate),
		nullString(w.CancelReason),
		w.CreatedBy,
		w.OrganizationID,
		w.ModuleID,
		w.ProjectID,
		reviewers,
		w.CreatedAt,
		w.UpdatedAt,
		w.Version,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow",
			zap.String("workflow_id", w.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow by id
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ?`

	w, err := scanWorkflow(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get workflow",
			zap.String("workflow_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return w, nil
}

// List returns workflows matching the filter, most recently updated first
func (r *WorkflowRepository) List(ctx context.Context, filter port.WorkflowFilter) ([]*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE 1=1`
	args := []interface{}{}

	if filter.ModuleID != "" {
		query += " AND module_id = ?"
		args = append(args, filter.ModuleID)
	}
	if filter.OrganizationID != "" {
		query += " AND organization_id = ?"
		args = append(args, filter.OrganizationID)
	}
	if filter.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.CreatedBy != "" {
		query += " AND created_by = ?"
		args = append(args, filter.CreatedBy)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status.String())
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type.String())
	}

	query += " ORDER BY updated_at DESC"

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*entity.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, w)
	}

	return workflows, rows.Err()
}

// Update writes the workflow with a compare-and-swap on version
func (r *WorkflowRepository) Update(ctx context.Context, w *entity.Workflow, expectedVersion int64) error {
	query := `
		UPDATE workflows
		SET name = ?, type = ?, description = ?, status = ?, progress = ?,
			start_date = ?, due_date = ?, completed_date = ?, cancel_reason = ?,
			required_reviewers = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	reviewers, err := marshalReviewers(w.RequiredReviewers)
	if err != nil {
		return err
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		w.Name,
		w.Type.String(),
		nullString(w.Description),
		w.Status.String(),
		w.Progress,
		w.StartDate,
		nullTime(w.DueDate),
		nullTime(w.CompletedDate),
		nullString(w.CancelReason),
		reviewers,
		w.UpdatedAt,
		w.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update workflow",
			zap.String("workflow_id", w.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or the version moved underneath the caller
		var exists int
		row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, "SELECT 1 FROM workflows WHERE id = ?", w.ID)
		if err := row.Scan(&exists); err == sql.ErrNoRows {
			return fmt.Errorf("workflow %s: %w", w.ID, entity.ErrNotFound)
		}
		return fmt.Errorf("workflow %s at version %d: %w", w.ID, expectedVersion, entity.ErrConflict)
	}

	w.Version = expectedVersion + 1
	return nil
}

// Delete removes a workflow row
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete workflow",
			zap.String("workflow_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("workflow %s: %w", id, entity.ErrNotFound)
	}

	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanWorkflow scans a single workflow row
func scanWorkflow(row rowScanner) (*entity.Workflow, error) {
	var w entity.Workflow
	var description, cancelReason, reviewers sql.NullString
	var dueDate, completedDate sql.NullTime
	var wfType, status string

	err := row.Scan(
		&w.ID,
		&w.Name,
		&wfType,
		&description,
		&status,
		&w.Progress,
		&w.StartDate,
		&dueDate,
		&completedDate,
		&cancelReason,
		&w.CreatedBy,
		&w.OrganizationID,
		&w.ModuleID,
		&w.ProjectID,
		&reviewers,
		&w.CreatedAt,
		&w.UpdatedAt,
		&w.Version,
	)
	if err != nil {
		return nil, err
	}

	w.Type = entity.WorkflowType(wfType)
	w.Status = entity.Status(status)
	if description.Valid {
		w.Description = description.String
	}
	if cancelReason.Valid {
		w.CancelReason = cancelReason.String
	}
	if dueDate.Valid {
		t := dueDate.Time
		w.DueDate = &t
	}
	if completedDate.Valid {
		t := completedDate.Time
		w.CompletedDate = &t
	}
	if reviewers.Valid && reviewers.String != "" {
		if err := json.Unmarshal([]byte(reviewers.String), &w.RequiredReviewers); err != nil {
			return nil, fmt.Errorf("failed to decode required reviewers: %w", err)
		}
	}

	return &w, nil
}

// marshalReviewers encodes the required reviewer set for storage
func marshalReviewers(reviewers []string) (sql.NullString, error) {
	if len(reviewers) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(reviewers)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode required reviewers: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
