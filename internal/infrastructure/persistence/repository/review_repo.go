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

// ReviewRepository implements port.ReviewRepository on SQLite
type ReviewRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sql.DB, logger *zap.Logger) port.ReviewRepository {
	return &ReviewRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a review decision. One decision per reviewer per workflow
// is enforced by a unique index.
func (r *ReviewRepository) Create(ctx context.Context, review *entity.Review) error {
	query := `
		INSERT INTO reviews (id, workflow_id, reviewer_id, decision, comment, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		review.ID,
		review.WorkflowID,
		review.ReviewerID,
		review.Decision,
		nullString(review.Comment),
		review.DecidedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: reviewer %s already decided on workflow %s",
				entity.ErrValidation, review.ReviewerID, review.WorkflowID)
		}
		r.logger.Error("Failed to create review",
			zap.String("workflow_id", review.WorkflowID),
			zap.String("reviewer_id", review.ReviewerID),
			zap.Error(err))
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// Update replaces an existing reviewer's decision on the workflow
func (r *ReviewRepository) Update(ctx context.Context, review *entity.Review) error {
	query := `
		UPDATE reviews
		SET decision = ?, comment = ?, decided_at = ?
		WHERE workflow_id = ? AND reviewer_id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		review.Decision,
		nullString(review.Comment),
		review.DecidedAt,
		review.WorkflowID,
		review.ReviewerID,
	)
	if err != nil {
		r.logger.Error("Failed to update review",
			zap.String("workflow_id", review.WorkflowID),
			zap.String("reviewer_id", review.ReviewerID),
			zap.Error(err))
		return fmt.Errorf("failed to update review: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("review by %s on workflow %s: %w",
			review.ReviewerID, review.WorkflowID, entity.ErrNotFound)
	}

	return nil
}

// ListByWorkflowID returns the workflow's reviews in decision order
func (r *ReviewRepository) ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Review, error) {
	query := `
		SELECT id, workflow_id, reviewer_id, decision, comment, decided_at
		FROM reviews
		WHERE workflow_id = ?
		ORDER BY decided_at ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		r.logger.Error("Failed to list reviews",
			zap.String("workflow_id", workflowID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*entity.Review
	for rows.Next() {
		var review entity.Review
		var comment sql.NullString
		if err := rows.Scan(
			&review.ID,
			&review.WorkflowID,
			&review.ReviewerID,
			&review.Decision,
			&comment,
			&review.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		if comment.Valid {
			review.Comment = comment.String
		}
		reviews = append(reviews, &review)
	}

	return reviews, rows.Err()
}
