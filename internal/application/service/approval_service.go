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

// ApprovalPolicy configures how reviewer decisions resolve the gate.
// RejectionFatal (the default) terminates the workflow on the first reject;
// with it disabled, a rejection is recorded but the workflow stays pending.
type ApprovalPolicy struct {
	RejectionFatal bool
}

// DefaultApprovalPolicy matches the observed production behavior
func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{RejectionFatal: true}
}

// ReviewInput is one reviewer's decision on a pending workflow
type ReviewInput struct {
	ReviewerID string
	Decision   string
	Comment    string
}

// ApprovalService manages the review gate for approval-required workflow
// types: submission for review, individual reviewer decisions, and the
// resulting terminal transitions.
type ApprovalService interface {
	// SubmitForReview moves the workflow to PENDING_APPROVAL and records the
	// required reviewer set. The quorum is supplied by the caller; the
	// engine does not infer it.
	SubmitForReview(ctx context.Context, workflowID string, reviewers []string, expectedVersion int64) (*entity.Workflow, error)

	// Review records one reviewer's decision and resolves the gate when the
	// policy says so
	Review(ctx context.Context, workflowID string, in ReviewInput) (*entity.Workflow, error)

	// History returns the workflow's recorded review decisions
	History(ctx context.Context, workflowID string) ([]*entity.Review, error)
}

type approvalServiceImpl struct {
	workflowRepo port.WorkflowRepository
	reviewRepo   port.ReviewRepository
	txManager    port.TransactionManager
	locks        *WorkflowLocks
	bus          bus.EventBus
	policy       ApprovalPolicy
	logger       Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	workflowRepo port.WorkflowRepository,
	reviewRepo port.ReviewRepository,
	txManager port.TransactionManager,
	locks *WorkflowLocks,
	eventBus bus.EventBus,
	policy ApprovalPolicy,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		workflowRepo: workflowRepo,
		reviewRepo:   reviewRepo,
		txManager:    txManager,
		locks:        locks,
		bus:          eventBus,
		policy:       policy,
		logger:       logger,
	}
}

// SubmitForReview transitions the workflow to PENDING_APPROVAL
func (s *approvalServiceImpl) SubmitForReview(ctx context.Context, workflowID string, reviewers []string, expectedVersion int64) (*entity.Workflow, error) {
	if len(reviewers) == 0 {
		return nil, fmt.Errorf("%w: at least one required reviewer", entity.ErrValidation)
	}
	seen := make(map[string]bool, len(reviewers))
	for _, r := range reviewers {
		if r == "" {
			return nil, fmt.Errorf("%w: empty reviewer id", entity.ErrValidation)
		}
		if seen[r] {
			return nil, fmt.Errorf("%w: duplicate reviewer %s", entity.ErrValidation, r)
		}
		seen[r] = true
	}

	unlock := s.locks.Lock(workflowID)
	defer unlock()

	w, err := s.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	machine := domainwf.BuildMachine(w.Status, w.Type.RequiresApproval(), w.Progress)
	if err := machine.Fire(ctx, domainwf.TriggerSubmit); err != nil {
		return nil, err
	}

	previous := w.Status
	w.Status = machine.State()
	w.RequiredReviewers = append([]string{}, reviewers...)
	w.UpdatedAt = time.Now()

	if expectedVersion == 0 {
		expectedVersion = w.Version
	}
	if err := s.workflowRepo.Update(ctx, w, expectedVersion); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowUpdated, w.ID, map[string]interface{}{
		"previous_status": previous.String(),
		"new_status":      w.Status.String(),
		"reviewer_count":  len(reviewers),
	}))

	s.logger.Info("Workflow submitted for review",
		"workflow_id", w.ID,
		"reviewers", len(reviewers))
	return w, nil
}

// Review records a decision and resolves the gate.
// Any reject terminates the workflow under the default policy; completion
// requires an approval from every required reviewer. When rejection is not
// fatal, a reviewer may supersede their own earlier rejection with a new
// decision; approvals are always final.
func (s *approvalServiceImpl) Review(ctx context.Context, workflowID string, in ReviewInput) (*entity.Workflow, error) {
	if in.Decision != entity.DecisionApprove && in.Decision != entity.DecisionReject {
		return nil, fmt.Errorf("%w: decision must be %q or %q", entity.ErrValidation, entity.DecisionApprove, entity.DecisionReject)
	}

	unlock := s.locks.Lock(workflowID)
	defer unlock()

	w, err := s.workflowRepo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if w.Status != entity.StatusPendingApproval {
		return nil, fmt.Errorf("%w: workflow %s is %s, not pending approval", domainwf.ErrInvalidTransition, w.ID, w.Status)
	}

	required := false
	for _, r := range w.RequiredReviewers {
		if r == in.ReviewerID {
			required = true
			break
		}
	}
	if !required {
		return nil, fmt.Errorf("%w: %s is not a required reviewer", entity.ErrValidation, in.ReviewerID)
	}

	existing, err := s.reviewRepo.ListByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load review history: %w", err)
	}
	approvals := make(map[string]bool)
	var prior *entity.Review
	for _, r := range existing {
		if r.ReviewerID == in.ReviewerID {
			prior = r
			continue
		}
		if r.Decision == entity.DecisionApprove {
			approvals[r.ReviewerID] = true
		}
	}
	// A recorded rejection under a non-fatal policy would otherwise leave the
	// gate permanently short of quorum
	if prior != nil && (s.policy.RejectionFatal || prior.Decision != entity.DecisionReject) {
		return nil, fmt.Errorf("%w: %s already decided", entity.ErrValidation, in.ReviewerID)
	}

	review := &entity.Review{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		ReviewerID: in.ReviewerID,
		Decision:   in.Decision,
		Comment:    in.Comment,
		DecidedAt:  time.Now(),
	}
	if prior != nil {
		review.ID = prior.ID
	}

	var trigger domainwf.Trigger
	switch {
	case in.Decision == entity.DecisionReject && s.policy.RejectionFatal:
		trigger = domainwf.TriggerReject
	case in.Decision == entity.DecisionApprove:
		approvals[in.ReviewerID] = true
		if len(approvals) == len(w.RequiredReviewers) {
			trigger = domainwf.TriggerApprove
		}
	}

	previous := w.Status
	if trigger != "" {
		machine := domainwf.BuildMachine(w.Status, w.Type.RequiresApproval(), w.Progress)
		if err := machine.Fire(ctx, trigger); err != nil {
			return nil, err
		}
		w.Status = machine.State()
		if w.Status == entity.StatusCompleted {
			now := time.Now()
			w.CompletedDate = &now
		}
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if prior != nil {
			if err := s.reviewRepo.Update(txCtx, review); err != nil {
				return fmt.Errorf("supersede review: %w", err)
			}
		} else if err := s.reviewRepo.Create(txCtx, review); err != nil {
			return fmt.Errorf("record review: %w", err)
		}
		if trigger != "" {
			w.UpdatedAt = time.Now()
			if err := s.workflowRepo.Update(txCtx, w, w.Version); err != nil {
				return fmt.Errorf("update workflow status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record review", "error", err, "workflow_id", workflowID)
		return nil, err
	}

	switch w.Status {
	case entity.StatusCompleted:
		s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowCompleted, w.ID, map[string]interface{}{
			"previous_status": previous.String(),
			"new_status":      w.Status.String(),
		}))
	case entity.StatusRejected:
		s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowUpdated, w.ID, map[string]interface{}{
			"previous_status": previous.String(),
			"new_status":      w.Status.String(),
			"rejected_by":     in.ReviewerID,
		}))
	default:
		s.bus.Publish(ctx, event.NewEvent(event.TypeWorkflowUpdated, w.ID, map[string]interface{}{
			"reviewer": in.ReviewerID,
			"decision": in.Decision,
		}))
	}

	s.logger.Info("Review recorded",
		"workflow_id", workflowID,
		"reviewer", in.ReviewerID,
		"decision", in.Decision,
		"status", w.Status.String())
	return w, nil
}

// History returns the workflow's review decisions
func (s *approvalServiceImpl) History(ctx context.Context, workflowID string) ([]*entity.Review, error) {
	if _, err := s.workflowRepo.GetByID(ctx, workflowID); err != nil {
		return nil, err
	}
	return s.reviewRepo.ListByWorkflowID(ctx, workflowID)
}
