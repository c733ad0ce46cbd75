package workflow

import (
	"context"
	"fmt"

	"github.com/clinvera/regflow/internal/domain/entity"
)

// BuildMachine creates a state machine configured with the workflow status
// transition table. requiresApproval gates the review path: only types that
// complete through a review gate may move to PENDING_APPROVAL, and only types
// that do not may complete directly from IN_PROGRESS. progress guards direct
// completion: COMPLETE fires only at 100, keeping COMPLETED equivalent to a
// fully finished task set.
func BuildMachine(initial entity.Status, requiresApproval bool, progress int) StateMachine {
	builder := NewBuilder()

	builder.Configure(entity.StatusNotStarted).
		Permit(TriggerStart, entity.StatusInProgress).
		Permit(TriggerCancel, entity.StatusCancelled)

	cfg := builder.Configure(entity.StatusInProgress)
	cfg.Permit(TriggerHold, entity.StatusOnHold).
		Permit(TriggerCancel, entity.StatusCancelled)
	if requiresApproval {
		cfg.Permit(TriggerSubmit, entity.StatusPendingApproval)
	} else {
		cfg.PermitIf(TriggerComplete, entity.StatusCompleted, func(ctx context.Context) bool {
			return progress == 100
		})
	}

	builder.Configure(entity.StatusOnHold).
		Permit(TriggerResume, entity.StatusInProgress).
		Permit(TriggerCancel, entity.StatusCancelled)

	builder.Configure(entity.StatusPendingApproval).
		Permit(TriggerApprove, entity.StatusCompleted).
		Permit(TriggerReject, entity.StatusRejected).
		Permit(TriggerCancel, entity.StatusCancelled)

	// COMPLETED, REJECTED and CANCELLED are terminal - no outgoing transitions

	return builder.Build(initial)
}

// TriggerFor maps a requested status change to the trigger that performs it.
// Returns ErrInvalidTransition when no trigger produces the requested move.
func TriggerFor(from, to entity.Status) (Trigger, error) {
	switch {
	case from == entity.StatusNotStarted && to == entity.StatusInProgress:
		return TriggerStart, nil
	case from == entity.StatusInProgress && to == entity.StatusOnHold:
		return TriggerHold, nil
	case from == entity.StatusOnHold && to == entity.StatusInProgress:
		return TriggerResume, nil
	case from == entity.StatusInProgress && to == entity.StatusPendingApproval:
		return TriggerSubmit, nil
	case from == entity.StatusPendingApproval && to == entity.StatusCompleted:
		return TriggerApprove, nil
	case from == entity.StatusPendingApproval && to == entity.StatusRejected:
		return TriggerReject, nil
	case from == entity.StatusInProgress && to == entity.StatusCompleted:
		return TriggerComplete, nil
	case to == entity.StatusCancelled && !from.IsTerminal():
		return TriggerCancel, nil
	default:
		return "", fmt.Errorf("%w: no trigger moves %s to %s", ErrInvalidTransition, from, to)
	}
}
