package workflow

import (
	"context"

	"github.com/clinvera/regflow/internal/domain/entity"
)

// StateMachine tracks the current workflow status and validates transitions
type StateMachine interface {
	// State returns the current status
	State() entity.Status

	// CanFire returns true if the trigger is permitted in the current status
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new status if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current status
	PermittedTriggers() []Trigger
}
