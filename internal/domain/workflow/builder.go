package workflow

import (
	"context"
	"fmt"

	"github.com/clinvera/regflow/internal/domain/entity"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a status configuration for the given status
	Configure(status entity.Status) StateConfiguration

	// Build creates a new state machine instance with the given initial status
	Build(initial entity.Status) StateMachine
}

// StateConfiguration configures transitions for a specific status
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target status
	Permit(trigger Trigger, to entity.Status) StateConfiguration

	// PermitIf allows a trigger to transition to the target status if the guard passes
	PermitIf(trigger Trigger, to entity.Status, guard GuardFunc) StateConfiguration
}

// transition represents a status transition with optional guard
type transition struct {
	to    entity.Status
	guard GuardFunc
}

// stateConfig implements StateConfiguration
type stateConfig struct {
	builder     *stateMachineBuilder
	from        entity.Status
	transitions map[Trigger][]transition
}

// stateMachineBuilder implements StateMachineBuilder
type stateMachineBuilder struct {
	configurations map[entity.Status]*stateConfig
}

// stateMachine implements StateMachine
type stateMachine struct {
	current        entity.Status
	configurations map[entity.Status]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[entity.Status]*stateConfig),
	}
}

// Configure returns a status configuration for the given status
func (b *stateMachineBuilder) Configure(status entity.Status) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			builder:     b,
			from:        status,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial status
func (b *stateMachineBuilder) Build(initial entity.Status) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	// Deep copy configurations so built machines are independent of the builder
	configsCopy := make(map[entity.Status]*stateConfig)
	for status, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition)
		for trigger, transitions := range config.transitions {
			transitionsCopy[trigger] = append([]transition{}, transitions...)
		}
		configsCopy[status] = &stateConfig{
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows a trigger to transition to the target status
func (c *stateConfig) Permit(trigger Trigger, to entity.Status) StateConfiguration {
	return c.PermitIf(trigger, to, nil)
}

// PermitIf allows a trigger to transition to the target status if the guard passes
func (c *stateConfig) PermitIf(trigger Trigger, to entity.Status, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// State returns the current status
func (m *stateMachine) State() entity.Status {
	return m.current
}

// CanFire returns true if the trigger is permitted in the current status.
// Guards are not evaluated here; any configured transition counts.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}

	transitions, exists := config.transitions[trigger]
	return exists && len(transitions) > 0
}

// Fire attempts to execute the trigger, transitioning to the new status if allowed
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from status %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	transitions, exists := config.transitions[trigger]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from status %s", ErrInvalidTransition, trigger, m.current)
	}

	// Try each transition in order until one succeeds
	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	// All guards failed
	return fmt.Errorf("%w: trigger %s from status %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns all triggers that can be fired in the current status
func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}

	return triggers
}
