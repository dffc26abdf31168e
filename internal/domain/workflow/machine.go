package workflow

import "context"

// StateMachine tracks the current fulfillment state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has at least one configured transition from the current state
	CanFire(trigger Trigger) bool

	// Fire executes the first transition whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger

	// Targets returns the states a trigger may lead to from the current state, in configuration order
	Targets(trigger Trigger) []State
}
