package workflow

import (
	"context"

	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/event"
	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
	domainwf "github.com/garyjia/claims-fulfillment/internal/domain/workflow"
)

// Transition is one requested state change of a fulfillment record
type Transition struct {
	Trigger domainwf.Trigger

	// Decision is the target status, and the fulfillment type when set
	Decision fulfillment.Decision

	// Note is recorded on the history row
	Note string

	// Mutate applies the field changes of the step to the working copy
	Mutate func(record *entity.FulfillmentRecord) error

	// OnCommit runs inside the transaction after the record is written.
	// An error rolls the whole transition back.
	OnCommit func(ctx context.Context, record *entity.FulfillmentRecord) error

	// Events are published after commit, in order, followed by a status change event
	Events []event.Type
}

// Engine applies transitions to fulfillment records
type Engine interface {
	// Apply fires the transition against a copy of current and persists it.
	// current is never modified; on any error the caller's record is unchanged.
	Apply(ctx context.Context, current *entity.FulfillmentRecord, t Transition) (*entity.FulfillmentRecord, error)

	// PermittedTriggers lists the triggers the record's status accepts
	PermittedTriggers(record *entity.FulfillmentRecord) []domainwf.Trigger
}
