package fulfillment

import (
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/workflow"
)

// Step is the screen shown to the user. It is always derived from the record, never stored.
type Step int

const (
	StepExcessPayment Step = 1
	StepSchedule      Step = 4
	StepComplete      Step = 5
)

func (s Step) String() string {
	switch s {
	case StepExcessPayment:
		return "excess_payment"
	case StepSchedule:
		return "schedule"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// DeriveStep projects a record onto the current step
func DeriveStep(record *entity.FulfillmentRecord) Step {
	switch {
	case record == nil || !record.ExcessPaid:
		return StepExcessPayment
	case record.FulfillmentType == entity.FulfillmentVoucher || record.Status == workflow.StateScheduled:
		return StepComplete
	default:
		return StepSchedule
	}
}
