package workflow

import (
	"context"

	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
	domainwf "github.com/garyjia/claims-fulfillment/internal/domain/workflow"
)

type decisionKey struct{}

func withDecision(ctx context.Context, d fulfillment.Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

func decisionFrom(ctx context.Context) (fulfillment.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(fulfillment.Decision)
	return d, ok
}

// decidedAs passes when the routing decision carried by ctx lands on target
func decidedAs(target domainwf.State) domainwf.GuardFunc {
	return func(ctx context.Context) bool {
		d, ok := decisionFrom(ctx)
		return ok && d.Status == target
	}
}

// BuildFulfillmentStateMachine creates a state machine configured for the fulfillment flow.
// Every edge is guarded by the routing decision so the machine only accepts
// targets the routing rules can produce for that trigger.
func BuildFulfillmentStateMachine(initialState domainwf.State) (domainwf.StateMachine, error) {
	builder := domainwf.NewBuilder()

	// PENDING_EXCESS: routing after payment either completes (voucher) or opens scheduling
	builder.Configure(domainwf.StatePendingExcess).
		PermitIf(domainwf.TriggerConfirmExcess, domainwf.StateCompleted, decidedAs(domainwf.StateCompleted)).
		PermitIf(domainwf.TriggerConfirmExcess, domainwf.StateAwaitingAppointment, decidedAs(domainwf.StateAwaitingAppointment))

	// AWAITING_APPOINTMENT
	builder.Configure(domainwf.StateAwaitingAppointment).
		PermitIf(domainwf.TriggerConfirmDeviceValue, domainwf.StateCompleted, decidedAs(domainwf.StateCompleted)).
		PermitIf(domainwf.TriggerConfirmDeviceValue, domainwf.StateAwaitingAppointment, decidedAs(domainwf.StateAwaitingAppointment)).
		PermitIf(domainwf.TriggerOverrideType, domainwf.StateAwaitingAppointment, decidedAs(domainwf.StateAwaitingAppointment)).
		PermitIf(domainwf.TriggerConfirmAppointment, domainwf.StateScheduled, decidedAs(domainwf.StateScheduled))

	// COMPLETED: a voucher outcome can be corrected manually, which reopens scheduling
	builder.Configure(domainwf.StateCompleted).
		PermitIf(domainwf.TriggerOverrideType, domainwf.StateAwaitingAppointment, decidedAs(domainwf.StateAwaitingAppointment))

	// SCHEDULED is terminal

	return builder.Build(initialState)
}
