package event

// Type identifies the type of fulfillment event
type Type string

const (
	TypeExcessPaid           Type = "fulfillment.excess_paid"
	TypeRouted               Type = "fulfillment.routed"
	TypeTypeOverridden       Type = "fulfillment.type_overridden"
	TypeAppointmentScheduled Type = "fulfillment.appointment_scheduled"
	TypeStatusChanged        Type = "fulfillment.status_changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExcessPaid,
		TypeRouted,
		TypeTypeOverridden,
		TypeAppointmentScheduled,
		TypeStatusChanged:
		return true
	default:
		return false
	}
}

// All lists every event type, in lifecycle order
func All() []Type {
	return []Type{
		TypeExcessPaid,
		TypeRouted,
		TypeTypeOverridden,
		TypeAppointmentScheduled,
		TypeStatusChanged,
	}
}
