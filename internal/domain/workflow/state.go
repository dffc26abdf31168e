package workflow

// State is a fulfillment status persisted on the fulfillment record
type State string

const (
	StatePendingExcess       State = "pending_excess"
	StateAwaitingAppointment State = "awaiting_appointment"
	StateScheduled           State = "scheduled"
	StateCompleted           State = "completed"
)

var validStates = map[State]bool{
	StatePendingExcess:       true,
	StateAwaitingAppointment: true,
	StateScheduled:           true,
	StateCompleted:           true,
}

var terminalStates = map[State]bool{
	StateScheduled: true,
	StateCompleted: true,
}

// IsTerminal returns true if the state ends the fulfillment flow
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known fulfillment status
func (s State) IsValid() bool {
	return validStates[s]
}
