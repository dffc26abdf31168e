package workflow

// Trigger represents a user action that can cause a state transition
type Trigger string

const (
	TriggerConfirmExcess      Trigger = "CONFIRM_EXCESS"
	TriggerConfirmDeviceValue Trigger = "CONFIRM_DEVICE_VALUE"
	TriggerOverrideType       Trigger = "OVERRIDE_TYPE"
	TriggerConfirmAppointment Trigger = "CONFIRM_APPOINTMENT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
