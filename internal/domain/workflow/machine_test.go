package workflow

import (
	"context"
	"errors"
	"testing"
)

type routeKey struct{}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePendingExcess, false},
		{StateAwaitingAppointment, false},
		{StateScheduled, true},
		{StateCompleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"initial state", StatePendingExcess, true},
		{"terminal state", StateCompleted, true},
		{"unknown state", State("cancelled"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerConfirmExcess.String(); got != "CONFIRM_EXCESS" {
		t.Errorf("Trigger.String() = %v, want %v", got, "CONFIRM_EXCESS")
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StatePendingExcess)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(StatePendingExcess); config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildRejectsInvalidInitialState(t *testing.T) {
	_, err := NewBuilder().Build(State("INVALID"))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Build() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestStateConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingAppointment).
		Permit(TriggerConfirmAppointment, StateScheduled)

	machine, err := builder.Build(StateAwaitingAppointment)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if !machine.CanFire(TriggerConfirmAppointment) {
		t.Error("CanFire() should return true for permitted trigger")
	}

	if err := machine.Fire(context.Background(), TriggerConfirmAppointment); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine.State() != StateScheduled {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateScheduled)
	}
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingExcess).
		PermitIf(TriggerConfirmExcess, StateCompleted, func(ctx context.Context) bool {
			return false
		})

	machine, _ := builder.Build(StatePendingExcess)

	err := machine.Fire(context.Background(), TriggerConfirmExcess)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}

	if machine.State() != StatePendingExcess {
		t.Errorf("State should remain %v after failed Fire(), got %v", StatePendingExcess, machine.State())
	}
}

func TestStateConfiguration_PermitIf_FirstPassingGuardWins(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingExcess).
		PermitIf(TriggerConfirmExcess, StateCompleted, func(ctx context.Context) bool {
			return ctx.Value(routeKey{}) == "voucher"
		}).
		PermitIf(TriggerConfirmExcess, StateAwaitingAppointment, func(ctx context.Context) bool {
			return ctx.Value(routeKey{}) != "voucher"
		})

	tests := []struct {
		route string
		want  State
	}{
		{"voucher", StateCompleted},
		{"collection_repair", StateAwaitingAppointment},
		{"in_home_repair", StateAwaitingAppointment},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			machine, _ := builder.Build(StatePendingExcess)
			ctx := context.WithValue(context.Background(), routeKey{}, tt.route)

			if err := machine.Fire(ctx, TriggerConfirmExcess); err != nil {
				t.Fatalf("Fire() failed: %v", err)
			}
			if machine.State() != tt.want {
				t.Errorf("State = %v, want %v", machine.State(), tt.want)
			}
		})
	}
}

func TestStateMachine_Fire_InvalidTrigger(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingExcess).
		Permit(TriggerConfirmExcess, StateAwaitingAppointment)

	machine, _ := builder.Build(StatePendingExcess)

	err := machine.Fire(context.Background(), TriggerConfirmAppointment)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}

	if machine.State() != StatePendingExcess {
		t.Errorf("State should remain %v after failed Fire(), got %v", StatePendingExcess, machine.State())
	}
}

func TestStateMachine_Fire_NoConfiguration(t *testing.T) {
	machine, _ := NewBuilder().Build(StateScheduled)

	err := machine.Fire(context.Background(), TriggerConfirmAppointment)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestStateMachine_PermittedTriggersSorted(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingAppointment).
		Permit(TriggerOverrideType, StateAwaitingAppointment).
		Permit(TriggerConfirmAppointment, StateScheduled).
		Permit(TriggerConfirmDeviceValue, StateCompleted)

	machine, _ := builder.Build(StateAwaitingAppointment)

	got := machine.PermittedTriggers()
	want := []Trigger{TriggerConfirmAppointment, TriggerConfirmDeviceValue, TriggerOverrideType}
	if len(got) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStateMachine_Targets(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingExcess).
		PermitIf(TriggerConfirmExcess, StateCompleted, nil).
		PermitIf(TriggerConfirmExcess, StateAwaitingAppointment, nil)

	machine, _ := builder.Build(StatePendingExcess)

	targets := machine.Targets(TriggerConfirmExcess)
	if len(targets) != 2 || targets[0] != StateCompleted || targets[1] != StateAwaitingAppointment {
		t.Errorf("Targets() = %v", targets)
	}
	if got := machine.Targets(TriggerConfirmAppointment); len(got) != 0 {
		t.Errorf("Targets() for unconfigured trigger = %v, want empty", got)
	}
}

func TestStateMachine_Independence(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateAwaitingAppointment).
		Permit(TriggerConfirmAppointment, StateScheduled)

	machine1, _ := builder.Build(StateAwaitingAppointment)
	machine2, _ := builder.Build(StateAwaitingAppointment)

	if err := machine1.Fire(context.Background(), TriggerConfirmAppointment); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine2.State() != StateAwaitingAppointment {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), StateAwaitingAppointment)
	}
}

func TestStateMachine_TerminalHasNoTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StatePendingExcess).
		Permit(TriggerConfirmExcess, StateAwaitingAppointment)
	builder.Configure(StateAwaitingAppointment).
		Permit(TriggerConfirmAppointment, StateScheduled)

	machine, _ := builder.Build(StatePendingExcess)

	for _, trigger := range []Trigger{TriggerConfirmExcess, TriggerConfirmAppointment} {
		if err := machine.Fire(context.Background(), trigger); err != nil {
			t.Fatalf("Fire(%v) failed: %v", trigger, err)
		}
	}

	if !machine.State().IsTerminal() {
		t.Error("Final state should be terminal")
	}
	if triggers := machine.PermittedTriggers(); len(triggers) != 0 {
		t.Errorf("Terminal state should have 0 permitted triggers, got %d", len(triggers))
	}
}
