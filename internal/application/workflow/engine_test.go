package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/claims-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/event"
	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
	domainwf "github.com/garyjia/claims-fulfillment/internal/domain/workflow"
)

// Mock implementations

type mockRecordRepo struct {
	records   map[string]*entity.FulfillmentRecord
	upsertErr error
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[string]*entity.FulfillmentRecord)}
}

func (m *mockRecordRepo) Upsert(ctx context.Context, record *entity.FulfillmentRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records[record.ClaimID] = record.Clone()
	return nil
}

func (m *mockRecordRepo) GetByClaimID(ctx context.Context, claimID string) (*entity.FulfillmentRecord, error) {
	return m.records[claimID].Clone(), nil
}

func (m *mockRecordRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	for _, r := range m.records {
		if r.EngineerReference == reference || r.LogisticsReference == reference {
			return true, nil
		}
	}
	return false, nil
}

type mockHistoryRepo struct {
	histories []*entity.FulfillmentHistory
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.FulfillmentHistory) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.histories = append(m.histories, history)
	return nil
}

func (m *mockHistoryRepo) GetByClaimID(ctx context.Context, claimID string) ([]*entity.FulfillmentHistory, error) {
	var result []*entity.FulfillmentHistory
	for _, h := range m.histories {
		if h.ClaimID == claimID {
			result = append(result, h)
		}
	}
	return result, nil
}

type txMarker struct{}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(context.WithValue(ctx, txMarker{}, true))
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestEngine() (Engine, *mockRecordRepo, *mockHistoryRepo, *mockDispatcher) {
	records := newMockRecordRepo()
	history := &mockHistoryRepo{}
	d := &mockDispatcher{}
	engine := NewEngine(records, history, &mockTxManager{},
		WithDispatcher(d),
		WithClock(func() time.Time { return fixedNow }),
	)
	return engine, records, history, d
}

// Test factory

func TestBuildFulfillmentStateMachine(t *testing.T) {
	tests := []struct {
		name         string
		initialState domainwf.State
		trigger      domainwf.Trigger
		decision     domainwf.State
		wantState    domainwf.State
		wantErr      error
	}{
		{
			name:         "excess paid routes to scheduling",
			initialState: domainwf.StatePendingExcess,
			trigger:      domainwf.TriggerConfirmExcess,
			decision:     domainwf.StateAwaitingAppointment,
			wantState:    domainwf.StateAwaitingAppointment,
		},
		{
			name:         "excess paid routes straight to completed",
			initialState: domainwf.StatePendingExcess,
			trigger:      domainwf.TriggerConfirmExcess,
			decision:     domainwf.StateCompleted,
			wantState:    domainwf.StateCompleted,
		},
		{
			name:         "excess cannot jump to scheduled",
			initialState: domainwf.StatePendingExcess,
			trigger:      domainwf.TriggerConfirmExcess,
			decision:     domainwf.StateScheduled,
			wantState:    domainwf.StatePendingExcess,
			wantErr:      domainwf.ErrGuardFailed,
		},
		{
			name:         "cannot schedule before excess",
			initialState: domainwf.StatePendingExcess,
			trigger:      domainwf.TriggerConfirmAppointment,
			decision:     domainwf.StateScheduled,
			wantState:    domainwf.StatePendingExcess,
			wantErr:      domainwf.ErrInvalidTransition,
		},
		{
			name:         "device value to voucher",
			initialState: domainwf.StateAwaitingAppointment,
			trigger:      domainwf.TriggerConfirmDeviceValue,
			decision:     domainwf.StateCompleted,
			wantState:    domainwf.StateCompleted,
		},
		{
			name:         "device value keeps scheduling",
			initialState: domainwf.StateAwaitingAppointment,
			trigger:      domainwf.TriggerConfirmDeviceValue,
			decision:     domainwf.StateAwaitingAppointment,
			wantState:    domainwf.StateAwaitingAppointment,
		},
		{
			name:         "override while awaiting",
			initialState: domainwf.StateAwaitingAppointment,
			trigger:      domainwf.TriggerOverrideType,
			decision:     domainwf.StateAwaitingAppointment,
			wantState:    domainwf.StateAwaitingAppointment,
		},
		{
			name:         "override reopens a voucher",
			initialState: domainwf.StateCompleted,
			trigger:      domainwf.TriggerOverrideType,
			decision:     domainwf.StateAwaitingAppointment,
			wantState:    domainwf.StateAwaitingAppointment,
		},
		{
			name:         "appointment confirmed",
			initialState: domainwf.StateAwaitingAppointment,
			trigger:      domainwf.TriggerConfirmAppointment,
			decision:     domainwf.StateScheduled,
			wantState:    domainwf.StateScheduled,
		},
		{
			name:         "scheduled is terminal",
			initialState: domainwf.StateScheduled,
			trigger:      domainwf.TriggerOverrideType,
			decision:     domainwf.StateAwaitingAppointment,
			wantState:    domainwf.StateScheduled,
			wantErr:      domainwf.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine, err := BuildFulfillmentStateMachine(tt.initialState)
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}

			ctx := withDecision(context.Background(), fulfillment.Decision{Status: tt.decision})
			err = machine.Fire(ctx, tt.trigger)

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if machine.State() != tt.wantState {
				t.Errorf("expected state %s, got %s", tt.wantState, machine.State())
			}
		})
	}
}

func TestBuildFulfillmentStateMachine_NoDecision(t *testing.T) {
	machine, err := BuildFulfillmentStateMachine(domainwf.StatePendingExcess)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if err := machine.Fire(context.Background(), domainwf.TriggerConfirmExcess); !errors.Is(err, domainwf.ErrGuardFailed) {
		t.Errorf("expected guard failure without a decision, got %v", err)
	}
}

func TestBuildFulfillmentStateMachine_InvalidState(t *testing.T) {
	if _, err := BuildFulfillmentStateMachine(domainwf.State("archived")); !errors.Is(err, domainwf.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

// Test engine

func TestEngineApply_ExcessPaid(t *testing.T) {
	engine, records, history, d := newTestEngine()
	current := entity.NewFulfillmentRecord("claim-1")

	updated, err := engine.Apply(context.Background(), current, Transition{
		Trigger:  domainwf.TriggerConfirmExcess,
		Decision: fulfillment.Decision{Type: entity.FulfillmentCollectionRepair, Status: domainwf.StateAwaitingAppointment},
		Note:     "excess paid",
		Mutate: func(r *entity.FulfillmentRecord) error {
			r.ExcessPaid = true
			return nil
		},
		Events: []event.Type{event.TypeExcessPaid, event.TypeRouted},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != domainwf.StateAwaitingAppointment || updated.FulfillmentType != entity.FulfillmentCollectionRepair {
		t.Errorf("unexpected outcome %s/%s", updated.Status, updated.FulfillmentType)
	}
	if !updated.ExcessPaid {
		t.Error("expected mutation to be applied")
	}
	if !updated.CreatedAt.Equal(fixedNow) || !updated.UpdatedAt.Equal(fixedNow) {
		t.Errorf("expected timestamps from clock, got %v / %v", updated.CreatedAt, updated.UpdatedAt)
	}

	if current.Status != domainwf.StatePendingExcess || current.ExcessPaid {
		t.Error("caller's record must not be modified")
	}

	if stored := records.records["claim-1"]; stored == nil || stored.Status != domainwf.StateAwaitingAppointment {
		t.Error("expected record to be persisted")
	}

	if len(history.histories) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history.histories))
	}
	h := history.histories[0]
	if h.PreviousStatus != "pending_excess" || h.NewStatus != "awaiting_appointment" || h.Trigger != "CONFIRM_EXCESS" || h.Note != "excess paid" {
		t.Errorf("unexpected history row %+v", h)
	}

	types := d.types()
	want := []event.Type{event.TypeExcessPaid, event.TypeRouted, event.TypeStatusChanged}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
	if d.events[0].CorrelationID != d.events[2].CorrelationID {
		t.Error("events of one transition should share a correlation id")
	}
	if d.events[1].GetPayloadString("new_status") != "awaiting_appointment" {
		t.Error("expected new status in payload")
	}
}

func TestEngineApply_PreservesCreatedAt(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	created := fixedNow.Add(-48 * time.Hour)
	current := &entity.FulfillmentRecord{
		ClaimID:         "claim-1",
		ExcessPaid:      true,
		FulfillmentType: entity.FulfillmentInHomeRepair,
		Status:          domainwf.StateAwaitingAppointment,
		CreatedAt:       created,
	}

	updated, err := engine.Apply(context.Background(), current, Transition{
		Trigger:  domainwf.TriggerConfirmAppointment,
		Decision: fulfillment.Decision{Status: domainwf.StateScheduled},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !updated.CreatedAt.Equal(created) {
		t.Errorf("created_at changed to %v", updated.CreatedAt)
	}
	if updated.FulfillmentType != entity.FulfillmentInHomeRepair {
		t.Error("empty decision type must keep the current type")
	}
}

func TestEngineApply_IllegalTransition(t *testing.T) {
	engine, records, history, d := newTestEngine()

	_, err := engine.Apply(context.Background(), entity.NewFulfillmentRecord("claim-1"), Transition{
		Trigger:  domainwf.TriggerConfirmAppointment,
		Decision: fulfillment.Decision{Status: domainwf.StateScheduled},
	})

	if !errors.Is(err, domainwf.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if len(records.records) != 0 || len(history.histories) != 0 || len(d.types()) != 0 {
		t.Error("nothing should be persisted or published")
	}
}

func TestEngineApply_MutateError(t *testing.T) {
	engine, records, _, _ := newTestEngine()
	mutateErr := errors.New("reference exhausted")

	_, err := engine.Apply(context.Background(), entity.NewFulfillmentRecord("claim-1"), Transition{
		Trigger:  domainwf.TriggerConfirmExcess,
		Decision: fulfillment.Decision{Type: entity.FulfillmentVoucher, Status: domainwf.StateCompleted},
		Mutate: func(r *entity.FulfillmentRecord) error {
			return mutateErr
		},
	})

	if !errors.Is(err, mutateErr) {
		t.Fatalf("expected mutate error, got %v", err)
	}
	if len(records.records) != 0 {
		t.Error("record must not be persisted")
	}
}

func TestEngineApply_PersistenceFailure(t *testing.T) {
	engine, records, _, d := newTestEngine()
	records.upsertErr = errors.New("disk I/O error")

	current := entity.NewFulfillmentRecord("claim-1")
	updated, err := engine.Apply(context.Background(), current, Transition{
		Trigger:  domainwf.TriggerConfirmExcess,
		Decision: fulfillment.Decision{Type: entity.FulfillmentVoucher, Status: domainwf.StateCompleted},
	})

	if err == nil || !errors.Is(err, records.upsertErr) {
		t.Fatalf("expected wrapped upsert error, got %v", err)
	}
	if updated != nil {
		t.Error("expected no record on failure")
	}
	if current.Status != domainwf.StatePendingExcess || current.FulfillmentType != "" {
		t.Error("caller's record must be unchanged after persistence failure")
	}
	if len(d.types()) != 0 {
		t.Error("no events on failure")
	}
}

func TestEngineApply_OnCommitRunsInTransaction(t *testing.T) {
	engine, _, _, d := newTestEngine()
	var sawTx bool
	commitErr := errors.New("claim update failed")

	current := &entity.FulfillmentRecord{
		ClaimID:    "claim-1",
		ExcessPaid: true,
		Status:     domainwf.StateAwaitingAppointment,
	}

	_, err := engine.Apply(context.Background(), current, Transition{
		Trigger:  domainwf.TriggerConfirmAppointment,
		Decision: fulfillment.Decision{Status: domainwf.StateScheduled},
		OnCommit: func(ctx context.Context, r *entity.FulfillmentRecord) error {
			sawTx, _ = ctx.Value(txMarker{}).(bool)
			if r.Status != domainwf.StateScheduled {
				t.Errorf("OnCommit should see the new status, got %s", r.Status)
			}
			return commitErr
		},
	})

	if !sawTx {
		t.Error("OnCommit should receive the transaction context")
	}
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if len(d.types()) != 0 {
		t.Error("no events when the transaction fails")
	}
}

func TestEngineApply_NilRecord(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	if _, err := engine.Apply(context.Background(), nil, Transition{}); !errors.Is(err, ErrNilRecord) {
		t.Errorf("expected ErrNilRecord, got %v", err)
	}
}

func TestEnginePermittedTriggers(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	triggers := engine.PermittedTriggers(nil)
	if len(triggers) != 1 || triggers[0] != domainwf.TriggerConfirmExcess {
		t.Errorf("expected only CONFIRM_EXCESS without a record, got %v", triggers)
	}

	awaiting := engine.PermittedTriggers(&entity.FulfillmentRecord{Status: domainwf.StateAwaitingAppointment})
	if len(awaiting) != 3 {
		t.Errorf("expected 3 triggers while awaiting, got %v", awaiting)
	}

	if scheduled := engine.PermittedTriggers(&entity.FulfillmentRecord{Status: domainwf.StateScheduled}); len(scheduled) != 0 {
		t.Errorf("expected no triggers when scheduled, got %v", scheduled)
	}
}
