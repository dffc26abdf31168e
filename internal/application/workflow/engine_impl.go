package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/claims-fulfillment/internal/application/dispatcher"
	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/event"
	domainwf "github.com/garyjia/claims-fulfillment/internal/domain/workflow"
)

// ErrNilRecord is returned when Apply is called without a record
var ErrNilRecord = errors.New("fulfillment record is required")

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	records    port.FulfillmentRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	records port.FulfillmentRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		records:   records,
		history:   history,
		txManager: txManager,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Apply(ctx context.Context, current *entity.FulfillmentRecord, t Transition) (*entity.FulfillmentRecord, error) {
	if current == nil {
		return nil, ErrNilRecord
	}

	record := current.Clone()
	previous := record.Status

	machine, err := BuildFulfillmentStateMachine(previous)
	if err != nil {
		return nil, err
	}

	if err := machine.Fire(withDecision(ctx, t.Decision), t.Trigger); err != nil {
		return nil, err
	}

	if t.Decision.Type != "" {
		record.FulfillmentType = t.Decision.Type
	}
	record.Status = machine.State()
	if t.Mutate != nil {
		if err := t.Mutate(record); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	correlationID := uuid.NewString()

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.records.Upsert(txCtx, record); err != nil {
			return fmt.Errorf("failed to save fulfillment record: %w", err)
		}

		history := &entity.FulfillmentHistory{
			ClaimID:        record.ClaimID,
			PreviousStatus: previous.String(),
			NewStatus:      record.Status.String(),
			Trigger:        t.Trigger.String(),
			Note:           t.Note,
			CorrelationID:  correlationID,
			CreatedAt:      now,
		}
		if err := e.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		if t.OnCommit != nil {
			return t.OnCommit(txCtx, record)
		}
		return nil
	})
	if err != nil {
		if e.logger != nil {
			e.logger.Error("Fulfillment transition failed",
				"claim_id", record.ClaimID,
				"trigger", t.Trigger,
				"previous_status", previous,
				"error", err,
			)
		}
		return nil, err
	}

	if e.logger != nil {
		e.logger.Info("Fulfillment transition applied",
			"claim_id", record.ClaimID,
			"trigger", t.Trigger,
			"previous_status", previous,
			"new_status", record.Status,
			"fulfillment_type", record.FulfillmentType,
		)
	}

	e.publish(ctx, record, previous, t, correlationID)

	return record, nil
}

func (e *engineImpl) PermittedTriggers(record *entity.FulfillmentRecord) []domainwf.Trigger {
	state := domainwf.StatePendingExcess
	if record != nil {
		state = record.Status
	}

	machine, err := BuildFulfillmentStateMachine(state)
	if err != nil {
		return []domainwf.Trigger{}
	}
	return machine.PermittedTriggers()
}

func (e *engineImpl) publish(ctx context.Context, record *entity.FulfillmentRecord, previous domainwf.State, t Transition, correlationID string) {
	if e.dispatcher == nil {
		return
	}

	payload := map[string]interface{}{
		"previous_status":  previous.String(),
		"new_status":       record.Status.String(),
		"trigger":          t.Trigger.String(),
		"fulfillment_type": string(record.FulfillmentType),
	}
	if ref := record.Reference(); ref != "" {
		payload["reference"] = ref
	}

	types := append(append([]event.Type{}, t.Events...), event.TypeStatusChanged)
	for _, typ := range types {
		evt := event.NewEventWithCorrelation(typ, record.ClaimID, nil, correlationID)
		for k, v := range payload {
			evt.Payload[k] = v
		}
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}
