package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/workflow"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/sqlite"
)

// FulfillmentRepository implements port.FulfillmentRepository
type FulfillmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFulfillmentRepository creates a new fulfillment record repository
func NewFulfillmentRepository(db *sql.DB, logger *zap.Logger) port.FulfillmentRepository {
	return &FulfillmentRepository{
		db:     db,
		logger: logger,
	}
}

const fulfillmentColumns = `
	id, claim_id, excess_paid, excess_amount, excess_payment_method, excess_payment_date,
	device_value, fulfillment_type, repairer_id, appointment_date, appointment_slot,
	engineer_reference, logistics_reference, status, created_at, updated_at`

// Upsert writes the record keyed by claim_id. A concurrent writer for the
// same claim overwrites the row rather than creating a second one.
func (r *FulfillmentRepository) Upsert(ctx context.Context, record *entity.FulfillmentRecord) error {
	query := `
		INSERT INTO fulfillment_records (
			claim_id, excess_paid, excess_amount, excess_payment_method, excess_payment_date,
			device_value, fulfillment_type, repairer_id, appointment_date, appointment_slot,
			engineer_reference, logistics_reference, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(claim_id) DO UPDATE SET
			excess_paid = excluded.excess_paid,
			excess_amount = excluded.excess_amount,
			excess_payment_method = excluded.excess_payment_method,
			excess_payment_date = excluded.excess_payment_date,
			device_value = excluded.device_value,
			fulfillment_type = excluded.fulfillment_type,
			repairer_id = excluded.repairer_id,
			appointment_date = excluded.appointment_date,
			appointment_slot = excluded.appointment_slot,
			engineer_reference = excluded.engineer_reference,
			logistics_reference = excluded.logistics_reference,
			status = excluded.status,
			updated_at = excluded.updated_at
		RETURNING id
	`

	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query,
		record.ClaimID,
		record.ExcessPaid,
		nullFloat(record.ExcessAmount),
		string(record.ExcessPaymentMethod),
		nullTime(record.ExcessPaymentDate),
		nullFloat(record.DeviceValue),
		string(record.FulfillmentType),
		record.RepairerID,
		nullTime(record.AppointmentDate),
		record.AppointmentSlot,
		record.EngineerReference,
		record.LogisticsReference,
		record.Status.String(),
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.ID)
	if isUniqueViolation(err) {
		r.logger.Warn("Booking reference already in use",
			zap.String("claim_id", record.ClaimID),
			zap.String("reference", record.Reference()))
		return fmt.Errorf("failed to upsert fulfillment record: %w", port.ErrDuplicateReference)
	}
	if err != nil {
		r.logger.Error("Failed to upsert fulfillment record", zap.String("claim_id", record.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to upsert fulfillment record: %w", err)
	}

	return nil
}

// GetByClaimID returns nil when the claim has no record yet
func (r *FulfillmentRepository) GetByClaimID(ctx context.Context, claimID string) (*entity.FulfillmentRecord, error) {
	query := `SELECT ` + fulfillmentColumns + ` FROM fulfillment_records WHERE claim_id = ?`

	var (
		record        entity.FulfillmentRecord
		excessAmount  sql.NullFloat64
		paymentMethod string
		paymentDate   sql.NullTime
		deviceValue   sql.NullFloat64
		fType         string
		apptDate      sql.NullTime
		status        string
	)

	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, claimID).Scan(
		&record.ID,
		&record.ClaimID,
		&record.ExcessPaid,
		&excessAmount,
		&paymentMethod,
		&paymentDate,
		&deviceValue,
		&fType,
		&record.RepairerID,
		&apptDate,
		&record.AppointmentSlot,
		&record.EngineerReference,
		&record.LogisticsReference,
		&status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get fulfillment record", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get fulfillment record: %w", err)
	}

	record.ExcessAmount = floatPtr(excessAmount)
	record.ExcessPaymentMethod = entity.PaymentMethodKind(paymentMethod)
	record.ExcessPaymentDate = timePtr(paymentDate)
	record.DeviceValue = floatPtr(deviceValue)
	record.FulfillmentType = entity.FulfillmentType(fType)
	record.AppointmentDate = timePtr(apptDate)
	record.Status = workflow.State(status)

	return &record, nil
}

// ReferenceExists checks both reference columns
func (r *FulfillmentRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM fulfillment_records
			WHERE engineer_reference = ? OR logistics_reference = ?
		)
	`

	var exists bool
	if err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, reference, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return exists, nil
}

// isUniqueViolation matches the partial unique indexes on the reference
// columns; claim_id conflicts are absorbed by the upsert.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Verify interface compliance
var _ port.FulfillmentRepository = (*FulfillmentRepository)(nil)
