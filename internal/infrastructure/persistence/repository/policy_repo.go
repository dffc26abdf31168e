package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/sqlite"
)

// PaymentStatusPaid marks a settled policy payment
const PaymentStatusPaid = "paid"

// PolicyRepository implements port.PolicyRepository
type PolicyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sql.DB, logger *zap.Logger) port.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID reads the excess and derives payment-on-file from the payment history
func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*entity.Policy, error) {
	query := `
		SELECT p.id, p.excess_amount,
			EXISTS (SELECT 1 FROM policy_payments pp WHERE pp.policy_id = p.id AND pp.status = ?)
		FROM policies p
		WHERE p.id = ?
	`

	var policy entity.Policy
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, PaymentStatusPaid, id).Scan(
		&policy.ID,
		&policy.ExcessAmount,
		&policy.HasPaymentOnFile,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get policy", zap.String("policy_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return &policy, nil
}

// Verify interface compliance
var _ port.PolicyRepository = (*PolicyRepository)(nil)
