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

// CoveredItemRepository implements port.CoveredItemRepository
type CoveredItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCoveredItemRepository creates a new covered item repository
func NewCoveredItemRepository(db *sql.DB, logger *zap.Logger) port.CoveredItemRepository {
	return &CoveredItemRepository{
		db:     db,
		logger: logger,
	}
}

// GetByPolicyID returns the policy's covered item; the first row wins if there are several
func (r *CoveredItemRepository) GetByPolicyID(ctx context.Context, policyID string) (*entity.CoveredItem, error) {
	query := `
		SELECT policy_id, product_name, purchase_price
		FROM covered_items
		WHERE policy_id = ?
		ORDER BY id ASC
		LIMIT 1
	`

	var item entity.CoveredItem
	var price sql.NullFloat64
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, policyID).Scan(
		&item.PolicyID,
		&item.ProductName,
		&price,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get covered item", zap.String("policy_id", policyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get covered item: %w", err)
	}

	item.PurchasePrice = floatPtr(price)
	return &item, nil
}

// Verify interface compliance
var _ port.CoveredItemRepository = (*CoveredItemRepository)(nil)
