package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.FulfillmentHistory) error {
	query := `
		INSERT INTO fulfillment_history (
			claim_id, previous_status, new_status, trigger_name, note, correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		history.ClaimID,
		history.PreviousStatus,
		history.NewStatus,
		history.Trigger,
		history.Note,
		history.CorrelationID,
		history.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("claim_id", history.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByClaimID retrieves all history records for a claim, oldest first
func (r *HistoryRepository) GetByClaimID(ctx context.Context, claimID string) ([]*entity.FulfillmentHistory, error) {
	query := `
		SELECT id, claim_id, previous_status, new_status, trigger_name, note, correlation_id, created_at
		FROM fulfillment_history
		WHERE claim_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to get history by claim ID", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.FulfillmentHistory
	for rows.Next() {
		var record entity.FulfillmentHistory
		err := rows.Scan(
			&record.ID,
			&record.ClaimID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Trigger,
			&record.Note,
			&record.CorrelationID,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
