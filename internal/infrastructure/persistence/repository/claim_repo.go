package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/sqlite"
)

// ClaimRepository implements port.ClaimRepository
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) port.ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// GetByID retrieves a claim by ID
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	query := `
		SELECT id, claim_number, policy_id, status, coverage_area, updated_at
		FROM claims
		WHERE id = ?
	`

	var claim entity.Claim
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&claim.ID,
		&claim.ClaimNumber,
		&claim.PolicyID,
		&claim.Status,
		&claim.CoverageArea,
		&claim.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.String("claim_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return &claim, nil
}

// UpdateStatus sets the claim status and appends a status-history note.
// Both statements join the caller's transaction when there is one.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id string, status string, note string) error {
	exec := sqlite.ExecutorFor(ctx, r.db)
	now := r.now().UTC()

	result, err := exec.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = ? WHERE id = ?`,
		status, now, id,
	)
	if err != nil {
		r.logger.Error("Failed to update claim status", zap.String("claim_id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update claim status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("claim %s not found", id)
	}

	_, err = exec.ExecContext(ctx,
		`INSERT INTO claim_status_history (claim_id, status, note, created_at) VALUES (?, ?, ?, ?)`,
		id, status, note, now,
	)
	if err != nil {
		r.logger.Error("Failed to append claim status note", zap.String("claim_id", id), zap.Error(err))
		return fmt.Errorf("failed to append claim status note: %w", err)
	}

	return nil
}

// GetStatusNotes returns the claim's status history, oldest first
func (r *ClaimRepository) GetStatusNotes(ctx context.Context, id string) ([]*entity.ClaimStatusNote, error) {
	query := `
		SELECT id, claim_id, status, note, created_at
		FROM claim_status_history
		WHERE claim_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim status notes: %w", err)
	}
	defer rows.Close()

	var notes []*entity.ClaimStatusNote
	for rows.Next() {
		var n entity.ClaimStatusNote
		if err := rows.Scan(&n.ID, &n.ClaimID, &n.Status, &n.Note, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim status note: %w", err)
		}
		notes = append(notes, &n)
	}

	return notes, rows.Err()
}

// Verify interface compliance
var _ port.ClaimRepository = (*ClaimRepository)(nil)
