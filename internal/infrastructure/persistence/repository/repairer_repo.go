package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/sqlite"
)

// RepairerRepository implements port.RepairerDirectory
type RepairerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRepairerRepository creates a new repairer directory
func NewRepairerRepository(db *sql.DB, logger *zap.Logger) port.RepairerDirectory {
	return &RepairerRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a repairer by ID
func (r *RepairerRepository) GetByID(ctx context.Context, id string) (*entity.Repairer, error) {
	query := `SELECT id, name, company_name, coverage_area FROM repairers WHERE id = ?`

	var rep entity.Repairer
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&rep.ID,
		&rep.Name,
		&rep.CompanyName,
		&rep.CoverageArea,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get repairer", zap.String("repairer_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get repairer: %w", err)
	}

	return &rep, nil
}

// ListByCoverageArea matches the area case-insensitively
func (r *RepairerRepository) ListByCoverageArea(ctx context.Context, area string) ([]*entity.Repairer, error) {
	query := `SELECT id, name, company_name, coverage_area FROM repairers`
	var args []interface{}
	if a := strings.TrimSpace(area); a != "" {
		query += ` WHERE lower(coverage_area) = lower(?)`
		args = append(args, a)
	}
	query += ` ORDER BY id ASC`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list repairers", zap.String("coverage_area", area), zap.Error(err))
		return nil, fmt.Errorf("failed to list repairers: %w", err)
	}
	defer rows.Close()

	var repairers []*entity.Repairer
	for rows.Next() {
		var rep entity.Repairer
		if err := rows.Scan(&rep.ID, &rep.Name, &rep.CompanyName, &rep.CoverageArea); err != nil {
			return nil, fmt.Errorf("failed to scan repairer: %w", err)
		}
		repairers = append(repairers, &rep)
	}

	return repairers, rows.Err()
}

// Verify interface compliance
var _ port.RepairerDirectory = (*RepairerRepository)(nil)
