package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/infrastructure/persistence/sqlite"
)

// DeviceCatalogRepository implements port.DeviceCatalog
type DeviceCatalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceCatalogRepository creates a new device catalog repository
func NewDeviceCatalogRepository(db *sql.DB, logger *zap.Logger) port.DeviceCatalog {
	return &DeviceCatalogRepository{
		db:     db,
		logger: logger,
	}
}

// LookupCategory matches when either the catalog model name contains the
// given name or the given name contains the catalog model name. The longest
// catalog model wins so "Sony Bravia X95L" beats "Sony".
func (r *DeviceCatalogRepository) LookupCategory(ctx context.Context, modelName string) (string, error) {
	name := strings.TrimSpace(modelName)
	if name == "" {
		return "", nil
	}

	query := `
		SELECT device_category
		FROM device_catalog
		WHERE model_name LIKE '%' || ? || '%' ESCAPE '\'
			OR ? LIKE '%' || model_name || '%'
		ORDER BY length(model_name) DESC, id ASC
		LIMIT 1
	`

	var category string
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, escapeLike(name), name).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to look up device category", zap.String("model_name", name), zap.Error(err))
		return "", fmt.Errorf("failed to look up device category: %w", err)
	}

	return category, nil
}

// Upsert inserts or updates a catalog entry by model name
func (r *DeviceCatalogRepository) Upsert(ctx context.Context, modelName, category string) error {
	query := `
		INSERT INTO device_catalog (model_name, device_category) VALUES (?, ?)
		ON CONFLICT(model_name) DO UPDATE SET device_category = excluded.device_category
	`

	if _, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, strings.TrimSpace(modelName), strings.TrimSpace(category)); err != nil {
		return fmt.Errorf("failed to upsert catalog entry %q: %w", modelName, err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Verify interface compliance
var _ port.DeviceCatalog = (*DeviceCatalogRepository)(nil)
