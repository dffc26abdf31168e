// Package catalog loads device catalog rows from spreadsheets.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/device"
)

const (
	ColumnModelName = "model_name"
	ColumnCategory  = "device_category"
)

// Row is one model name to category mapping
type Row struct {
	Line      int
	ModelName string
	Category  string
}

// Result summarizes an import
type Result struct {
	Imported int
	Skipped  int
	// Unmapped counts rows whose category the resolver will not recognise
	Unmapped int
}

// ReadWorkbook reads the first sheet of an .xlsx file. The header row must
// name the model_name and device_category columns; blank rows are skipped.
func ReadWorkbook(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	modelCol, categoryCol := -1, -1
	for i, cell := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case ColumnModelName:
			modelCol = i
		case ColumnCategory:
			categoryCol = i
		}
	}
	if modelCol < 0 || categoryCol < 0 {
		return nil, fmt.Errorf("header must contain %s and %s", ColumnModelName, ColumnCategory)
	}

	out := make([]Row, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		row := Row{
			Line:      i + 2,
			ModelName: cellAt(cells, modelCol),
			Category:  cellAt(cells, categoryCol),
		}
		if row.ModelName == "" && row.Category == "" {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// Import upserts rows into the catalog. Rows missing either column are skipped.
func Import(ctx context.Context, catalog port.DeviceCatalog, rows []Row, logger *zap.Logger) (*Result, error) {
	result := &Result{}
	for _, row := range rows {
		if row.ModelName == "" || row.Category == "" {
			logger.Warn("Skipping incomplete catalog row", zap.Int("line", row.Line))
			result.Skipped++
			continue
		}

		if !device.Normalize(row.Category).IsKnown() {
			logger.Warn("Catalog category has no synonym mapping",
				zap.Int("line", row.Line),
				zap.String("category", row.Category))
			result.Unmapped++
		}

		if err := catalog.Upsert(ctx, row.ModelName, row.Category); err != nil {
			return result, fmt.Errorf("line %d: %w", row.Line, err)
		}
		result.Imported++
	}
	return result, nil
}

func cellAt(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
