package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type memCatalog struct {
	rows    map[string]string
	failOn  string
	upserts int
}

func (m *memCatalog) LookupCategory(ctx context.Context, modelName string) (string, error) {
	return m.rows[modelName], nil
}

func (m *memCatalog) Upsert(ctx context.Context, modelName, category string) error {
	if modelName == m.failOn {
		return errors.New("database is locked")
	}
	m.upserts++
	m.rows[modelName] = category
	return nil
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Device_Category", "Model_Name"},
		{"Television", " LG OLED65C3 "},
		{"", ""},
		{"Laptops", "Dell XPS 13"},
		{"Smart TV", ""},
	})

	rows, err := ReadWorkbook(path)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Line: 2, ModelName: "LG OLED65C3", Category: "Television"},
		{Line: 4, ModelName: "Dell XPS 13", Category: "Laptops"},
		{Line: 5, ModelName: "", Category: "Smart TV"},
	}, rows)
}

func TestReadWorkbook_BadHeader(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"name", "category"},
		{"LG OLED65C3", "Television"},
	})

	_, err := ReadWorkbook(path)
	assert.ErrorContains(t, err, "header must contain")

	_, err = ReadWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	catalog := &memCatalog{rows: map[string]string{}}
	rows := []Row{
		{Line: 2, ModelName: "LG OLED65C3", Category: "Television"},
		{Line: 3, ModelName: "Bosch WAN28", Category: "Kitchen Gadgets"},
		{Line: 4, ModelName: "", Category: "Laptops"},
	}

	result, err := Import(context.Background(), catalog, rows, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, &Result{Imported: 2, Skipped: 1, Unmapped: 1}, result)
	assert.Equal(t, "Television", catalog.rows["LG OLED65C3"])
}

func TestImport_StopsOnError(t *testing.T) {
	catalog := &memCatalog{rows: map[string]string{}, failOn: "B"}
	rows := []Row{
		{Line: 2, ModelName: "A", Category: "Laptops"},
		{Line: 3, ModelName: "B", Category: "Laptops"},
		{Line: 4, ModelName: "C", Category: "Laptops"},
	}

	result, err := Import(context.Background(), catalog, rows, zap.NewNop())
	assert.ErrorContains(t, err, "line 3")
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, catalog.upserts)
}
