package decoder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
)

func writeTempXLSX(t *testing.T, name string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSpreadsheetStreamDecodesHeaderAndRows(t *testing.T) {
	path := writeTempXLSX(t, "in.xlsx", [][]string{
		{"a", "b"},
		{"1", "hello"},
	})

	s, err := newSpreadsheetStream(path)
	require.NoError(t, err)
	defer s.Close()

	row, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.IntCell(1), row.Columns["a"])
	require.Equal(t, models.StringCell("hello"), row.Columns["b"])
}

func TestSpreadsheetStreamPreservesSerialDateAsNumeric(t *testing.T) {
	// A raw cell value in excelize for a numeric-looking string stays
	// numeric; the normalizer, not the decoder, interprets the
	// (0, 100000) window as an Excel serial date.
	path := writeTempXLSX(t, "dates.xlsx", [][]string{
		{"seize_time"},
		{"45000"},
	})

	s, err := newSpreadsheetStream(path)
	require.NoError(t, err)
	defer s.Close()

	row, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.IntCell(45000), row.Columns["seize_time"])
}

func TestCellFromRawClassifiesTypes(t *testing.T) {
	require.Equal(t, models.NullCell(), cellFromRaw("  "))
	require.Equal(t, models.IntCell(42), cellFromRaw("42"))
	require.Equal(t, models.StringCell("abc"), cellFromRaw("abc"))
}
