package decoder

import (
	"strconv"
	"strings"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// spreadsheetStream decodes xlsx/xls via excelize instead of shelling
// out to an external converter (spec.md §4.1/§9). Cells are read with
// RawCellValue so a spreadsheet-serial date is handed to the
// normalizer as the raw numeric serial, never as a pre-formatted date
// string — the behavior normalize_timestamp's (0, 100000) window
// depends on.
type spreadsheetStream struct {
	f       *excelize.File
	rows    *excelize.Rows
	headers []string
	index   int
}

var rawCellOpts = excelize.Options{RawCellValue: true}

func newSpreadsheetStream(path string) (*spreadsheetStream, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDecode, "failed to open spreadsheet")
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.New(errors.ErrInput, "spreadsheet has no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrDecode, "failed to open sheet cursor")
	}

	s := &spreadsheetStream{f: f, rows: rows}

	headers, err := s.readHeaders()
	if err != nil {
		f.Close()
		return nil, err
	}
	s.headers = headers

	return s, nil
}

func (s *spreadsheetStream) readHeaders() ([]string, error) {
	for s.rows.Next() {
		cols, err := s.rows.Columns(rawCellOpts)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrDecode, "malformed spreadsheet header row")
		}
		if !isBlankRecord(cols) {
			return cols, nil
		}
	}
	return nil, errors.New(errors.ErrInput, "input file is empty")
}

func (s *spreadsheetStream) Next() (models.Row, bool, error) {
	for s.rows.Next() {
		cols, err := s.rows.Columns(rawCellOpts)
		if err != nil {
			return models.Row{}, false, errors.Wrap(err, errors.ErrDecode, "malformed spreadsheet data row")
		}
		if isBlankRecord(cols) {
			continue
		}

		row := models.Row{Index: s.index, Columns: make(map[string]models.CellValue, len(s.headers))}
		for i, h := range s.headers {
			if i < len(cols) {
				row.Columns[h] = cellFromRaw(cols[i])
			} else {
				row.Columns[h] = models.NullCell()
			}
		}
		s.index++
		return row, true, nil
	}
	return models.Row{}, false, nil
}

// cellFromRaw classifies a raw excelize cell string as numeric or
// plain text: a cell holding a number (including a spreadsheet-serial
// date, which RawCellValue leaves unformatted) parses cleanly as a
// float, so it is kept numeric; anything else is a string cell.
func cellFromRaw(raw string) models.CellValue {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.NullCell()
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return models.IntCell(i)
		}
		return models.DecimalCell(decimal.NewFromFloat(f))
	}
	return models.StringCell(raw)
}

func (s *spreadsheetStream) Close() error {
	return s.f.Close()
}
