package decoder

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
)

type csvStream struct {
	f       *os.File
	r       *csv.Reader
	headers []string
	index   int
}

func newCSVStream(path string) (*csvStream, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged rows, RFC-4180 quoting still enforced
	r.LazyQuotes = false

	s := &csvStream{f: f, r: r}

	headers, err := s.readHeaders()
	if err != nil {
		f.Close()
		return nil, err
	}
	s.headers = headers

	return s, nil
}

// readHeaders skips empty rows and treats the first non-empty row as
// the header row, per spec.md §4.1.
func (s *csvStream) readHeaders() ([]string, error) {
	for {
		rec, err := s.r.Read()
		if err == io.EOF {
			return nil, errors.New(errors.ErrInput, "input file is empty")
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrDecode, "malformed CSV header row")
		}
		if !isBlankRecord(rec) {
			return rec, nil
		}
	}
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (s *csvStream) Next() (models.Row, bool, error) {
	for {
		rec, err := s.r.Read()
		if err == io.EOF {
			return models.Row{}, false, nil
		}
		if err != nil {
			return models.Row{}, false, errors.Wrap(err, errors.ErrDecode, "malformed CSV data row")
		}
		if isBlankRecord(rec) {
			continue
		}

		row := models.Row{Index: s.index, Columns: make(map[string]models.CellValue, len(s.headers))}
		for i, h := range s.headers {
			if i < len(rec) {
				row.Columns[h] = models.StringCell(rec[i])
			} else {
				row.Columns[h] = models.NullCell()
			}
		}
		s.index++
		return row, true, nil
	}
}

func (s *csvStream) Close() error {
	return s.f.Close()
}
