// Package decoder implements the input decoder of spec.md §4.1: given a
// file path and a declared name (used only for format dispatch), it
// yields an ordered, lazily-consumed stream of row records.
package decoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
)

// RowStream is a cursor over decoded rows. Callers MUST call Close,
// even after Next returns an error, to release any scratch files the
// decoder created (e.g. an extracted zip entry).
type RowStream interface {
	// Next returns the next row, or ok=false when the stream is
	// exhausted. An error aborts the stream.
	Next() (row models.Row, ok bool, err error)
	Close() error
}

// Decode dispatches on the extension of declaredName (the uploaded
// file may itself live under a UUID-named scratch path) and returns a
// lazily-consumed RowStream.
func Decode(path, declaredName string) (RowStream, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(declaredName), "."))

	switch ext {
	case "csv":
		return newCSVStream(path)
	case "xlsx", "xls":
		return newSpreadsheetStream(path)
	case "zip":
		return newZipStream(path)
	default:
		return nil, errors.New(errors.ErrInput, fmt.Sprintf("unsupported file extension: %q", ext))
	}
}

// openFile centralizes the os.Open + DECODE_ERROR wrapping used by
// every format.
func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDecode, "failed to open input file")
	}
	return f, nil
}
