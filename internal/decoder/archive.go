package decoder

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
)

var archiveExtPriority = map[string]int{".csv": 0, ".xlsx": 1, ".xls": 2}

// zipStream extracts the first supported entry to a scratch file and
// decodes it recursively, per spec.md §4.1. The scratch file is
// cleaned up on Close regardless of how the stream ends.
type zipStream struct {
	inner      RowStream
	scratchDir string
}

func newZipStream(path string) (*zipStream, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDecode, "failed to open zip archive")
	}
	defer zr.Close()

	entry, err := pickEntry(zr.File)
	if err != nil {
		return nil, err
	}

	scratchDir, err := os.MkdirTemp("", "cdr-recon-zip-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to create scratch directory")
	}

	scratchPath := filepath.Join(scratchDir, filepath.Base(entry.Name))
	if err := extractEntry(entry, scratchPath); err != nil {
		os.RemoveAll(scratchDir)
		return nil, err
	}

	inner, err := Decode(scratchPath, entry.Name)
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, err
	}

	return &zipStream{inner: inner, scratchDir: scratchDir}, nil
}

// pickEntry ignores directory entries, __MACOSX metadata, and
// dotfiles; the remaining entries are filtered to csv/xlsx/xls and
// sorted CSV-first then lexicographically, per spec.md §4.1.
func pickEntry(files []*zip.File) (*zip.File, error) {
	var candidates []*zip.File

	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		base := filepath.Base(name)
		if strings.HasPrefix(base, ".") {
			continue
		}
		if strings.Contains(name, "__MACOSX") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := archiveExtPriority[ext]; !ok {
			continue
		}
		candidates = append(candidates, f)
	}

	if len(candidates) == 0 {
		return nil, errors.New(errors.ErrDecode, "zip archive has no supported entry")
	}

	sort.Slice(candidates, func(i, j int) bool {
		pi := archiveExtPriority[strings.ToLower(filepath.Ext(candidates[i].Name))]
		pj := archiveExtPriority[strings.ToLower(filepath.Ext(candidates[j].Name))]
		if pi != pj {
			return pi < pj
		}
		return candidates[i].Name < candidates[j].Name
	})

	return candidates[0], nil
}

func extractEntry(entry *zip.File, dst string) error {
	rc, err := entry.Open()
	if err != nil {
		return errors.Wrap(err, errors.ErrDecode, "failed to read zip entry")
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to create scratch file")
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.Wrap(err, errors.ErrDecode, "failed to extract zip entry")
	}
	return nil
}

func (s *zipStream) Next() (models.Row, bool, error) {
	return s.inner.Next()
}

func (s *zipStream) Close() error {
	err := s.inner.Close()
	os.RemoveAll(s.scratchDir)
	return err
}
