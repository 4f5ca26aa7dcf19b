package decoder

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempZip(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for entryName, content := range entries {
		w, err := zw.Create(entryName)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestZipStreamExtractsAndDecodesCSVEntry(t *testing.T) {
	path := writeTempZip(t, "in.zip", map[string]string{
		"records.csv": "a,b\n1,2\n",
	})

	s, err := newZipStream(path)
	require.NoError(t, err)
	defer s.Close()

	row, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", row.Columns["a"].Str)
}

func TestZipStreamPrefersCSVOverSpreadsheet(t *testing.T) {
	path := writeTempZip(t, "in.zip", map[string]string{
		"b_file.xlsx": "not a real spreadsheet",
		"a_file.csv":  "a,b\n9,9\n",
	})

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entry, err := pickEntry(zr.File)
	require.NoError(t, err)
	require.Equal(t, "a_file.csv", entry.Name)
}

func TestZipStreamIgnoresMacOSXAndDotfiles(t *testing.T) {
	path := writeTempZip(t, "in.zip", map[string]string{
		"__MACOSX/a_file.csv": "a,b\n1,2\n",
		".hidden.csv":         "a,b\n1,2\n",
		"real.csv":            "a,b\n3,4\n",
	})

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entry, err := pickEntry(zr.File)
	require.NoError(t, err)
	require.Equal(t, "real.csv", entry.Name)
}

func TestZipStreamErrorsOnNoSupportedEntry(t *testing.T) {
	path := writeTempZip(t, "in.zip", map[string]string{
		"notes.txt": "hello",
	})

	_, err := newZipStream(path)
	require.Error(t, err)
}
