package main

import (
    "context"
    "os"
    "path/filepath"

    "github.com/hamzaKhattat/cdr-reconciler/internal/staging"
)

// checkSQLiteDriver verifies the embedded SQLite driver can open an
// in-memory scratch store, catching a broken cgo build before a real
// job does.
func checkSQLiteDriver(ctx context.Context) error {
    store, err := staging.Open(ctx, ":memory:")
    if err != nil {
        return err
    }
    return store.Close()
}

// checkScratchDirWritable verifies the configured scratch directory
// accepts new files.
func checkScratchDirWritable(ctx context.Context) error {
    dir := cfg.Staging.ScratchDir
    if dir == "" {
        dir = os.TempDir()
    }
    f, err := os.CreateTemp(dir, "cdr-recon-healthcheck-*")
    if err != nil {
        return err
    }
    name := f.Name()
    f.Close()
    return os.Remove(filepath.Clean(name))
}
