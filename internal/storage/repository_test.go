package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"landledger/internal/storage"
	"landledger/internal/storage/storagetest"
)

func newSQLite(t *testing.T) storage.Store {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "landledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	storagetest.Run(t, newSQLite)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "landledger.db")
	if err := storage.RunMigrations(path); err != nil {
		t.Fatalf("first migration: %v", err)
	}
	if err := storage.RunMigrations(path); err != nil {
		t.Fatalf("second migration: %v", err)
	}
}

func TestSQLiteRepository_Ping(t *testing.T) {
	repo := newSQLite(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
