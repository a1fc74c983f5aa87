// Package storetest opens throwaway migrated databases for repository and service tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkrupp/itemcatalog/internal/repo/store"
)

// Open returns a migrated store backed by a file in t.TempDir. It is closed on cleanup.
func Open(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.Config{
		DatabasePath:    filepath.Join(t.TempDir(), "catalog.db"),
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}
