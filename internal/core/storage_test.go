package core

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"mortgageintake/internal/infra/persistence/memory"
	"mortgageintake/internal/infra/persistence/sqlite"
)

// helper to unset and restore env vars
func withEnv(key, value string, fn func()) {
	orig, had := os.LookupEnv(key)
	if value == "" {
		_ = os.Unsetenv(key)
	} else {
		_ = os.Setenv(key, value)
	}
	defer func() {
		if had {
			_ = os.Setenv(key, orig)
		} else {
			_ = os.Unsetenv(key)
		}
	}()
	fn()
}

func closeStore(t *testing.T, store PersistentStore) {
	t.Helper()
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	}
}

func TestOpenPersistentStore_DefaultSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.db")
	withEnv(EnvStorageDriver, "", func() {
		withEnv(EnvSQLitePath, path, func() {
			store, err := OpenPersistentStore(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer closeStore(t, store)
			s, ok := store.(*sqlite.Store)
			if !ok {
				t.Fatalf("expected *sqlite.Store, got %T", store)
			}
			if s.Path() != path {
				t.Fatalf("expected path %s, got %s", path, s.Path())
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("expected database file: %v", err)
			}
		})
	})
}

func TestOpenPersistentStore_Memory(t *testing.T) {
	withEnv(EnvStorageDriver, "memory", func() {
		store, err := OpenPersistentStore(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := store.(*memory.Store); !ok {
			t.Fatalf("expected *memory.Store, got %T", store)
		}
	})
}

func TestOpenPersistentStore_Unknown(t *testing.T) {
	withEnv(EnvStorageDriver, "cassandra", func() {
		store, err := OpenPersistentStore(context.Background())
		if err == nil {
			t.Fatal("expected unknown driver error")
		}
		if store != nil {
			t.Fatalf("expected nil store, got %T", store)
		}
	})
}

func TestOpenStoreSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.db")
	ctx := context.Background()
	store, err := OpenStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := seedClient(t, store, "Jane", "Doe")
	closeStore(t, store)

	reopened, err := OpenStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer closeStore(t, reopened)
	c, ok := reopened.SnapshotView().FindClient(id)
	if !ok || c.DisplayName() != "Jane Doe" {
		t.Fatalf("expected persisted client, got %+v (found=%v)", c, ok)
	}
}

func TestOpenStorePostgresUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store, err := OpenStore(ctx, StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://127.0.0.1:1/none?sslmode=disable&connect_timeout=1"})
	if err == nil {
		closeStore(t, store)
		t.Fatal("expected connection error")
	}
	if store != nil {
		t.Fatalf("expected nil store, got %T", store)
	}
}
