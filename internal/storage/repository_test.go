package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/storage"
	"ledger/internal/storage/storagetest"
)

func newSQLite(t *testing.T) storage.LedgerStore {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	storagetest.Run(t, newSQLite)
}

func TestLazySQLite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.LedgerStore {
		s := storage.NewLazySQLite(filepath.Join(t.TempDir(), "lazy.db"))
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestLazySQLiteReadOnFreshPath(t *testing.T) {
	s := storage.NewLazySQLite(filepath.Join(t.TempDir(), "worker", "ledger.db"))
	t.Cleanup(func() { s.Close() })

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	recs, err := s.FindByRange(context.Background(), "u1", start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("first read must create the schema: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("fresh store returned %d records", len(recs))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := storage.NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		repo.Close()
	}
}

func TestSQLiteConcurrentUpsertsConverge(t *testing.T) {
	s := newSQLite(t)
	cal := core.NewCalendar(time.UTC)
	key, date, _ := cal.ParseDayKey("2024-03-01")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpsertByNaturalKey(context.Background(), "u1", key, date, core.CategoryGrocery, core.MustAmount("10"), "")
			if err != nil && !errors.Is(err, core.ErrConflict) {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	start, end, _ := cal.MonthRange(3, 2024)
	recs, err := s.FindByRange(context.Background(), "u1", start, end)
	if err != nil {
		t.Fatalf("FindByRange: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one record after concurrent upserts, got %d", len(recs))
	}
}

func TestPingClosedRepository(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	repo.Close()
	if err := repo.Ping(context.Background()); !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable after close, got %v", err)
	}
}
