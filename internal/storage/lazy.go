package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"ledger/internal/core"
)

// Opener opens the underlying store.
type Opener func(ctx context.Context) (LedgerStore, error)

// LazyStore opens its store on first use and reuses it for the process
// lifetime. Concurrent first callers share a single open; a failed open is
// not remembered, so the next call tries again.
type LazyStore struct {
	open    Opener
	group   singleflight.Group
	current atomic.Pointer[storeHolder]

	closeMu sync.Mutex
	closed  bool
}

type storeHolder struct {
	store LedgerStore
}

var _ LedgerStore = (*LazyStore)(nil)

func NewLazyStore(open Opener) *LazyStore {
	return &LazyStore{open: open}
}

// NewLazySQLite returns a LazyStore backed by the SQLite database at path.
func NewLazySQLite(path string) *LazyStore {
	return NewLazyStore(func(ctx context.Context) (LedgerStore, error) {
		return NewSQLiteRepository(path)
	})
}

func (l *LazyStore) get(ctx context.Context) (LedgerStore, error) {
	if h := l.current.Load(); h != nil {
		return h.store, nil
	}

	v, err, shared := l.group.Do("open", func() (any, error) {
		if h := l.current.Load(); h != nil {
			return h.store, nil
		}
		l.closeMu.Lock()
		closed := l.closed
		l.closeMu.Unlock()
		if closed {
			return nil, fmt.Errorf("store closed: %w", core.ErrStorageUnavailable)
		}

		start := time.Now()
		s, err := l.open(context.WithoutCancel(ctx))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to open ledger store", "error", err)
			return nil, err
		}
		l.current.Store(&storeHolder{store: s})
		slog.InfoContext(ctx, "Ledger store opened", "duration_ms", time.Since(start).Milliseconds())
		return s, nil
	})
	if err != nil {
		if errors.Is(err, core.ErrStorageUnavailable) {
			return nil, fmt.Errorf("open ledger store: %w", err)
		}
		return nil, fmt.Errorf("open ledger store: %w: %w", core.ErrStorageUnavailable, err)
	}
	if shared {
		slog.DebugContext(ctx, "Ledger store open shared with concurrent caller")
	}
	return v.(LedgerStore), nil
}

// Opened reports whether the underlying store has been opened.
func (l *LazyStore) Opened() bool {
	return l.current.Load() != nil
}

func (l *LazyStore) FindByRange(ctx context.Context, owner string, start, end time.Time) ([]core.ExpenseRecord, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.FindByRange(ctx, owner, start, end)
}

func (l *LazyStore) FindByNaturalKey(ctx context.Context, owner string, day core.DayKey, category core.Category) (core.ExpenseRecord, bool, error) {
	s, err := l.get(ctx)
	if err != nil {
		return core.ExpenseRecord{}, false, err
	}
	return s.FindByNaturalKey(ctx, owner, day, category)
}

func (l *LazyStore) UpsertByNaturalKey(ctx context.Context, owner string, day core.DayKey, date time.Time, category core.Category, amount core.Amount, note string) (core.ExpenseRecord, error) {
	s, err := l.get(ctx)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	return s.UpsertByNaturalKey(ctx, owner, day, date, category, amount, note)
}

func (l *LazyStore) DeleteWhere(ctx context.Context, owner string, day core.DayKey) (int64, error) {
	s, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	return s.DeleteWhere(ctx, owner, day)
}

func (l *LazyStore) DeleteByCategories(ctx context.Context, owner string, day core.DayKey, keep []core.Category) (int64, error) {
	s, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	return s.DeleteByCategories(ctx, owner, day, keep)
}

func (l *LazyStore) DeleteByID(ctx context.Context, owner, id string) (core.ExpenseRecord, bool, error) {
	s, err := l.get(ctx)
	if err != nil {
		return core.ExpenseRecord{}, false, err
	}
	return s.DeleteByID(ctx, owner, id)
}

func (l *LazyStore) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.WithinTx(ctx, fn)
}

// Ping opens the store if needed and pings it.
func (l *LazyStore) Ping(ctx context.Context) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

// Close closes the underlying store if it was opened. Later calls fail
// with core.ErrStorageUnavailable.
func (l *LazyStore) Close() error {
	l.closeMu.Lock()
	l.closed = true
	l.closeMu.Unlock()

	if h := l.current.Swap(nil); h != nil {
		return h.store.Close()
	}
	return nil
}
