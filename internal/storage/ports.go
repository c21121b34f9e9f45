package storage

import (
	"context"
	"time"

	"ledger/internal/core"
)

// LedgerReader reads records scoped to one owner.
type LedgerReader interface {
	// FindByRange returns the owner's records whose calendar date falls in
	// [start, end], ordered by date then creation order.
	FindByRange(ctx context.Context, owner string, start, end time.Time) ([]core.ExpenseRecord, error)
	FindByNaturalKey(ctx context.Context, owner string, day core.DayKey, category core.Category) (core.ExpenseRecord, bool, error)
}

// LedgerWriter mutates records scoped to one owner.
type LedgerWriter interface {
	// UpsertByNaturalKey creates the record for (owner, day, category) or
	// replaces amount and note of the existing one, keeping its id.
	UpsertByNaturalKey(ctx context.Context, owner string, day core.DayKey, date time.Time, category core.Category, amount core.Amount, note string) (core.ExpenseRecord, error)
	// DeleteWhere removes every record of the owner's day.
	DeleteWhere(ctx context.Context, owner string, day core.DayKey) (int64, error)
	// DeleteByCategories removes the day's records whose category is not in keep.
	DeleteByCategories(ctx context.Context, owner string, day core.DayKey, keep []core.Category) (int64, error)
	// DeleteByID removes one record and returns it. It reports false when
	// the id does not exist or belongs to another owner.
	DeleteByID(ctx context.Context, owner, id string) (core.ExpenseRecord, bool, error)
}

// LedgerTx is the view of the store available inside WithinTx.
type LedgerTx interface {
	LedgerReader
	LedgerWriter
}

// LedgerStore is the persistent ledger. Implementations enforce the
// (owner, day, category) uniqueness constraint themselves.
type LedgerStore interface {
	LedgerReader
	LedgerWriter

	// WithinTx runs fn atomically: either every write made through tx is
	// committed or none is.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	Ping(ctx context.Context) error
	Close() error
}
