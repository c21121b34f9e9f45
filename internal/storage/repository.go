package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// dsnOptions makes every transaction take the write lock up front and lets
// competing writers wait instead of failing immediately.
const dsnOptions = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// SQLiteDSN builds the connection string for the database file at path.
func SQLiteDSN(path string) string {
	return path + "?" + dsnOptions
}

type SQLiteRepository struct {
	db *sql.DB
	sqliteOps
}

var _ LedgerStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := SQLiteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", core.ErrStorageUnavailable, err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:        db,
		sqliteOps: sqliteOps{q: New(db), now: time.Now},
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w: %w", core.ErrStorageUnavailable, err)
	}
	return nil
}

// WithinTx runs fn inside one immediate transaction. Any error from fn
// rolls back every write made through tx.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteOps{q: r.q.WithTx(tx), now: r.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// sqliteOps implements the ledger reads and writes against either the
// connection pool or an open transaction.
type sqliteOps struct {
	q   *Queries
	now func() time.Time
}

func (o *sqliteOps) FindByRange(ctx context.Context, owner string, start, end time.Time) ([]core.ExpenseRecord, error) {
	rows, err := o.q.ListExpensesInRange(ctx, ListExpensesInRangeParams{
		OwnerID: owner,
		Start:   start.UnixMilli(),
		End:     end.UnixMilli(),
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("list expenses in range: %w", err))
	}

	records := make([]core.ExpenseRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (o *sqliteOps) FindByNaturalKey(ctx context.Context, owner string, day core.DayKey, category core.Category) (core.ExpenseRecord, bool, error) {
	row, err := o.q.GetExpenseByNaturalKey(ctx, owner, string(day), string(category))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, false, nil
	}
	if err != nil {
		return core.ExpenseRecord{}, false, mapError(fmt.Errorf("get expense by natural key: %w", err))
	}
	rec, err := row.toRecord()
	if err != nil {
		return core.ExpenseRecord{}, false, err
	}
	return rec, true, nil
}

func (o *sqliteOps) UpsertByNaturalKey(ctx context.Context, owner string, day core.DayKey, date time.Time, category core.Category, amount core.Amount, note string) (core.ExpenseRecord, error) {
	row, err := o.q.UpsertExpense(ctx, UpsertExpenseParams{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		DayKey:       string(day),
		Category:     string(category),
		CalendarDate: date.UnixMilli(),
		Amount:       amount.String(),
		Note:         note,
		Now:          o.now().UnixMilli(),
	})
	if err != nil {
		return core.ExpenseRecord{}, mapError(fmt.Errorf("upsert expense: %w", err))
	}

	slog.DebugContext(ctx, "Expense upserted",
		"id", row.ID,
		"owner_id", owner,
		"day_key", row.DayKey,
		"category", row.Category,
		"amount", row.Amount)

	return row.toRecord()
}

func (o *sqliteOps) DeleteWhere(ctx context.Context, owner string, day core.DayKey) (int64, error) {
	n, err := o.q.DeleteExpensesByDay(ctx, owner, string(day))
	if err != nil {
		return 0, mapError(fmt.Errorf("delete expenses by day: %w", err))
	}
	return n, nil
}

func (o *sqliteOps) DeleteByCategories(ctx context.Context, owner string, day core.DayKey, keep []core.Category) (int64, error) {
	names := make([]string, len(keep))
	for i, c := range keep {
		names[i] = string(c)
	}
	n, err := o.q.DeleteExpensesByDayExcept(ctx, owner, string(day), names)
	if err != nil {
		return 0, mapError(fmt.Errorf("delete expenses outside categories: %w", err))
	}
	return n, nil
}

func (o *sqliteOps) DeleteByID(ctx context.Context, owner, id string) (core.ExpenseRecord, bool, error) {
	row, err := o.q.DeleteExpenseByID(ctx, owner, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, false, nil
	}
	if err != nil {
		return core.ExpenseRecord{}, false, mapError(fmt.Errorf("delete expense %s: %w", id, err))
	}
	rec, err := row.toRecord()
	if err != nil {
		return core.ExpenseRecord{}, false, err
	}
	return rec, true, nil
}

func (e Expense) toRecord() (core.ExpenseRecord, error) {
	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("decode amount of expense %s: %w", e.ID, err)
	}
	a, err := core.NewAmount(amount)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("decode amount of expense %s: %w", e.ID, err)
	}
	category, ok := core.ParseCategory(e.Category)
	if !ok {
		category = core.NormalizeCategory(e.Category)
	}
	return core.ExpenseRecord{
		ID:           e.ID,
		Owner:        e.OwnerID,
		Amount:       a,
		Category:     category,
		CalendarDate: time.UnixMilli(e.CalendarDate),
		DayKey:       core.DayKey(e.DayKey),
		Note:         e.Note,
		CreatedAt:    time.UnixMilli(e.CreatedAt),
		UpdatedAt:    time.UnixMilli(e.UpdatedAt),
	}, nil
}
