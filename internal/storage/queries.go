package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the ledger's SQL statements bound to a connection or transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q running on tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Expense is one row of the expenses table.
type Expense struct {
	Seq          int64
	ID           string
	OwnerID      string
	DayKey       string
	Category     string
	CalendarDate int64
	Amount       string
	Note         string
	CreatedAt    int64
	UpdatedAt    int64
}

const expenseColumns = `seq, id, owner_id, day_key, category, calendar_date, amount, note, created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (Expense, error) {
	var e Expense
	err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.OwnerID,
		&e.DayKey,
		&e.Category,
		&e.CalendarDate,
		&e.Amount,
		&e.Note,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}

const upsertExpense = `
INSERT INTO expenses (id, owner_id, day_key, category, calendar_date, amount, note, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(owner_id, day_key, category) DO UPDATE SET
    calendar_date = excluded.calendar_date,
    amount        = excluded.amount,
    note          = excluded.note,
    updated_at    = excluded.updated_at
RETURNING ` + expenseColumns

type UpsertExpenseParams struct {
	ID           string
	OwnerID      string
	DayKey       string
	Category     string
	CalendarDate int64
	Amount       string
	Note         string
	Now          int64
}

// UpsertExpense inserts a row or updates the one holding the same natural
// key. The returned row carries the surviving id.
func (q *Queries) UpsertExpense(ctx context.Context, arg UpsertExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, upsertExpense,
		arg.ID,
		arg.OwnerID,
		arg.DayKey,
		arg.Category,
		arg.CalendarDate,
		arg.Amount,
		arg.Note,
		arg.Now,
		arg.Now,
	)
	return scanExpense(row)
}

const listExpensesInRange = `
SELECT ` + expenseColumns + `
FROM expenses
WHERE owner_id = ? AND calendar_date BETWEEN ? AND ?
ORDER BY calendar_date ASC, seq ASC`

type ListExpensesInRangeParams struct {
	OwnerID string
	Start   int64
	End     int64
}

func (q *Queries) ListExpensesInRange(ctx context.Context, arg ListExpensesInRangeParams) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesInRange, arg.OwnerID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getExpenseByNaturalKey = `
SELECT ` + expenseColumns + `
FROM expenses
WHERE owner_id = ? AND day_key = ? AND category = ?`

func (q *Queries) GetExpenseByNaturalKey(ctx context.Context, ownerID, dayKey, category string) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpenseByNaturalKey, ownerID, dayKey, category)
	return scanExpense(row)
}

const deleteExpensesByDay = `DELETE FROM expenses WHERE owner_id = ? AND day_key = ?`

func (q *Queries) DeleteExpensesByDay(ctx context.Context, ownerID, dayKey string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpensesByDay, ownerID, dayKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpensesByDayExcept removes the day's rows whose category is not in
// keep. An empty keep list removes the whole day.
func (q *Queries) DeleteExpensesByDayExcept(ctx context.Context, ownerID, dayKey string, keep []string) (int64, error) {
	if len(keep) == 0 {
		return q.DeleteExpensesByDay(ctx, ownerID, dayKey)
	}
	query := deleteExpensesByDay + ` AND category NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`
	args := make([]any, 0, len(keep)+2)
	args = append(args, ownerID, dayKey)
	for _, c := range keep {
		args = append(args, c)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpenseByID = `DELETE FROM expenses WHERE owner_id = ? AND id = ? RETURNING ` + expenseColumns

// DeleteExpenseByID returns sql.ErrNoRows when nothing was deleted.
func (q *Queries) DeleteExpenseByID(ctx context.Context, ownerID, id string) (Expense, error) {
	row := q.db.QueryRowContext(ctx, deleteExpenseByID, ownerID, id)
	return scanExpense(row)
}
