// Package storagetest holds behaviour tests shared by every LedgerStore
// implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/storage"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) storage.LedgerStore

var cal = core.NewCalendar(time.UTC)

func day(t *testing.T, key string) (core.DayKey, time.Time) {
	t.Helper()
	k, d, err := cal.ParseDayKey(key)
	if err != nil {
		t.Fatalf("parse day %q: %v", key, err)
	}
	return k, d
}

func upsert(t *testing.T, s storage.LedgerWriter, owner, key string, cat core.Category, amount string) core.ExpenseRecord {
	t.Helper()
	k, d := day(t, key)
	rec, err := s.UpsertByNaturalKey(context.Background(), owner, k, d, cat, core.MustAmount(amount), "")
	if err != nil {
		t.Fatalf("upsert %s/%s: %v", key, cat, err)
	}
	return rec
}

func monthOf(t *testing.T, s storage.LedgerReader, owner string, month, year int) []core.ExpenseRecord {
	t.Helper()
	start, end, err := cal.MonthRange(month, year)
	if err != nil {
		t.Fatalf("month range: %v", err)
	}
	recs, err := s.FindByRange(context.Background(), owner, start, end)
	if err != nil {
		t.Fatalf("find by range: %v", err)
	}
	return recs
}

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("UpsertKeepsIDAndReplacesAmount", func(t *testing.T) {
		s := newStore(t)
		first := upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "10")
		second := upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "25.5")
		if first.ID == "" || first.ID != second.ID {
			t.Fatalf("expected stable id, got %q then %q", first.ID, second.ID)
		}
		recs := monthOf(t, s, "u1", 3, 2024)
		if len(recs) != 1 || !recs[0].Amount.Equal(core.MustAmount("25.5")) {
			t.Fatalf("expected one record of 25.5, got %+v", recs)
		}
	})

	t.Run("NaturalKeyIsUniquePerOwner", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "10")
		upsert(t, s, "u2", "2024-03-01", core.CategoryGrocery, "20")
		upsert(t, s, "u1", "2024-03-01", core.CategoryStock, "30")
		upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "40")

		u1 := monthOf(t, s, "u1", 3, 2024)
		if len(u1) != 2 {
			t.Fatalf("expected 2 records for u1, got %d", len(u1))
		}
		seen := map[core.Category]bool{}
		for _, r := range u1 {
			if seen[r.Category] {
				t.Fatalf("duplicate category %s for one day", r.Category)
			}
			seen[r.Category] = true
		}
		if u2 := monthOf(t, s, "u2", 3, 2024); len(u2) != 1 {
			t.Fatalf("expected 1 record for u2, got %d", len(u2))
		}
	})

	t.Run("FindByRangeOrdersByDateThenCreation", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, "u1", "2024-03-03", core.CategoryStock, "1")
		upsert(t, s, "u1", "2024-03-01", core.CategoryShopping, "2")
		upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "3")
		upsert(t, s, "u1", "2024-04-01", core.CategoryGrocery, "4")

		recs := monthOf(t, s, "u1", 3, 2024)
		if len(recs) != 3 {
			t.Fatalf("expected 3 records in March, got %d", len(recs))
		}
		if recs[0].Category != core.CategoryShopping || recs[1].Category != core.CategoryGrocery || recs[2].DayKey != "2024-03-03" {
			t.Fatalf("unexpected order: %+v", recs)
		}
	})

	t.Run("FindByNaturalKey", func(t *testing.T) {
		s := newStore(t)
		created := upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "10")
		got, ok, err := s.FindByNaturalKey(context.Background(), "u1", "2024-03-01", core.CategoryGrocery)
		if err != nil || !ok || got.ID != created.ID {
			t.Fatalf("FindByNaturalKey = %+v, %v, %v", got, ok, err)
		}
		_, ok, err = s.FindByNaturalKey(context.Background(), "u2", "2024-03-01", core.CategoryGrocery)
		if err != nil || ok {
			t.Fatalf("expected miss for other owner, got %v, %v", ok, err)
		}
	})

	t.Run("DeleteByCategoriesKeepsTargetSet", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "10")
		upsert(t, s, "u1", "2024-03-01", core.CategoryStock, "20")
		upsert(t, s, "u1", "2024-03-02", core.CategoryStock, "30")

		n, err := s.DeleteByCategories(context.Background(), "u1", "2024-03-01", []core.Category{core.CategoryGrocery})
		if err != nil || n != 1 {
			t.Fatalf("DeleteByCategories = %d, %v", n, err)
		}
		recs := monthOf(t, s, "u1", 3, 2024)
		if len(recs) != 2 || recs[0].Category != core.CategoryGrocery || recs[1].DayKey != "2024-03-02" {
			t.Fatalf("unexpected records after delete: %+v", recs)
		}

		n, err = s.DeleteByCategories(context.Background(), "u1", "2024-03-01", nil)
		if err != nil || n != 1 {
			t.Fatalf("DeleteByCategories(nil) = %d, %v", n, err)
		}
	})

	t.Run("DeleteWhereScopesToOwnerAndDay", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "10")
		upsert(t, s, "u1", "2024-03-01", core.CategoryStock, "20")
		upsert(t, s, "u2", "2024-03-01", core.CategoryStock, "20")

		n, err := s.DeleteWhere(context.Background(), "u1", "2024-03-01")
		if err != nil || n != 2 {
			t.Fatalf("DeleteWhere = %d, %v", n, err)
		}
		if got := monthOf(t, s, "u2", 3, 2024); len(got) != 1 {
			t.Fatalf("other owner's records were touched: %+v", got)
		}
	})

	t.Run("DeleteByIDIsOwnerScoped", func(t *testing.T) {
		s := newStore(t)
		rec := upsert(t, s, "u1", "2024-03-01", core.CategoryGrocery, "10")

		_, ok, err := s.DeleteByID(context.Background(), "u2", rec.ID)
		if err != nil || ok {
			t.Fatalf("foreign delete = %v, %v", ok, err)
		}
		deleted, ok, err := s.DeleteByID(context.Background(), "u1", rec.ID)
		if err != nil || !ok {
			t.Fatalf("delete = %v, %v", ok, err)
		}
		if deleted.ID != rec.ID || deleted.DayKey != "2024-03-01" || deleted.Category != core.CategoryGrocery {
			t.Fatalf("deleted record = %+v", deleted)
		}
		_, ok, err = s.DeleteByID(context.Background(), "u1", rec.ID)
		if err != nil || ok {
			t.Fatalf("second delete = %v, %v", ok, err)
		}
	})

	t.Run("WithinTxCommits", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, "u1", "2024-03-01", core.CategoryStock, "5")
		err := s.WithinTx(context.Background(), func(tx storage.LedgerTx) error {
			if _, err := tx.DeleteByCategories(context.Background(), "u1", "2024-03-01", []core.Category{core.CategoryGrocery}); err != nil {
				return err
			}
			upsert(t, tx, "u1", "2024-03-01", core.CategoryGrocery, "7")
			// reads inside the transaction observe its writes
			recs := monthOf(t, tx, "u1", 3, 2024)
			if len(recs) != 1 || recs[0].Category != core.CategoryGrocery {
				t.Errorf("tx view = %+v", recs)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithinTx: %v", err)
		}
		recs := monthOf(t, s, "u1", 3, 2024)
		if len(recs) != 1 || recs[0].Category != core.CategoryGrocery {
			t.Fatalf("committed state = %+v", recs)
		}
	})

	t.Run("WithinTxRollsBackOnError", func(t *testing.T) {
		s := newStore(t)
		upsert(t, s, "u1", "2024-03-01", core.CategoryStock, "5")
		boom := errors.New("boom")
		err := s.WithinTx(context.Background(), func(tx storage.LedgerTx) error {
			if _, err := tx.DeleteWhere(context.Background(), "u1", "2024-03-01"); err != nil {
				return err
			}
			upsert(t, tx, "u1", "2024-03-01", core.CategoryGrocery, "7")
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		recs := monthOf(t, s, "u1", 3, 2024)
		if len(recs) != 1 || recs[0].Category != core.CategoryStock || !recs[0].Amount.Equal(core.MustAmount("5")) {
			t.Fatalf("rollback did not restore state: %+v", recs)
		}
	})

	t.Run("CancelledContextWritesNothing", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := s.WithinTx(ctx, func(tx storage.LedgerTx) error {
			k, d := day(t, "2024-03-01")
			_, err := tx.UpsertByNaturalKey(ctx, "u1", k, d, core.CategoryGrocery, core.MustAmount("1"), "")
			return err
		})
		if err == nil {
			t.Fatalf("expected error for cancelled context")
		}
		if recs := monthOf(t, s, "u1", 3, 2024); len(recs) != 0 {
			t.Fatalf("cancelled transaction wrote %d records", len(recs))
		}
	})

	t.Run("NotesAndDecimalsRoundTrip", func(t *testing.T) {
		s := newStore(t)
		k, d := day(t, "2024-02-29")
		_, err := s.UpsertByNaturalKey(context.Background(), "u1", k, d, core.CategoryCreditCard, core.MustAmount("1234.56"), "statement")
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		recs := monthOf(t, s, "u1", 2, 2024)
		if len(recs) != 1 {
			t.Fatalf("expected leap day record, got %d", len(recs))
		}
		r := recs[0]
		if r.Note != "statement" || !r.Amount.Equal(core.MustAmount("1234.56")) || r.DayKey != "2024-02-29" || !r.CalendarDate.Equal(d) {
			t.Fatalf("round trip mismatch: %+v", r)
		}
	})
}
