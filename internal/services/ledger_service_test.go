package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.DayChangedMessage
	err  error
}

func (p *recordingPublisher) PublishDayChanged(_ context.Context, msg *amqp.DayChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) days() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.DayKey
	}
	return out
}

func newTestService(t *testing.T, cacheSize int) (*LedgerService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, Options{
		Calendar:  core.NewCalendar(time.UTC),
		Publisher: pub,
		CacheSize: cacheSize,
		CacheTTL:  time.Minute,
		Now:       func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
	return svc, store, pub
}

func findItem(t *testing.T, days []core.DayGroup, key core.DayKey, cat core.Category) core.DayItem {
	t.Helper()
	for _, d := range days {
		if d.Date != key {
			continue
		}
		for _, it := range d.Items {
			if it.Category == cat {
				return it
			}
		}
	}
	t.Fatalf("no %s item on %s in %+v", cat, key, days)
	return core.DayItem{}
}

func TestLedgerService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("groups written month by day", func(t *testing.T) {
		svc, _, pub := newTestService(t, 0)
		days, err := svc.Ingest(ctx, "u1", 3, 2024, []EntryInput{
			{Amount: "12.50", Category: "Grocery", Date: "2024-03-02"},
			{Amount: "40", Category: "shopping", Date: "2024-03-01"},
			{Amount: "7", Category: "weird thing", Date: "2024-03-02"},
		})
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if len(days) != 2 || days[0].Date != "2024-03-01" || days[1].Date != "2024-03-02" {
			t.Fatalf("unexpected days: %+v", days)
		}
		if !days[1].Total.Equal(core.MustAmount("19.5")) {
			t.Errorf("day total = %s, want 19.5", days[1].Total)
		}
		findItem(t, days, "2024-03-02", core.CategoryOther)

		if got := pub.days(); len(got) != 2 {
			t.Errorf("published %v, want two days", got)
		}
	})

	t.Run("replaying is idempotent", func(t *testing.T) {
		svc, store, _ := newTestService(t, 0)
		batch := []EntryInput{
			{Amount: "10", Category: "grocery", Date: "2024-03-01"},
			{Amount: "20", Category: "stock", Date: "2024-03-01"},
		}
		first, err := svc.Ingest(ctx, "u1", 3, 2024, batch)
		if err != nil {
			t.Fatalf("first ingest: %v", err)
		}
		second, err := svc.Ingest(ctx, "u1", 3, 2024, batch)
		if err != nil {
			t.Fatalf("second ingest: %v", err)
		}
		if store.Len() != 2 {
			t.Fatalf("store holds %d records, want 2", store.Len())
		}
		a := findItem(t, first, "2024-03-01", core.CategoryGrocery)
		b := findItem(t, second, "2024-03-01", core.CategoryGrocery)
		if a.ID != b.ID {
			t.Errorf("record id changed from %s to %s", a.ID, b.ID)
		}
	})

	t.Run("last entry wins within a batch", func(t *testing.T) {
		svc, store, _ := newTestService(t, 0)
		days, err := svc.Ingest(ctx, "u1", 3, 2024, []EntryInput{
			{Amount: "10", Category: "grocery", Date: "2024-03-01"},
			{Amount: "15", Category: "Groceries", Date: "2024-03-01T18:30:00Z"},
		})
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if store.Len() != 1 {
			t.Fatalf("store holds %d records, want 1", store.Len())
		}
		if it := findItem(t, days, "2024-03-01", core.CategoryGrocery); !it.Amount.Equal(core.MustAmount("15")) {
			t.Errorf("amount = %s, want 15", it.Amount)
		}
	})

	t.Run("leap year February", func(t *testing.T) {
		svc, _, _ := newTestService(t, 0)
		days, err := svc.Ingest(ctx, "u1", 2, 2024, []EntryInput{
			{Amount: "5", Category: "emi", Date: "2024-02-29"},
		})
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if len(days) != 1 || days[0].Date != "2024-02-29" {
			t.Fatalf("unexpected days: %+v", days)
		}
	})

	t.Run("entries outside the month are stored but not returned", func(t *testing.T) {
		svc, store, _ := newTestService(t, 0)
		days, err := svc.Ingest(ctx, "u1", 3, 2024, []EntryInput{
			{Amount: "5", Category: "grocery", Date: "2024-04-01"},
		})
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if len(days) != 0 || store.Len() != 1 {
			t.Fatalf("days=%+v len=%d", days, store.Len())
		}
	})

	tests := []struct {
		name    string
		owner   string
		month   int
		year    int
		entries []EntryInput
		field   string
	}{
		{"missing owner", "", 3, 2024, []EntryInput{{Amount: "1", Date: "2024-03-01"}}, "owner"},
		{"bad month", "u1", 13, 2024, []EntryInput{{Amount: "1", Date: "2024-03-01"}}, "month"},
		{"empty batch", "u1", 3, 2024, nil, "entries"},
		{"zero amount", "u1", 3, 2024, []EntryInput{
			{Amount: "10", Category: "grocery", Date: "2024-03-01"},
			{Amount: "0", Category: "stock", Date: "2024-03-01"},
		}, "entries[1].amount"},
		{"negative amount", "u1", 3, 2024, []EntryInput{{Amount: "-5", Date: "2024-03-01"}}, "entries[0].amount"},
		{"thousands separator", "u1", 3, 2024, []EntryInput{{Amount: "1,000", Date: "2024-03-01"}}, "entries[0].amount"},
		{"bad date", "u1", 3, 2024, []EntryInput{{Amount: "5", Date: "2024-02-30"}}, "entries[0].date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, pub := newTestService(t, 0)
			_, err := svc.Ingest(ctx, tt.owner, tt.month, tt.year, tt.entries)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
			if store.Len() != 0 {
				t.Errorf("rejected batch wrote %d records", store.Len())
			}
			if len(pub.days()) != 0 {
				t.Errorf("rejected batch published messages")
			}
		})
	}
}

func TestLedgerService_ReplaceDay(t *testing.T) {
	ctx := context.Background()

	t.Run("sums items per category", func(t *testing.T) {
		svc, _, pub := newTestService(t, 0)
		res, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{
			{Amount: "100", Category: "grocery"},
			{Amount: "50", Category: "Groceries", Note: "market"},
			{Amount: "30", Category: "stock"},
		})
		if err != nil {
			t.Fatalf("ReplaceDay: %v", err)
		}
		if len(res.Day.Items) != 2 {
			t.Fatalf("expected 2 items, got %+v", res.Day.Items)
		}
		g := findItem(t, []core.DayGroup{res.Day}, "2024-03-05", core.CategoryGrocery)
		if !g.Amount.Equal(core.MustAmount("150")) || g.Note != "market" {
			t.Errorf("grocery item = %+v", g)
		}
		if !res.Day.Total.Equal(core.MustAmount("180")) {
			t.Errorf("total = %s, want 180", res.Day.Total)
		}
		if len(res.Month) != 1 || res.Month[0].Date != "2024-03-05" {
			t.Errorf("month view = %+v", res.Month)
		}
		if got := pub.days(); len(got) != 1 || got[0] != "2024-03-05" {
			t.Errorf("published %v", got)
		}
	})

	t.Run("removes categories missing from the payload", func(t *testing.T) {
		svc, store, _ := newTestService(t, 0)
		if _, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{
			{Amount: "10", Category: "grocery"},
			{Amount: "20", Category: "stock"},
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		res, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{{Amount: "25", Category: "stock"}})
		if err != nil {
			t.Fatalf("ReplaceDay: %v", err)
		}
		if len(res.Day.Items) != 1 || res.Day.Items[0].Category != core.CategoryStock {
			t.Fatalf("day items = %+v", res.Day.Items)
		}
		if store.Len() != 1 {
			t.Errorf("store holds %d records, want 1", store.Len())
		}
	})

	t.Run("empty payload clears the day", func(t *testing.T) {
		svc, store, _ := newTestService(t, 0)
		if _, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{{Amount: "10", Category: "grocery"}}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		res, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", nil)
		if err != nil {
			t.Fatalf("ReplaceDay: %v", err)
		}
		if len(res.Day.Items) != 0 || !res.Day.Total.IsZero() || store.Len() != 0 {
			t.Fatalf("day not cleared: %+v len=%d", res.Day, store.Len())
		}
	})

	t.Run("replay keeps record ids", func(t *testing.T) {
		svc, _, _ := newTestService(t, 0)
		items := []ItemInput{{Amount: "10", Category: "grocery"}}
		first, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", items)
		if err != nil {
			t.Fatalf("first: %v", err)
		}
		second, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", items)
		if err != nil {
			t.Fatalf("second: %v", err)
		}
		if first.Day.Items[0].ID != second.Day.Items[0].ID {
			t.Errorf("id changed across replays")
		}
	})

	t.Run("other owners are untouched", func(t *testing.T) {
		svc, _, _ := newTestService(t, 0)
		if _, err := svc.ReplaceDay(ctx, "u2", "2024-03-05", []ItemInput{{Amount: "10", Category: "grocery"}}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if _, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", nil); err != nil {
			t.Fatalf("ReplaceDay: %v", err)
		}
		day, err := svc.Day(ctx, "u2", "2024-03-05")
		if err != nil || len(day.Items) != 1 {
			t.Fatalf("u2 day = %+v, %v", day, err)
		}
	})

	t.Run("invalid item rejects the whole payload", func(t *testing.T) {
		svc, store, _ := newTestService(t, 0)
		if _, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{{Amount: "10", Category: "grocery"}}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		_, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{
			{Amount: "5", Category: "stock"},
			{Amount: "-5", Category: "emi"},
		})
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "items[1].amount" {
			t.Fatalf("expected items[1].amount validation error, got %v", err)
		}
		day, _ := svc.Day(ctx, "u1", "2024-03-05")
		if store.Len() != 1 || day.Items[0].Category != core.CategoryGrocery {
			t.Errorf("rejected payload changed the day: %+v", day)
		}
	})

	t.Run("bad day key", func(t *testing.T) {
		svc, _, _ := newTestService(t, 0)
		_, err := svc.ReplaceDay(ctx, "u1", "2023-02-29", nil)
		if !errors.Is(err, core.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		svc, store, pub := newTestService(t, 0)
		pub.err = errors.New("broker down")
		if _, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{{Amount: "1", Category: "other"}}); err != nil {
			t.Fatalf("ReplaceDay: %v", err)
		}
		if store.Len() != 1 {
			t.Errorf("write was lost")
		}
	})
}

func TestLedgerService_Queries(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, 0)
	if _, err := svc.Ingest(ctx, "u1", 3, 2024, []EntryInput{
		{Amount: "10", Category: "grocery", Date: "2024-02-29"},
		{Amount: "20", Category: "stock", Date: "2024-03-01"},
		{Amount: "5", Category: "grocery", Date: "2024-03-01"},
		{Amount: "7.25", Category: "grocery", Date: "2024-03-31"},
		{Amount: "99", Category: "emi", Date: "2024-04-01"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	t.Run("range spans months inclusively", func(t *testing.T) {
		days, err := svc.RangeGrouped(ctx, "u1", "2024-02-29", "2024-03-31")
		if err != nil {
			t.Fatalf("RangeGrouped: %v", err)
		}
		if len(days) != 3 || days[0].Date != "2024-02-29" || days[2].Date != "2024-03-31" {
			t.Fatalf("days = %+v", days)
		}
	})

	t.Run("range rejects reversed bounds", func(t *testing.T) {
		_, err := svc.RangeGrouped(ctx, "u1", "2024-03-02", "2024-03-01")
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "end" {
			t.Fatalf("expected end validation error, got %v", err)
		}
	})

	t.Run("range reports bad start", func(t *testing.T) {
		_, err := svc.RangeGrouped(ctx, "u1", "03/01/2024", "2024-03-01")
		var verr *core.ValidationError
		if !errors.As(err, &verr) || verr.Field != "start.date" {
			t.Fatalf("expected start.date validation error, got %v", err)
		}
	})

	t.Run("range agrees with month", func(t *testing.T) {
		month, err := svc.MonthGrouped(ctx, "u1", 3, 2024)
		if err != nil {
			t.Fatalf("MonthGrouped: %v", err)
		}
		rng, err := svc.RangeGrouped(ctx, "u1", "2024-03-01", "2024-03-31")
		if err != nil {
			t.Fatalf("RangeGrouped: %v", err)
		}
		if len(month) != len(rng) {
			t.Fatalf("month has %d days, range has %d", len(month), len(rng))
		}
		for i := range month {
			if month[i].Date != rng[i].Date || !month[i].Total.Equal(rng[i].Total) {
				t.Errorf("day %d differs: %+v vs %+v", i, month[i], rng[i])
			}
		}
	})

	t.Run("empty day", func(t *testing.T) {
		day, err := svc.Day(ctx, "u1", "2024-03-10")
		if err != nil {
			t.Fatalf("Day: %v", err)
		}
		if day.Date != "2024-03-10" || len(day.Items) != 0 || !day.Total.IsZero() {
			t.Fatalf("day = %+v", day)
		}
	})

	t.Run("category summary", func(t *testing.T) {
		totals, err := svc.CategorySummary(ctx, "u1", 3, 2024)
		if err != nil {
			t.Fatalf("CategorySummary: %v", err)
		}
		if len(totals) != 2 {
			t.Fatalf("totals = %+v", totals)
		}
		if totals[0].Category != core.CategoryStock || !totals[0].Total.Equal(core.MustAmount("20")) {
			t.Errorf("first total = %+v", totals[0])
		}
		if totals[1].Category != core.CategoryGrocery || !totals[1].Total.Equal(core.MustAmount("12.25")) || totals[1].Count != 2 {
			t.Errorf("second total = %+v", totals[1])
		}
	})

	t.Run("empty month", func(t *testing.T) {
		days, err := svc.MonthGrouped(ctx, "u1", 1, 2024)
		if err != nil || days == nil || len(days) != 0 {
			t.Fatalf("MonthGrouped = %+v, %v", days, err)
		}
	})
}

func TestLedgerService_PublishStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t, 0)
	pub.err = errors.New("broker unreachable")

	_, err := svc.Ingest(ctx, "u1", 3, 2024, []EntryInput{
		{Amount: "1", Category: "grocery", Date: "2024-03-01"},
		{Amount: "2", Category: "grocery", Date: "2024-03-02"},
		{Amount: "3", Category: "grocery", Date: "2024-03-03"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if store.Len() != 3 {
		t.Fatalf("stored %d records, want 3", store.Len())
	}
	if got := pub.days(); len(got) != 1 {
		t.Errorf("publish attempts = %v, want one", got)
	}
}

func TestLedgerService_DeleteRecord(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t, 0)
	days, err := svc.Ingest(ctx, "u1", 3, 2024, []EntryInput{{Amount: "10", Category: "grocery", Date: "2024-03-01"}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	id := days[0].Items[0].ID

	if err := svc.DeleteRecord(ctx, "u2", id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign delete: expected not found, got %v", err)
	}
	if err := svc.DeleteRecord(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("record still stored")
	}
	if err := svc.DeleteRecord(ctx, "u1", id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
	if got := pub.days(); len(got) != 2 || got[1] != "2024-03-01" {
		t.Errorf("published %v", got)
	}
}

func TestLedgerService_MonthCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, 16)

	if _, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{{Amount: "10", Category: "grocery"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, err := svc.CategorySummary(ctx, "u1", 3, 2024)
	if err != nil || len(before) != 1 {
		t.Fatalf("first summary = %+v, %v", before, err)
	}
	if svc.MonthCache().Size() != 1 {
		t.Fatalf("expected month to be cached")
	}

	if _, err := svc.ReplaceDay(ctx, "u1", "2024-03-05", []ItemInput{{Amount: "4", Category: "stock"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	after, err := svc.CategorySummary(ctx, "u1", 3, 2024)
	if err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if len(after) != 1 || after[0].Category != core.CategoryStock {
		t.Fatalf("stale summary served: %+v", after)
	}
}

func TestLedgerService_StaleFillIsNotCached(t *testing.T) {
	svc, _, _ := newTestService(t, 16)
	key := monthCacheKey("u1", 3, 2024)

	gen := svc.generation("u1")
	svc.invalidate("u1")
	if svc.storeMonth("u1", gen, key, []core.ExpenseRecord{{ID: "old"}}) {
		t.Fatal("fill read before a write was cached")
	}
	if _, ok := svc.MonthCache().Get(key); ok {
		t.Fatal("stale month present in cache")
	}

	if !svc.storeMonth("u1", svc.generation("u1"), key, nil) {
		t.Fatal("current fill was not cached")
	}
	svc.invalidate("u2")
	if _, ok := svc.MonthCache().Get(key); !ok {
		t.Fatal("write of another owner dropped the month")
	}
}

func TestLedgerService_CurrentMonth(t *testing.T) {
	svc, _, _ := newTestService(t, 0)
	month, year := svc.CurrentMonth()
	if month != 3 || year != 2024 {
		t.Fatalf("CurrentMonth = %d/%d", month, year)
	}
}

func TestLedgerService_Close(t *testing.T) {
	svc := NewLedgerService(memory.New(), Options{})
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
