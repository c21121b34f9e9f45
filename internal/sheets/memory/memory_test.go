package memory

import (
	"context"
	"testing"

	"ledger/internal/core"
)

func day(key core.DayKey, cat core.Category) core.DayGroup {
	amt := core.MustAmount("1")
	return core.DayGroup{
		Date:  key,
		Items: []core.DayItem{{ID: string(key) + string(cat), Amount: amt, Category: cat}},
		Total: amt,
	}
}

func TestMirrorWriteDay(t *testing.T) {
	m := New()
	ctx := context.Background()

	if err := m.WriteDay(ctx, "u1", day("2024-03-01", core.CategoryGrocery)); err != nil {
		t.Fatalf("WriteDay: %v", err)
	}
	if _, ok := m.Day("u1", "2024-03-01"); !ok {
		t.Fatal("expected day to be mirrored")
	}
	if _, ok := m.Day("u2", "2024-03-01"); ok {
		t.Fatal("day leaked to another owner")
	}

	if err := m.WriteDay(ctx, "u1", core.DayGroup{Date: "2024-03-01"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := m.Day("u1", "2024-03-01"); ok {
		t.Fatal("empty day should remove the mirror copy")
	}
	if m.Writes() != 2 {
		t.Fatalf("Writes() = %d, want 2", m.Writes())
	}
}

func TestMirrorWriteMonth(t *testing.T) {
	m := New()
	ctx := context.Background()
	_ = m.WriteDay(ctx, "u1", day("2024-03-01", core.CategoryGrocery))
	_ = m.WriteDay(ctx, "u1", day("2024-03-09", core.CategoryStock))
	_ = m.WriteDay(ctx, "u1", day("2024-04-01", core.CategoryEMI))

	if err := m.WriteMonth(ctx, "u1", 3, 2024, []core.DayGroup{day("2024-03-20", core.CategoryOther)}); err != nil {
		t.Fatalf("WriteMonth: %v", err)
	}
	got := m.Days("u1")
	if len(got) != 2 || got[0] != "2024-03-20" || got[1] != "2024-04-01" {
		t.Fatalf("Days() = %v", got)
	}

	if err := m.WriteMonth(ctx, "u1", 13, 2024, nil); err == nil {
		t.Fatal("expected invalid month error")
	}
}
