package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage"
)

// EntryInput is one raw bulk-ingest entry as received from a client.
// Amount holds the decimal text of the submitted number.
type EntryInput struct {
	Amount   string
	Category string
	Date     string
	Note     string
}

// ParseEntry validates and normalizes one raw entry.
func ParseEntry(cal core.Calendar, in EntryInput) (core.Entry, error) {
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Entry{}, err
	}
	date, err := cal.ParseEntryDate(in.Date)
	if err != nil {
		return core.Entry{}, err
	}
	note, err := core.SanitizeNote(in.Note)
	if err != nil {
		return core.Entry{}, err
	}
	return core.Entry{
		Amount:       amount,
		Category:     core.NormalizeCategory(in.Category),
		CalendarDate: date,
		DayKey:       cal.DayKeyOf(date),
		Note:         note,
	}, nil
}

// Ingest stores a batch of entries and returns the day-grouped view of the
// requested month as written.
//
// Every entry is validated before anything is written, so a single bad
// entry rejects the whole batch. Entries sharing a (day, category) key are
// collapsed with the last one winning, and the batch is applied in one
// transaction.
func (s *LedgerService) Ingest(ctx context.Context, owner string, month, year int, inputs []EntryInput) ([]core.DayGroup, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	monthStart, monthEnd, err := s.calendar.MonthRange(month, year)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, core.NewValidationError("entries", "must contain at least one entry")
	}

	entries := make([]core.Entry, 0, len(inputs))
	for i, in := range inputs {
		e, err := ParseEntry(s.calendar, in)
		if err != nil {
			return nil, core.WithField(fmt.Sprintf("entries[%d]", i), err)
		}
		entries = append(entries, e)
	}
	entries = core.CoalesceEntries(entries)

	start := time.Now()
	var monthRecs []core.ExpenseRecord
	err = s.store.WithinTx(ctx, func(tx storage.LedgerTx) error {
		for _, e := range entries {
			if _, err := tx.UpsertByNaturalKey(ctx, owner, e.DayKey, e.CalendarDate, e.Category, e.Amount, e.Note); err != nil {
				return err
			}
		}
		recs, err := tx.FindByRange(ctx, owner, monthStart, monthEnd)
		if err != nil {
			return err
		}
		monthRecs = recs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest entries: %w", err)
	}
	s.invalidate(owner)

	days := touchedDays(entries)
	slog.DebugContext(ctx, "Batch ingested",
		"owner_id", owner,
		"entries", len(inputs),
		"records", len(entries),
		"days", len(days),
		"duration_ms", time.Since(start).Milliseconds())

	s.publishDayChanged(ctx, owner, days, amqp.ReasonIngest)

	return core.GroupByDay(monthRecs), nil
}

func touchedDays(entries []core.Entry) []core.DayKey {
	seen := make(map[core.DayKey]bool, len(entries))
	days := make([]core.DayKey, 0, len(entries))
	for _, e := range entries {
		if seen[e.DayKey] {
			continue
		}
		seen[e.DayKey] = true
		days = append(days, e.DayKey)
	}
	return days
}
