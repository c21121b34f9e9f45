package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// MonthGrouped returns the owner's records of a month grouped by day.
func (s *LedgerService) MonthGrouped(ctx context.Context, owner string, month, year int) ([]core.DayGroup, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	recs, err := s.monthRecords(ctx, owner, month, year)
	if err != nil {
		return nil, err
	}
	return core.GroupByDay(recs), nil
}

// RangeGrouped returns the owner's records between two inclusive calendar
// days grouped by day.
func (s *LedgerService) RangeGrouped(ctx context.Context, owner, startKey, endKey string) ([]core.DayGroup, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	startDay, _, err := s.calendar.ParseDayKey(startKey)
	if err != nil {
		return nil, core.WithField("start", err)
	}
	endDay, _, err := s.calendar.ParseDayKey(endKey)
	if err != nil {
		return nil, core.WithField("end", err)
	}
	if endDay < startDay {
		return nil, core.NewValidationError("end", "must not be before start")
	}

	start, _, err := s.calendar.DayRange(string(startDay))
	if err != nil {
		return nil, err
	}
	_, end, err := s.calendar.DayRange(string(endDay))
	if err != nil {
		return nil, err
	}

	recs, err := s.store.FindByRange(ctx, owner, start, end)
	if err != nil {
		return nil, fmt.Errorf("find range records: %w", err)
	}
	return core.GroupByDay(recs), nil
}

// Day returns a single day. A day without records has no items and a zero
// total.
func (s *LedgerService) Day(ctx context.Context, owner, dayKey string) (core.DayGroup, error) {
	if err := requireOwner(owner); err != nil {
		return core.DayGroup{}, err
	}
	key, _, err := s.calendar.ParseDayKey(dayKey)
	if err != nil {
		return core.DayGroup{}, err
	}
	start, end, err := s.calendar.DayRange(dayKey)
	if err != nil {
		return core.DayGroup{}, err
	}
	recs, err := s.store.FindByRange(ctx, owner, start, end)
	if err != nil {
		return core.DayGroup{}, fmt.Errorf("find day records: %w", err)
	}
	return core.DayGroupOf(key, recs), nil
}

// CategorySummary totals a month per category, largest first.
func (s *LedgerService) CategorySummary(ctx context.Context, owner string, month, year int) ([]core.CategoryTotal, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	recs, err := s.monthRecords(ctx, owner, month, year)
	if err != nil {
		return nil, err
	}
	return core.SummarizeByCategory(recs), nil
}

// DeleteRecord removes one of the owner's records. Records owned by someone
// else are reported as not found.
func (s *LedgerService) DeleteRecord(ctx context.Context, owner, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if id == "" {
		return core.NewValidationError("id", "is required")
	}
	rec, ok, err := s.store.DeleteByID(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if !ok {
		return fmt.Errorf("delete record %s: %w", id, core.ErrNotFound)
	}
	s.invalidate(owner)

	slog.InfoContext(ctx, "Record deleted",
		"owner_id", owner,
		"id", id,
		"day_key", rec.DayKey,
		"category", rec.Category)

	s.publishDayChanged(ctx, owner, []core.DayKey{rec.DayKey}, amqp.ReasonDelete)
	return nil
}
