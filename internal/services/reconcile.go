package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage"
)

// ItemInput is one raw day replacement item.
type ItemInput struct {
	Amount   string
	Category string
	Note     string
}

// ReplaceResult is the state of the day and its month right after a
// replacement.
type ReplaceResult struct {
	Day   core.DayGroup
	Month []core.DayGroup
}

// ReplaceDay makes the stored records of one day match items.
//
// Items are normalized and summed per category; within a category the
// first non-empty note is kept. Inside a single transaction, records of
// categories absent from the payload are deleted and every category bucket
// is upserted, so readers never see a half-replaced day. An empty item list
// clears the day. Replaying the same payload yields the same records and ids.
func (s *LedgerService) ReplaceDay(ctx context.Context, owner, dayKey string, items []ItemInput) (ReplaceResult, error) {
	if err := requireOwner(owner); err != nil {
		return ReplaceResult{}, err
	}
	key, date, err := s.calendar.ParseDayKey(dayKey)
	if err != nil {
		return ReplaceResult{}, err
	}
	dayStart, dayEnd, err := s.calendar.DayRange(dayKey)
	if err != nil {
		return ReplaceResult{}, err
	}
	month, year := s.calendar.MonthOf(date)
	monthStart, monthEnd, err := s.calendar.MonthRange(month, year)
	if err != nil {
		return ReplaceResult{}, err
	}

	parsed := make([]core.BucketItem, 0, len(items))
	for i, in := range items {
		amount, err := core.ParseAmount(in.Amount)
		if err != nil {
			return ReplaceResult{}, core.WithField(fmt.Sprintf("items[%d]", i), err)
		}
		note, err := core.SanitizeNote(in.Note)
		if err != nil {
			return ReplaceResult{}, core.WithField(fmt.Sprintf("items[%d]", i), err)
		}
		parsed = append(parsed, core.BucketItem{
			Amount:   amount,
			Category: core.NormalizeCategory(in.Category),
			Note:     note,
		})
	}
	buckets := core.CoalesceBuckets(parsed)

	keep := make([]core.Category, len(buckets))
	for i, b := range buckets {
		keep[i] = b.Category
	}

	var (
		result  ReplaceResult
		deleted int64
	)
	err = s.store.WithinTx(ctx, func(tx storage.LedgerTx) error {
		n, err := tx.DeleteByCategories(ctx, owner, key, keep)
		if err != nil {
			return err
		}
		deleted = n

		for _, b := range buckets {
			if _, err := tx.UpsertByNaturalKey(ctx, owner, key, date, b.Category, b.Amount, b.Note); err != nil {
				return err
			}
		}

		dayRecs, err := tx.FindByRange(ctx, owner, dayStart, dayEnd)
		if err != nil {
			return err
		}
		monthRecs, err := tx.FindByRange(ctx, owner, monthStart, monthEnd)
		if err != nil {
			return err
		}
		result = ReplaceResult{
			Day:   core.DayGroupOf(key, dayRecs),
			Month: core.GroupByDay(monthRecs),
		}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("replace day %s: %w", key, err)
	}
	s.invalidate(owner)

	slog.DebugContext(ctx, "Day replaced",
		"owner_id", owner,
		"day_key", key,
		"items", len(items),
		"categories", len(buckets),
		"deleted", deleted,
		"total", result.Day.Total.String())

	s.publishDayChanged(ctx, owner, []core.DayKey{key}, amqp.ReasonReplace)

	return result, nil
}
