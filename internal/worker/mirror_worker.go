package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/sheets"
	"ledger/internal/storage"
)

// DayChangedSource delivers day changed messages until ctx is done.
type DayChangedSource interface {
	ConsumeDayChanged(ctx context.Context, handler func(context.Context, *amqp.DayChangedMessage) error) error
}

// MirrorWorker copies changed days from the ledger store into a DayMirror.
// Messages only name the day, so the worker always mirrors the current
// stored state and replaying a message is harmless.
type MirrorWorker struct {
	store    storage.LedgerReader
	mirror   sheets.DayMirror
	calendar core.Calendar
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	owners map[string]struct{}
}

func NewMirrorWorker(store storage.LedgerReader, mirror sheets.DayMirror, calendar core.Calendar, interval time.Duration) *MirrorWorker {
	return &MirrorWorker{
		store:    store,
		mirror:   mirror,
		calendar: calendar,
		interval: interval,
		now:      time.Now,
		owners:   make(map[string]struct{}),
	}
}

// HandleDayChanged mirrors the current state of the message's day.
// Messages naming an invalid day are dropped.
func (w *MirrorWorker) HandleDayChanged(ctx context.Context, msg *amqp.DayChangedMessage) error {
	slog.InfoContext(ctx, "Processing day changed message",
		"owner_id", msg.OwnerID,
		"day_key", msg.DayKey,
		"reason", msg.Reason)

	key, _, err := w.calendar.ParseDayKey(msg.DayKey)
	if err != nil {
		slog.WarnContext(ctx, "Dropping day changed message with invalid day",
			"owner_id", msg.OwnerID,
			"day_key", msg.DayKey,
			"error", err)
		return nil
	}
	w.remember(msg.OwnerID)

	start, end, err := w.calendar.DayRange(msg.DayKey)
	if err != nil {
		return err
	}
	recs, err := w.store.FindByRange(ctx, msg.OwnerID, start, end)
	if err != nil {
		return fmt.Errorf("read day %s: %w", key, err)
	}

	day := core.DayGroupOf(key, recs)
	if err := w.mirror.WriteDay(ctx, msg.OwnerID, day); err != nil {
		return fmt.Errorf("mirror day %s: %w", key, err)
	}

	slog.InfoContext(ctx, "Mirrored day",
		"owner_id", msg.OwnerID,
		"day_key", key,
		"items", len(day.Items),
		"total", day.Total.String())
	return nil
}

// ResyncMonth rewrites an owner's whole month from the store. It repairs
// the mirror after lost messages or worker downtime.
func (w *MirrorWorker) ResyncMonth(ctx context.Context, owner string, month, year int) error {
	start, end, err := w.calendar.MonthRange(month, year)
	if err != nil {
		return err
	}
	recs, err := w.store.FindByRange(ctx, owner, start, end)
	if err != nil {
		return fmt.Errorf("read month %04d-%02d: %w", year, month, err)
	}
	days := core.GroupByDay(recs)
	if err := w.mirror.WriteMonth(ctx, owner, month, year, days); err != nil {
		return fmt.Errorf("mirror month %04d-%02d: %w", year, month, err)
	}
	return nil
}

// ResyncKnownOwners rewrites the current month of every owner seen since
// the worker started. Failures for one owner do not stop the others.
func (w *MirrorWorker) ResyncKnownOwners(ctx context.Context) error {
	month, year := w.calendar.MonthOf(w.now())
	owners := w.knownOwners()
	if len(owners) == 0 {
		slog.DebugContext(ctx, "No owners to resync")
		return nil
	}

	var errs []error
	synced := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.ResyncMonth(ctx, owner, month, year); err != nil {
			slog.ErrorContext(ctx, "Failed to resync month",
				"owner_id", owner,
				"month", month,
				"year", year,
				"error", err)
			errs = append(errs, err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Periodic resync completed",
		"owners", len(owners),
		"synced", synced,
		"errors", len(errs))

	return errors.Join(errs...)
}

// Run consumes messages from source and resyncs on every interval until
// ctx is cancelled or the consumer fails.
func (w *MirrorWorker) Run(ctx context.Context, source DayChangedSource) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return source.ConsumeDayChanged(ctx, w.HandleDayChanged)
	})

	if w.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					// errors are logged per owner; keep ticking
					_ = w.ResyncKnownOwners(ctx)
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *MirrorWorker) remember(owner string) {
	w.mu.Lock()
	w.owners[owner] = struct{}{}
	w.mu.Unlock()
}

func (w *MirrorWorker) knownOwners() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.owners))
	for o := range w.owners {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}
