package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/storage"
)

// DayChangePublisher announces written days to downstream consumers.
type DayChangePublisher interface {
	PublishDayChanged(ctx context.Context, msg *amqp.DayChangedMessage) error
}

// Options configures a LedgerService. Zero values select defaults.
type Options struct {
	Calendar  core.Calendar
	Publisher DayChangePublisher
	CacheSize int
	CacheTTL  time.Duration
	Now       func() time.Time
}

// LedgerService orchestrates ingestion, day replacement and aggregation on
// top of a LedgerStore, publishing a day changed message after each write.
type LedgerService struct {
	store     storage.LedgerStore
	publisher DayChangePublisher
	calendar  core.Calendar
	now       func() time.Time

	months *cache.LRUCache[[]core.ExpenseRecord]
	fills  singleflight.Group

	genMu sync.Mutex
	gens  map[string]uint64
}

func NewLedgerService(store storage.LedgerStore, opts Options) *LedgerService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &LedgerService{
		store:     store,
		publisher: opts.Publisher,
		calendar:  opts.Calendar,
		now:       opts.Now,
		gens:      make(map[string]uint64),
	}
	if opts.CacheSize > 0 && opts.CacheTTL > 0 {
		s.months = cache.NewLRUCache[[]core.ExpenseRecord](opts.CacheSize, opts.CacheTTL)
	}
	return s
}

// Calendar returns the calendar used for day and month boundaries.
func (s *LedgerService) Calendar() core.Calendar {
	return s.calendar
}

// CurrentMonth returns the month and year of the current instant.
func (s *LedgerService) CurrentMonth() (int, int) {
	return s.calendar.MonthOf(s.now())
}

// MonthCache exposes the month cache so it can be registered for periodic
// cleanup. It is nil when caching is disabled.
func (s *LedgerService) MonthCache() *cache.LRUCache[[]core.ExpenseRecord] {
	return s.months
}

// Ping reports whether the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func requireOwner(owner string) error {
	if owner == "" {
		return core.NewValidationError("owner", "is required")
	}
	return nil
}

func monthCacheKey(owner string, month, year int) string {
	return fmt.Sprintf("%s\x1f%04d-%02d", owner, year, month)
}

func (s *LedgerService) generation(owner string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[owner]
}

// invalidate drops cached months of owner. Reads that started before the
// write cannot repopulate the cache because the generation has moved on.
func (s *LedgerService) invalidate(owner string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[owner]++
	if s.months != nil {
		s.months.DeletePrefix(owner + "\x1f")
	}
}

// storeMonth caches recs only if no write to owner happened since gen was
// read. The check and the Set hold genMu, as does invalidate.
func (s *LedgerService) storeMonth(owner string, gen uint64, key string, recs []core.ExpenseRecord) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[owner] != gen {
		return false
	}
	s.months.Set(key, recs)
	return true
}

// monthRecords returns the owner's records of one month, served from the
// cache when possible. Concurrent misses share one store read.
func (s *LedgerService) monthRecords(ctx context.Context, owner string, month, year int) ([]core.ExpenseRecord, error) {
	start, end, err := s.calendar.MonthRange(month, year)
	if err != nil {
		return nil, err
	}
	if s.months == nil {
		recs, err := s.store.FindByRange(ctx, owner, start, end)
		if err != nil {
			return nil, fmt.Errorf("find month records: %w", err)
		}
		return recs, nil
	}

	key := monthCacheKey(owner, month, year)
	if recs, ok := s.months.Get(key); ok {
		return recs, nil
	}

	gen := s.generation(owner)
	v, err, _ := s.fills.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		recs, err := s.store.FindByRange(ctx, owner, start, end)
		if err != nil {
			return nil, err
		}
		s.storeMonth(owner, gen, key, recs)
		return recs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("find month records: %w", err)
	}
	return v.([]core.ExpenseRecord), nil
}

// publishDayChanged notifies consumers about written days. Failures are
// logged and never fail the request; the write is already committed. The
// first failure skips the remaining days, which the mirror's periodic
// resync picks up.
func (s *LedgerService) publishDayChanged(ctx context.Context, owner string, days []core.DayKey, reason string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping day changed message")
		return
	}
	for i, day := range days {
		msg := amqp.NewDayChangedMessage(owner, string(day), reason)
		if err := s.publisher.PublishDayChanged(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish day changed message",
				"owner_id", owner,
				"day_key", day,
				"reason", reason,
				"skipped", len(days)-i-1,
				"error", err)
			return
		}
	}
}

// Close closes the store and, when it supports closing, the publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
