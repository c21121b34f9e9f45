// Package memory provides an in-process LedgerStore used by tests and the
// "memory" data backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/storage"
)

type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
	newID func() string
}

var _ storage.LedgerStore = (*Store)(nil)

func New() *Store {
	return &Store{
		state: newState(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

type entry struct {
	rec core.ExpenseRecord
	seq int64
}

// state is the full data set. Transactions work on a clone and swap it in
// on success.
type state struct {
	byKey map[core.NaturalKey]entry
	byID  map[string]core.NaturalKey
	seq   int64
}

func newState() *state {
	return &state{
		byKey: make(map[core.NaturalKey]entry),
		byID:  make(map[string]core.NaturalKey),
	}
}

func (st *state) clone() *state {
	c := &state{
		byKey: make(map[core.NaturalKey]entry, len(st.byKey)),
		byID:  make(map[string]core.NaturalKey, len(st.byID)),
		seq:   st.seq,
	}
	for k, v := range st.byKey {
		c.byKey[k] = v
	}
	for k, v := range st.byID {
		c.byID[k] = v
	}
	return c
}

func (st *state) findByRange(owner string, start, end time.Time) []core.ExpenseRecord {
	matches := make([]entry, 0)
	for k, e := range st.byKey {
		if k.Owner != owner {
			continue
		}
		if e.rec.CalendarDate.Before(start) || e.rec.CalendarDate.After(end) {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.rec.CalendarDate.Equal(b.rec.CalendarDate) {
			return a.rec.CalendarDate.Before(b.rec.CalendarDate)
		}
		return a.seq < b.seq
	})
	out := make([]core.ExpenseRecord, len(matches))
	for i, e := range matches {
		out[i] = e.rec
	}
	return out
}

func (st *state) upsert(key core.NaturalKey, date time.Time, amount core.Amount, note string, now time.Time, newID func() string) core.ExpenseRecord {
	if e, ok := st.byKey[key]; ok {
		e.rec.CalendarDate = date
		e.rec.Amount = amount
		e.rec.Note = note
		e.rec.UpdatedAt = now
		st.byKey[key] = e
		return e.rec
	}
	st.seq++
	rec := core.ExpenseRecord{
		ID:           newID(),
		Owner:        key.Owner,
		Amount:       amount,
		Category:     key.Category,
		CalendarDate: date,
		DayKey:       key.DayKey,
		Note:         note,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	st.byKey[key] = entry{rec: rec, seq: st.seq}
	st.byID[rec.ID] = key
	return rec
}

func (st *state) deleteDay(owner string, day core.DayKey, keep []core.Category) int64 {
	kept := make(map[core.Category]bool, len(keep))
	for _, c := range keep {
		kept[c] = true
	}
	var n int64
	for k, e := range st.byKey {
		if k.Owner != owner || k.DayKey != day || kept[k.Category] {
			continue
		}
		delete(st.byKey, k)
		delete(st.byID, e.rec.ID)
		n++
	}
	return n
}

func (st *state) deleteByID(owner, id string) (core.ExpenseRecord, bool) {
	key, ok := st.byID[id]
	if !ok || key.Owner != owner {
		return core.ExpenseRecord{}, false
	}
	rec := st.byKey[key].rec
	delete(st.byKey, key)
	delete(st.byID, id)
	return rec, true
}

// txView exposes a staged state to a transaction callback. It must only be
// used while the store lock is held.
type txView struct {
	st    *state
	now   func() time.Time
	newID func() string
}

func (v *txView) FindByRange(ctx context.Context, owner string, start, end time.Time) ([]core.ExpenseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.st.findByRange(owner, start, end), nil
}

func (v *txView) FindByNaturalKey(ctx context.Context, owner string, day core.DayKey, category core.Category) (core.ExpenseRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.ExpenseRecord{}, false, err
	}
	e, ok := v.st.byKey[core.NaturalKey{Owner: owner, DayKey: day, Category: category}]
	return e.rec, ok, nil
}

func (v *txView) UpsertByNaturalKey(ctx context.Context, owner string, day core.DayKey, date time.Time, category core.Category, amount core.Amount, note string) (core.ExpenseRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.ExpenseRecord{}, err
	}
	key := core.NaturalKey{Owner: owner, DayKey: day, Category: category}
	return v.st.upsert(key, date, amount, note, v.now(), v.newID), nil
}

func (v *txView) DeleteWhere(ctx context.Context, owner string, day core.DayKey) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return v.st.deleteDay(owner, day, nil), nil
}

func (v *txView) DeleteByCategories(ctx context.Context, owner string, day core.DayKey, keep []core.Category) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return v.st.deleteDay(owner, day, keep), nil
}

func (v *txView) DeleteByID(ctx context.Context, owner, id string) (core.ExpenseRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.ExpenseRecord{}, false, err
	}
	rec, ok := v.st.deleteByID(owner, id)
	return rec, ok, nil
}

func (s *Store) view(st *state) *txView {
	return &txView{st: st, now: s.now, newID: s.newID}
}

// WithinTx holds the write lock for the whole callback, so transactions are
// serialized. Writes go to a staged copy that replaces the live state only
// when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx storage.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(s.view(staged)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) FindByRange(ctx context.Context, owner string, start, end time.Time) ([]core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(s.state).FindByRange(ctx, owner, start, end)
}

func (s *Store) FindByNaturalKey(ctx context.Context, owner string, day core.DayKey, category core.Category) (core.ExpenseRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(s.state).FindByNaturalKey(ctx, owner, day, category)
}

func (s *Store) UpsertByNaturalKey(ctx context.Context, owner string, day core.DayKey, date time.Time, category core.Category, amount core.Amount, note string) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).UpsertByNaturalKey(ctx, owner, day, date, category, amount, note)
}

func (s *Store) DeleteWhere(ctx context.Context, owner string, day core.DayKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).DeleteWhere(ctx, owner, day)
}

func (s *Store) DeleteByCategories(ctx context.Context, owner string, day core.DayKey, keep []core.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).DeleteByCategories(ctx, owner, day, keep)
}

func (s *Store) DeleteByID(ctx context.Context, owner, id string) (core.ExpenseRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).DeleteByID(ctx, owner, id)
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error { return nil }

// Len returns the number of stored records across all owners.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.byKey)
}
