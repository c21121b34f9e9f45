package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ledger/internal/core"
	ports "ledger/internal/sheets"
)

// Mirror is an in-process DayMirror used by tests and local runs without a
// spreadsheet.
type Mirror struct {
	mu     sync.Mutex
	days   map[string]map[core.DayKey]core.DayGroup
	writes int
}

var _ ports.DayMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{days: make(map[string]map[core.DayKey]core.DayGroup)}
}

// WriteDay stores day for owner, or forgets it when it has no items.
func (m *Mirror) WriteDay(_ context.Context, owner string, day core.DayGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.put(owner, day)
	return nil
}

// WriteMonth replaces every mirrored day of owner in the month.
func (m *Mirror) WriteMonth(_ context.Context, owner string, month, year int, days []core.DayGroup) error {
	if err := core.ValidateMonthYear(month, year); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	for key := range m.days[owner] {
		if strings.HasPrefix(string(key), prefix) {
			delete(m.days[owner], key)
		}
	}
	for _, d := range days {
		m.put(owner, d)
	}
	return nil
}

func (m *Mirror) put(owner string, day core.DayGroup) {
	if len(day.Items) == 0 {
		delete(m.days[owner], day.Date)
		return
	}
	if m.days[owner] == nil {
		m.days[owner] = make(map[core.DayKey]core.DayGroup)
	}
	m.days[owner][day.Date] = day
}

// Day returns the mirrored copy of a day.
func (m *Mirror) Day(owner string, key core.DayKey) (core.DayGroup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[owner][key]
	return d, ok
}

// Days lists the mirrored days of owner in ascending order.
func (m *Mirror) Days(owner string) []core.DayKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.DayKey, 0, len(m.days[owner]))
	for k := range m.days[owner] {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Writes counts calls to WriteDay and WriteMonth.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
