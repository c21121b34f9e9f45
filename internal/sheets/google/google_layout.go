package google

import (
	"fmt"
	"sort"
	"strings"

	"ledger/internal/core"
)

// Column layout of the mirror sheet.
const (
	colOwner = iota
	colDate
	colCategory
	colAmount
	colNote
	colRecordID
	colLabel
	numCols
)

var header = []any{"owner_id", "date", "category", "amount", "note", "record_id", "category_label"}

// dayRows renders the items of days as sheet rows.
func dayRows(owner string, days []core.DayGroup) [][]any {
	var rows [][]any
	for _, d := range days {
		for _, it := range d.Items {
			rows = append(rows, []any{
				owner,
				string(d.Date),
				string(it.Category),
				it.Amount.Decimal().InexactFloat64(),
				it.Note,
				it.ID,
				it.Category.Label(),
			})
		}
	}
	return rows
}

// mergeRows drops the existing rows of owner whose date matches and adds
// fresh, returning the full sheet content with a header row. Rows are
// ordered by date, owner and category.
func mergeRows(existing [][]any, owner string, match func(date string) bool, fresh [][]any) [][]any {
	kept := make([][]any, 0, len(existing)+len(fresh))
	for i, row := range existing {
		if i == 0 && isHeader(row) {
			continue
		}
		if isBlank(row) {
			continue
		}
		if cell(row, colOwner) == owner && match(cell(row, colDate)) {
			continue
		}
		kept = append(kept, pad(row))
	}
	kept = append(kept, fresh...)

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if da, db := cell(a, colDate), cell(b, colDate); da != db {
			return da < db
		}
		if oa, ob := cell(a, colOwner), cell(b, colOwner); oa != ob {
			return oa < ob
		}
		return cell(a, colCategory) < cell(b, colCategory)
	})

	return append([][]any{header}, kept...)
}

// fillTo appends blank rows until rows spans height rows, so a single
// update overwrites whatever the sheet held below the new content.
func fillTo(rows [][]any, height int) [][]any {
	for len(rows) < height {
		rows = append(rows, pad(nil))
	}
	return rows
}

func dayMatcher(day core.DayKey) func(string) bool {
	return func(date string) bool { return date == string(day) }
}

func monthMatcher(month, year int) func(string) bool {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	return func(date string) bool { return strings.HasPrefix(date, prefix) }
}

func cell(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func isHeader(row []any) bool {
	return strings.EqualFold(cell(row, colOwner), "owner_id") && strings.EqualFold(cell(row, colDate), "date")
}

func isBlank(row []any) bool {
	for i := range row {
		if cell(row, i) != "" {
			return false
		}
	}
	return true
}

// pad extends short rows so every row spans the full layout.
func pad(row []any) []any {
	if len(row) >= numCols {
		return row[:numCols]
	}
	out := make([]any, numCols)
	copy(out, row)
	for i := len(row); i < numCols; i++ {
		out[i] = ""
	}
	return out
}
