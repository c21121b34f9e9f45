package core

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxNoteLength bounds the free-text note on a record, in characters.
const MaxNoteLength = 200

type (
	// ExpenseRecord is one stored ledger line. At most one record exists
	// for a given (Owner, DayKey, Category).
	ExpenseRecord struct {
		ID           string
		Owner        string
		Amount       Amount
		Category     Category
		CalendarDate time.Time // start of the local calendar day
		DayKey       DayKey
		Note         string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// NaturalKey is the uniqueness key of a record.
	NaturalKey struct {
		Owner    string
		DayKey   DayKey
		Category Category
	}

	// Entry is a validated bulk-ingest input ready to be upserted.
	Entry struct {
		Amount       Amount
		Category     Category
		CalendarDate time.Time
		DayKey       DayKey
		Note         string
	}

	// DayItem is a record as presented inside a day group.
	DayItem struct {
		ID       string
		Amount   Amount
		Category Category
		Note     string
	}

	// DayGroup holds every record of one calendar day and their total.
	DayGroup struct {
		Date  DayKey
		Items []DayItem
		Total Amount
	}

	// CategoryTotal is the per-category sum over a period.
	CategoryTotal struct {
		Category Category
		Total    Amount
		Count    int
	}
)

// Key returns the record's natural key.
func (r ExpenseRecord) Key() NaturalKey {
	return NaturalKey{Owner: r.Owner, DayKey: r.DayKey, Category: r.Category}
}

// Item projects the record onto its day-group view.
func (r ExpenseRecord) Item() DayItem {
	return DayItem{ID: r.ID, Amount: r.Amount, Category: r.Category, Note: r.Note}
}

// SanitizeNote trims the note, drops control characters and enforces
// MaxNoteLength.
func SanitizeNote(note string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, note)
	cleaned = strings.TrimSpace(cleaned)
	if utf8.RuneCountInString(cleaned) > MaxNoteLength {
		return "", NewValidationError("note", "too long (max 200 characters)")
	}
	return cleaned, nil
}
