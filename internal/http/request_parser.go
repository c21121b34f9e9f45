// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data:
// month/year query parameters with current-month defaults, bounded JSON
// body decoding and the loosely typed amount field.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/core"
	"ledger/internal/middleware/auth"
	"ledger/internal/services"
)

// maxBodyBytes bounds request bodies. A month of entries fits comfortably.
const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts month and year from query parameters. Omitted
// values fall back to the current month; non-numeric values are rejected.
// Range checks are left to the calendar.
func ParseMonthParams(query url.Values, current func() (int, int)) (MonthParams, error) {
	month, year := current()
	params := MonthParams{Year: year, Month: month}

	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.NewValidationError("month", "must be an integer")
		}
		params.Month = m
	}
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.NewValidationError("year", "must be an integer")
		}
		params.Year = y
	}

	return params, nil
}

// DecodeJSONBody decodes a single JSON value from the request body into dst.
// Malformed, oversized or trailing input is reported as a validation error
// on "body".
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return core.NewValidationError("body", "is required")
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "application/json") {
		return core.NewValidationError("body", "must be application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return core.NewValidationError("body", "is required")
		case errors.As(err, &tooLarge):
			return core.NewValidationError("body", fmt.Sprintf("must not exceed %d bytes", tooLarge.Limit))
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return core.NewValidationError("body", fmt.Sprintf("field %s has the wrong type", typeErr.Field))
		default:
			return core.NewValidationError("body", "must be valid JSON")
		}
	}
	if dec.More() {
		return core.NewValidationError("body", "must contain a single JSON value")
	}
	return nil
}

// AmountField accepts an amount as a JSON number or string and keeps its
// textual form for exact decimal parsing. Numbers in exponent form go
// through float conversion. Other JSON values are kept verbatim so the
// amount parser rejects them with a field-level error.
type AmountField string

func (a *AmountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AmountField(s)
	case bytes.ContainsAny(data, "eE") && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			*a = AmountField(data)
			return nil
		}
		amount, err := core.AmountFromFloat(f)
		if err != nil {
			*a = AmountField(data)
			return nil
		}
		*a = AmountField(amount.String())
	default:
		*a = AmountField(data)
	}
	return nil
}

// entryRequest is one bulk-add entry as sent by clients.
type entryRequest struct {
	Amount   AmountField `json:"amount"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
	Note     string      `json:"note"`
}

// ingestRequest is the bulk-add body. "expenses" is accepted as an alias
// of "entries".
type ingestRequest struct {
	Entries  []entryRequest `json:"entries"`
	Expenses []entryRequest `json:"expenses"`
}

func (req ingestRequest) inputs() []services.EntryInput {
	src := req.Entries
	if src == nil {
		src = req.Expenses
	}
	inputs := make([]services.EntryInput, len(src))
	for i, e := range src {
		inputs[i] = services.EntryInput{
			Amount:   string(e.Amount),
			Category: e.Category,
			Date:     e.Date,
			Note:     e.Note,
		}
	}
	return inputs
}

// itemRequest is one category line of a day replacement.
type itemRequest struct {
	Amount   AmountField `json:"amount"`
	Category string      `json:"category"`
	Note     string      `json:"note"`
}

// replaceDayRequest is the replace-day body. A missing items array
// replaces the day with nothing.
type replaceDayRequest struct {
	Items []itemRequest `json:"items"`
}

func (req replaceDayRequest) inputs() []services.ItemInput {
	inputs := make([]services.ItemInput, len(req.Items))
	for i, it := range req.Items {
		inputs[i] = services.ItemInput{
			Amount:   string(it.Amount),
			Category: it.Category,
			Note:     it.Note,
		}
	}
	return inputs
}

// ownerOf returns the authenticated owner of the request.
func ownerOf(r *http.Request) (string, bool) {
	return auth.OwnerFromContext(r.Context())
}
