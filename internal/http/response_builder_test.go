package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledger/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Body(map[string]string{"message": "ok"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["message"] != "ok" {
		t.Errorf("body = %v, err = %v", body, err)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		field     string
		retryable bool
	}{
		{"validation", core.WithField("entries[0]", core.NewValidationError("amount", "must be a positive number")), 400, "validation_error", "entries[0].amount", false},
		{"not found", fmt.Errorf("delete record x: %w", core.ErrNotFound), 404, "not_found", "", false},
		{"conflict", fmt.Errorf("replace day: %w", core.ErrConflict), 409, "conflict", "", true},
		{"unavailable", fmt.Errorf("open: %w", core.ErrStorageUnavailable), 503, "storage_unavailable", "", false},
		{"deadline", fmt.Errorf("find: %w", context.DeadlineExceeded), 504, "timeout", "", false},
		{"unexpected", errors.New("disk on fire at /var/lib/ledger.db"), 500, "internal_error", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorStatus(tt.err)
			if status != tt.status || body.Error != tt.code || body.Field != tt.field || body.Retryable != tt.retryable {
				t.Errorf("errorStatus() = %d %+v", status, body)
			}
			if tt.status == 500 && body.Message != "internal server error" {
				t.Errorf("internal detail leaked: %q", body.Message)
			}
		})
	}
}

func TestToDayGroupEncodesAmountsAsNumbers(t *testing.T) {
	g := core.DayGroup{
		Date:  "2024-03-01",
		Items: []core.DayItem{{ID: "r1", Amount: core.MustAmount("12.50"), Category: core.CategoryGrocery, Note: "market"}},
		Total: core.MustAmount("12.50"),
	}
	data, err := json.Marshal(toDayGroup(g))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"date":"2024-03-01","items":[{"id":"r1","amount":12.5,"category":"grocery","note":"market"}],"total":12.5}`
	if string(data) != want {
		t.Errorf("json = %s\nwant   %s", data, want)
	}

	empty, _ := json.Marshal(toDayGroup(core.DayGroup{Date: "2024-03-02", Items: []core.DayItem{}, Total: core.ZeroAmount}))
	if string(empty) != `{"date":"2024-03-02","items":[],"total":0}` {
		t.Errorf("empty day json = %s", empty)
	}
}
