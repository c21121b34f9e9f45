package http

import (
	"net/http"

	applog "ledger/internal/log"
)

// requireOwner returns the authenticated owner or answers 401.
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := ownerOf(r)
	if !ok {
		ErrorResponse(http.StatusUnauthorized, "unauthorized", "authentication required").Write(w)
	}
	return owner, ok
}

// handleIngest adds a batch of entries and returns the month they target.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	params, err := ParseMonthParams(r.URL.Query(), s.svc.CurrentMonth)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpIngest)
		return
	}

	var req ingestRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err, applog.OpIngest)
		return
	}
	inputs := req.inputs()

	days, err := s.svc.Ingest(ctx, owner, params.Month, params.Year, inputs)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpIngest)
		return
	}

	s.appMetrics.add(&s.appMetrics.entriesIngested, len(inputs))
	s.events.LogBatchIngested(ctx, owner, len(inputs), len(days))

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(ingestResponse{Message: "Expenses added", Data: toDayGroups(days)}).
		Write(w)
}

// handleMonth returns the owner's month grouped by day.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	params, err := ParseMonthParams(r.URL.Query(), s.svc.CurrentMonth)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpRead)
		return
	}

	days, err := s.svc.MonthGrouped(r.Context(), owner, params.Month, params.Year)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpRead)
		return
	}
	NewJSONResponse().Body(toDayGroups(days)).Write(w)
}

// handleRange returns every day between start and end inclusive.
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	days, err := s.svc.RangeGrouped(r.Context(), owner, q.Get("start"), q.Get("end"))
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpRead)
		return
	}
	NewJSONResponse().Body(toDayGroups(days)).Write(w)
}

// handleDay returns one day; an empty day is not an error.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	day, err := s.svc.Day(r.Context(), owner, r.PathValue("date"))
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpRead)
		return
	}
	NewJSONResponse().Body(toDayGroup(day)).Write(w)
}

// handleReplaceDay makes the day hold exactly the submitted categories.
func (s *Server) handleReplaceDay(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req replaceDayRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		s.writeServiceError(w, r, err, applog.OpReplace)
		return
	}

	result, err := s.svc.ReplaceDay(ctx, owner, r.PathValue("date"), req.inputs())
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpReplace)
		return
	}

	s.appMetrics.add(&s.appMetrics.daysReplaced, 1)
	s.events.LogDayReplaced(ctx, owner, string(result.Day.Date), len(result.Day.Items), result.Day.Total.String())

	NewJSONResponse().Body(replaceDayResponse{
		Message: "Day upserted",
		Day:     toDayGroup(result.Day),
		Month:   toDayGroups(result.Month),
	}).Write(w)
}

// handleCategorySummary returns the month's totals per category.
func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	params, err := ParseMonthParams(r.URL.Query(), s.svc.CurrentMonth)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpSummary)
		return
	}

	totals, err := s.svc.CategorySummary(r.Context(), owner, params.Month, params.Year)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpSummary)
		return
	}
	NewJSONResponse().Body(toCategoryTotals(totals)).Write(w)
}

// handleDelete removes one record of the owner by id.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if err := s.svc.DeleteRecord(r.Context(), owner, r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err, applog.OpDelete)
		return
	}

	s.appMetrics.add(&s.appMetrics.recordsDeleted, 1)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
