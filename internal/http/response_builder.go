// Package http provides the JSON API server and its handlers.
//
// This file implements a small fluent builder for JSON responses, the
// response DTOs and the single mapping from service errors to status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ledger/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header sets a custom header.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value to encode. A nil body sends headers only.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","message":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// errorResponse is the envelope for every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorResponse{Error: code, Message: message})
}

// errorStatus classifies err. The returned body never carries storage
// detail for unexpected failures.
func errorStatus(err error) (int, errorResponse) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: "validation_error", Field: ve.Field, Message: ve.Error()}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not_found", Message: core.ErrNotFound.Error()}
	case core.IsRetryable(err):
		return http.StatusConflict, errorResponse{Error: "conflict", Message: "the day was modified concurrently, retry the request", Retryable: true}
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "storage_unavailable", Message: "storage is temporarily unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "timeout", Message: "the request took too long"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "internal server error"}
	}
}

// dayItemResponse is one record inside a day group.
type dayItemResponse struct {
	ID       string        `json:"id"`
	Amount   core.Amount   `json:"amount"`
	Category core.Category `json:"category"`
	Note     string        `json:"note"`
}

// dayGroupResponse is the wire form of core.DayGroup.
type dayGroupResponse struct {
	Date  core.DayKey       `json:"date"`
	Items []dayItemResponse `json:"items"`
	Total core.Amount       `json:"total"`
}

// categoryTotalResponse is the wire form of core.CategoryTotal.
type categoryTotalResponse struct {
	Category core.Category `json:"category"`
	Total    core.Amount   `json:"total"`
	Count    int           `json:"count"`
}

type ingestResponse struct {
	Message string             `json:"message"`
	Data    []dayGroupResponse `json:"data"`
}

type replaceDayResponse struct {
	Message string             `json:"message"`
	Day     dayGroupResponse   `json:"day"`
	Month   []dayGroupResponse `json:"month"`
}

func toDayGroup(g core.DayGroup) dayGroupResponse {
	items := make([]dayItemResponse, len(g.Items))
	for i, it := range g.Items {
		items[i] = dayItemResponse{ID: it.ID, Amount: it.Amount, Category: it.Category, Note: it.Note}
	}
	return dayGroupResponse{Date: g.Date, Items: items, Total: g.Total}
}

func toDayGroups(groups []core.DayGroup) []dayGroupResponse {
	out := make([]dayGroupResponse, len(groups))
	for i, g := range groups {
		out[i] = toDayGroup(g)
	}
	return out
}

func toCategoryTotals(totals []core.CategoryTotal) []categoryTotalResponse {
	out := make([]categoryTotalResponse, len(totals))
	for i, t := range totals {
		out[i] = categoryTotalResponse{Category: t.Category, Total: t.Total, Count: t.Count}
	}
	return out
}
