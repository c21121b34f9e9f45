package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	applog "ledger/internal/log"
	"ledger/internal/middleware/trace"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady reports whether the store answers within a short deadline
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		checks["storage"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if mc := s.svc.MonthCache(); mc != nil {
		checks["month_cache"] = fmt.Sprintf("ok (%d entries)", mc.Size())
	} else {
		checks["month_cache"] = "disabled"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	var cacheHits, cacheMisses uint64
	cacheSize := 0
	if mc := s.svc.MonthCache(); mc != nil {
		cacheHits, cacheMisses = mc.Stats()
		cacheSize = mc.Size()
	}

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_requests_failed_total", "counter", "Requests answered with a 5xx status", traceMetrics.FailedRequests)
	metric("http_panics_total", "counter", "Handler panics recovered", traceMetrics.Panics)
	metric("ledger_entries_ingested_total", "counter", "Entries accepted by bulk add", atomic.LoadInt64(&s.appMetrics.entriesIngested))
	metric("ledger_days_replaced_total", "counter", "Successful day replacements", atomic.LoadInt64(&s.appMetrics.daysReplaced))
	metric("ledger_records_deleted_total", "counter", "Records deleted by id", atomic.LoadInt64(&s.appMetrics.recordsDeleted))
	metric("month_cache_hits_total", "counter", "Month cache hits", cacheHits)
	metric("month_cache_misses_total", "counter", "Month cache misses", cacheMisses)
	metric("month_cache_entries", "gauge", "Current month cache entries", cacheSize)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

// writeServiceError maps err to its status code and JSON envelope.
// Unexpected failures are logged with their detail and answered generically.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, body := errorStatus(err)

	ctx := r.Context()
	fields := applog.NewFields()
	if owner, ok := ownerOf(r); ok {
		fields = fields.WithOwner(owner)
	}

	switch {
	case status >= http.StatusInternalServerError:
		s.events.LogError(ctx, "Ledger operation failed", err, applog.ComponentLedger, operation,
			fields.WithRequestID(trace.GetRequestID(ctx)))
	default:
		// the request scoped logger already carries the request id
		applog.FromContext(ctx).DebugContext(ctx, "Ledger request rejected",
			append(fields.WithError(err).WithOperation(operation).ToSlice(), applog.FieldStatusCode, status)...)
	}

	NewJSONResponse().Status(status).Body(body).Write(w)
}
