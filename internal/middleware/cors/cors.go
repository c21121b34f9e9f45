// Package cors implements an allow-list based Cross-Origin Resource Sharing
// middleware for the JSON API.
package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// Config holds CORS configuration. An AllowedOrigins entry of "*" allows
// every origin.
type Config struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int // seconds
}

// DefaultConfig returns the methods and headers the ledger API uses.
func DefaultConfig(origins []string) Config {
	return Config{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         3600,
	}
}

// Middleware applies CORS headers for allowed origins
type Middleware struct {
	origins  map[string]struct{}
	allowAll bool
	methods  string
	headers  string
	maxAge   string
}

// New creates a CORS middleware from config
func New(config Config) *Middleware {
	m := &Middleware{
		origins: make(map[string]struct{}, len(config.AllowedOrigins)),
		methods: strings.Join(config.AllowedMethods, ", "),
		headers: strings.Join(config.AllowedHeaders, ", "),
	}
	for _, o := range config.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			m.allowAll = true
			continue
		}
		if o != "" {
			m.origins[o] = struct{}{}
		}
	}
	if config.MaxAge > 0 {
		m.maxAge = strconv.Itoa(config.MaxAge)
	}
	return m
}

// Allowed reports whether origin may call the API.
func (m *Middleware) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if m.allowAll {
		return true
	}
	_, ok := m.origins[origin]
	return ok
}

// Handler wraps next. Preflight requests are answered with 204 and never
// reach next; disallowed origins get no CORS headers.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := m.Allowed(origin)

		h := w.Header()
		h.Add("Vary", "Origin")
		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
		if !preflight {
			next.ServeHTTP(w, r)
			return
		}

		if allowed {
			h.Set("Access-Control-Allow-Methods", m.methods)
			h.Set("Access-Control-Allow-Headers", m.headers)
			if m.maxAge != "" {
				h.Set("Access-Control-Max-Age", m.maxAge)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
