package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-16"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestVerifier_Owner(t *testing.T) {
	v := NewVerifier(testSecret)
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{
			name:  "id claim",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"id": "user-1", "exp": future}),
			want:  "user-1",
		},
		{
			name:  "sub fallback",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "user-2"}),
			want:  "user-2",
		},
		{
			name:  "numeric id",
			token: sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"id": 42}),
			want:  "42",
		},
		{
			name:    "no owner",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "admin"}),
			wantErr: ErrMissingOwner,
		},
		{
			name:    "wrong secret",
			token:   sign(t, jwt.SigningMethodHS256, []byte("another-secret-value"), jwt.MapClaims{"id": "user-1"}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "expired",
			token:   sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"id": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "other hmac size rejected",
			token:   sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"id": "user-1"}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not.a.token",
			wantErr: ErrInvalidToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Owner(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Owner() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Owner() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Owner() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifier_Middleware(t *testing.T) {
	v := NewVerifier(testSecret)
	var owner string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, _ = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
		r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"id": "user-1"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK || owner != "user-1" {
			t.Fatalf("status = %d owner = %q", rec.Code, owner)
		}
	})

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer nope"} {
		t.Run("rejects "+header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "unauthorized" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestOwnerFromContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := OwnerFromContext(r.Context()); ok {
		t.Error("expected no owner")
	}
	if got, ok := OwnerFromContext(WithOwner(r.Context(), "u")); !ok || got != "u" {
		t.Errorf("OwnerFromContext() = %q, %v", got, ok)
	}
}
