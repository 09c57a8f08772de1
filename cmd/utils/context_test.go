package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

func signed(t *testing.T, key []byte, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestAuthMiddleware(t *testing.T) {
	var seen uint
	handler := AuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("GetUserIDFromContext() error = %v", err)
		}
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + signed(t, secret, "42", time.Now().Add(time.Hour)), http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong key", "Bearer " + signed(t, []byte("other"), "42", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + signed(t, secret, "42", time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"non-numeric subject", "Bearer " + signed(t, secret, "abc", time.Now().Add(time.Hour)), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && seen != 42 {
				t.Errorf("user id = %d, want 42", seen)
			}
		})
	}
}

func TestRespondWithAppError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.Invalid("rating", "must be between 1 and 5"), http.StatusBadRequest},
		{apperr.Precondition("review_required", "review first"), http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		RespondWithAppError(rec, zap.NewNop(), tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
