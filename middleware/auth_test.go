package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthenticate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotID int
	var gotRole string
	handler := Authenticate(testSecret, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotID, err = GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotRole, err = GetUserRoleFromContext(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))

	valid := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 17,
		"role":    RoleOrganizer,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 17,
		"role":    RoleOrganizer,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	foreign := signToken(t, "other-secret", jwt.MapClaims{"user_id": 17, "role": RoleOrganizer})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + valid, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, 17, gotID)
	assert.Equal(t, RoleOrganizer, gotRole)
}

func TestAuthorize(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := Authorize(RoleOrganizer, RoleAdmin)(ok)

	serve := func(ctx context.Context) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(WithClaims(context.Background(), 1, RoleAdmin)))
	assert.Equal(t, http.StatusForbidden, serve(WithClaims(context.Background(), 1, RolePlayer)))
	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
}

func TestGetUserIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), userContextKey, jwt.MapClaims{"user_id": "23"})
	id, err := GetUserIDFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 23, id)

	ctx = context.WithValue(context.Background(), userContextKey, jwt.MapClaims{"user_id": 1.5})
	_, err = GetUserIDFromContext(ctx)
	assert.Error(t, err)

	ctx = context.WithValue(context.Background(), userContextKey, jwt.MapClaims{"user_id": float64(0)})
	_, err = GetUserIDFromContext(ctx)
	assert.Error(t, err)
}
