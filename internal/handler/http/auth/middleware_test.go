package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminToken(t *testing.T) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"sub":  "ops-admin",
		"role": "admin",
		"exp":  float64(time.Now().Add(time.Hour).Unix()),
	})
}

func newProtectedHandler(t *testing.T) http.Handler {
	t.Setenv("JWT_SECRET", testSecret)
	return Authz(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(UserFromContext(r.Context())))
	}))
}

func TestAuthzPublicEndpoint(t *testing.T) {
	handler := newProtectedHandler(t)

	for _, path := range []string{"/healthz", "/metrics", "/runs", "/runs/42", "/resilience/circuits"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuthzMissingToken(t *testing.T) {
	handler := newProtectedHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/resilience/reset", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthzAdminToken(t *testing.T) {
	handler := newProtectedHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/resilience/reset", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops-admin", rec.Body.String())
}

func TestAuthzNonAdminRole(t *testing.T) {
	handler := newProtectedHandler(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "viewer",
		"role": "reader",
		"exp":  float64(time.Now().Add(time.Hour).Unix()),
	})
	req := httptest.NewRequest(http.MethodPost, "/resilience/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthzExpiredToken(t *testing.T) {
	handler := newProtectedHandler(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "ops-admin",
		"role": "admin",
		"exp":  float64(time.Now().Add(-time.Hour).Unix()),
	})
	req := httptest.NewRequest(http.MethodPost, "/resilience/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthzWrongSecret(t *testing.T) {
	handler := newProtectedHandler(t)

	token := signToken(t, "ffffffffffffffffffffffffffffffff", jwt.MapClaims{
		"sub":  "ops-admin",
		"role": "admin",
		"exp":  float64(time.Now().Add(time.Hour).Unix()),
	})
	req := httptest.NewRequest(http.MethodPost, "/resilience/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIsPublicEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/healthz", true},
		{"/healthz?format=json", true},
		{"/healthz/detail", false},
		{"/metrics", true},
		{"/runs", true},
		{"/runs/42", true},
		{"/resilience/analytics", true},
		{"/resilience/reset", false},
		{"/resilience", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPublicEndpoint(tt.path), tt.path)
	}
}

func TestValidateSecret(t *testing.T) {
	require.NoError(t, ValidateSecret(testSecret))

	assert.Error(t, ValidateSecret(""))
	assert.Error(t, ValidateSecret("short"))
	assert.Error(t, ValidateSecret("secret"))
	assert.Error(t, ValidateSecret("PASSWORD"))
}
