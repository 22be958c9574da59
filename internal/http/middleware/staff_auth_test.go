package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedStaffToken(t *testing.T, secret, role string, ttl time.Duration) string {
	t.Helper()
	claims := StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "front-desk-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestStaffJWT(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"auth disabled", "", "Bearer " + signedStaffToken(t, "secret", "staff", time.Minute), http.StatusUnauthorized},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"not bearer", "secret", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "secret", "Bearer " + signedStaffToken(t, "other", "staff", time.Minute), http.StatusUnauthorized},
		{"expired", "secret", "Bearer " + signedStaffToken(t, "secret", "staff", -time.Minute), http.StatusUnauthorized},
		{"patient role", "secret", "Bearer " + signedStaffToken(t, "secret", "patient", time.Minute), http.StatusForbidden},
		{"staff", "secret", "Bearer " + signedStaffToken(t, "secret", "staff", time.Minute), http.StatusOK},
		{"admin", "secret", "Bearer " + signedStaffToken(t, "secret", "admin", time.Minute), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/appointments/1/cancel", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			StaffJWT(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims, ok := StaffClaimsFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, "front-desk-1", claims.Subject)
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStaffJWTRejectsNoneAlgorithm(t *testing.T) {
	claims := StaffClaims{Role: "admin"}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/appointments/1/complete", nil)
	req.Header.Set("Authorization", "Bearer "+unsigned)
	rec := httptest.NewRecorder()
	StaffJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
