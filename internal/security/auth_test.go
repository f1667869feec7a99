package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(config *AuthConfig) *Authenticator {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewAuthenticator(config, logger)
}

func TestAuthenticator_Enabled(t *testing.T) {
	assert.False(t, newTestAuthenticator(&AuthConfig{}).Enabled())
	assert.True(t, newTestAuthenticator(&AuthConfig{APIKeys: []string{"k"}}).Enabled())
	assert.True(t, newTestAuthenticator(&AuthConfig{JWTSecret: "s"}).Enabled())
}

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	auth := newTestAuthenticator(&AuthConfig{
		APIKeys: []string{"valid-key-1", "valid-key-2"},
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		apiKey  string
		wantErr bool
	}{
		{name: "valid key 1", apiKey: "valid-key-1"},
		{name: "valid key 2", apiKey: "valid-key-2"},
		{name: "invalid key", apiKey: "invalid-key", wantErr: true},
		{name: "empty key", apiKey: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := auth.ValidateAPIKey(ctx, tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, info)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, info)
				assert.NotEmpty(t, info.UserID)
				assert.Equal(t, "api_key", info.Metadata["auth_type"])
			}
		})
	}
}

func TestAuthenticator_IssueAndValidateJWT(t *testing.T) {
	auth := newTestAuthenticator(&AuthConfig{
		JWTSecret: "test-secret-key-for-jwt-signing-must-be-long-enough",
		JWTExpiry: time.Hour,
	})

	token, err := auth.IssueJWT("student-42", "advanced", map[string]string{"plan": "pro"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "student-42", claims.UserID)
	assert.Equal(t, "advanced", claims.SkillLevel)
	assert.Equal(t, "pro", claims.Metadata["plan"])
	assert.Equal(t, "guitar-mastery", claims.Issuer)
}

func TestAuthenticator_ValidateJWT_InvalidTokens(t *testing.T) {
	auth := newTestAuthenticator(&AuthConfig{
		JWTSecret: "test-secret-key-for-jwt-signing-must-be-long-enough",
	})

	for _, token := range []string{"", "not.a.jwt", "eyJhbGciOiJIUzI1NiJ9.invalid.sig"} {
		claims, err := auth.ValidateJWT(token)
		assert.Error(t, err)
		assert.Nil(t, claims)
	}
}

func TestAuthenticator_Authenticate(t *testing.T) {
	auth := newTestAuthenticator(&AuthConfig{
		APIKeys:   []string{"api-key-test"},
		JWTSecret: "test-secret-key-for-jwt-signing-must-be-long-enough",
		JWTExpiry: time.Hour,
	})
	ctx := context.Background()

	info, err := auth.Authenticate(ctx, "api-key-test")
	require.NoError(t, err)
	assert.Equal(t, "user_api-key-", info.UserID)

	token, err := auth.IssueJWT("student-7", "beginner", nil)
	require.NoError(t, err)

	info, err = auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "student-7", info.UserID)
	assert.Equal(t, "beginner", info.SkillLevel)

	info, err = auth.Authenticate(ctx, "garbage")
	assert.Error(t, err)
	assert.Nil(t, info)
}

func TestAuthenticator_Middleware(t *testing.T) {
	auth := newTestAuthenticator(&AuthConfig{APIKeys: []string{"secret-key-123"}})

	var gotInfo *AuthInfo
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotInfo, _ = GetAuthInfo(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Missing token is rejected.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health endpoints bypass auth.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// API key header is accepted.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
	req.Header.Set("X-API-Key", "secret-key-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotInfo)
	assert.Equal(t, "user_secret-k", gotInfo.UserID)
}

func TestAuthenticator_MiddlewareDisabled(t *testing.T) {
	auth := newTestAuthenticator(&AuthConfig{})

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "sk-1****cdef", MaskToken("sk-1234567890abcdef"))
	assert.Equal(t, "****", MaskToken("short"))
	assert.Equal(t, "****", MaskToken("12345678"))
}

func TestRequestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	assert.Equal(t, "203.0.113.9", RequestClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", RequestClientIP(req))

	req.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", RequestClientIP(req))
}

func TestGetAuthInfo(t *testing.T) {
	info := &AuthInfo{UserID: "student-1"}
	ctx := WithAuthInfo(context.Background(), info)

	got, ok := GetAuthInfo(ctx)
	assert.True(t, ok)
	assert.Equal(t, info, got)

	_, ok = GetAuthInfo(context.Background())
	assert.False(t, ok)
}
