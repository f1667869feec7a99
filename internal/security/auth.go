// Package security provides authentication, rate limiting, request
// validation, and audit logging for the chat API.
package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const jwtIssuer = "guitar-mastery"

type contextKey string

const (
	authInfoKey contextKey = "auth_info"
	clientIPKey contextKey = "client_ip"
)

// AuthInfo describes the caller once a token has been accepted.
type AuthInfo struct {
	UserID     string            `json:"user_id"`
	SkillLevel string            `json:"skill_level,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
}

// ChatClaims are the JWT claims issued for chat sessions.
type ChatClaims struct {
	UserID     string            `json:"user_id"`
	SkillLevel string            `json:"skill_level,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig holds authenticator settings. Authentication is enforced only
// when at least one API key or a JWT secret is configured.
type AuthConfig struct {
	APIKeys   []string      `yaml:"api_keys"`
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
}

// Authenticator validates API keys and JWT bearer tokens.
type Authenticator struct {
	config *AuthConfig
	logger *logrus.Logger
}

// NewAuthenticator creates an authenticator from config.
func NewAuthenticator(config *AuthConfig, logger *logrus.Logger) *Authenticator {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	return &Authenticator{config: config, logger: logger}
}

// Enabled reports whether any credential source is configured. With nothing
// configured the chat API is open.
func (a *Authenticator) Enabled() bool {
	return len(a.config.APIKeys) > 0 || a.config.JWTSecret != ""
}

// Authenticate accepts either a configured API key or a signed JWT.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*AuthInfo, error) {
	if info, err := a.ValidateAPIKey(ctx, token); err == nil {
		return info, nil
	}
	if a.config.JWTSecret != "" {
		if claims, err := a.ValidateJWT(token); err == nil {
			return &AuthInfo{
				UserID:     claims.UserID,
				SkillLevel: claims.SkillLevel,
				Metadata:   claims.Metadata,
				ExpiresAt:  &claims.ExpiresAt.Time,
			}, nil
		}
	}
	return nil, errors.New("invalid authentication token")
}

// ValidateAPIKey checks a key against the configured set using constant-time
// comparison.
func (a *Authenticator) ValidateAPIKey(ctx context.Context, apiKey string) (*AuthInfo, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	for _, valid := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(valid)) == 1 {
			return &AuthInfo{
				UserID:   deriveUserID(apiKey),
				Metadata: map[string]string{"auth_type": "api_key"},
			}, nil
		}
	}

	a.logger.WithFields(logrus.Fields{
		"api_key_prefix": MaskToken(apiKey),
		"remote_ip":      ClientIP(ctx),
	}).Warn("Invalid API key attempted")

	return nil, errors.New("invalid API key")
}

// IssueJWT signs a token for a user. The skill level travels in the claims so
// agents can tailor their answers without a profile lookup.
func (a *Authenticator) IssueJWT(userID, skillLevel string, metadata map[string]string) (string, error) {
	if a.config.JWTSecret == "" {
		return "", errors.New("no JWT secret configured")
	}

	now := time.Now()
	claims := &ChatClaims{
		UserID:     userID,
		SkillLevel: skillLevel,
		Metadata:   metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.JWTExpiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.config.JWTSecret))
}

// ValidateJWT parses and verifies a token issued by IssueJWT.
func (a *Authenticator) ValidateJWT(tokenString string) (*ChatClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChatClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.config.JWTSecret), nil
	}, jwt.WithIssuer(jwtIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ChatClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware enforces authentication on everything except health endpoints.
// When no credentials are configured it passes requests through.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() || strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeAuthError(w, "Missing authentication token")
				return
			}

			ctx := WithClientIP(r.Context(), RequestClientIP(r))
			info, err := a.Authenticate(ctx, token)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"path":      r.URL.Path,
					"method":    r.Method,
					"remote_ip": RequestClientIP(r),
				}).Warn("Authentication failed")
				writeAuthError(w, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(ctx, info)))
		})
	}
}

// WithAuthInfo stores auth info in the context.
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

// GetAuthInfo extracts auth info from the context.
func GetAuthInfo(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

// WithClientIP stores the caller address in the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the caller address stored in the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return "unknown"
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func deriveUserID(apiKey string) string {
	if len(apiKey) >= 8 {
		return "user_" + apiKey[:8]
	}
	return "user_" + apiKey
}

// MaskToken hides all but the edges of a credential for log output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// RequestClientIP resolves the caller address, honoring proxy headers.
func RequestClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `","type":"authentication_error"}`))
}
