// Package middleware composes the HTTP middleware stack for the chat API.
package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/security"
)

// StackConfig carries the settings for every middleware component.
type StackConfig struct {
	Auth       *security.AuthConfig
	RateLimit  *security.RateLimitConfig
	Validation *security.ValidationConfig
	Audit      *security.AuditConfig
	CORS       *CORSConfig
}

// Stack bundles authentication, rate limiting, input validation, and audit
// logging into a single handler chain.
type Stack struct {
	auth      *security.Authenticator
	limiter   *security.RateLimiter
	validator *security.MessageValidator
	auditor   *security.Auditor
	cors      *CORSConfig
	logger    *logrus.Logger
}

// NewStack builds the middleware stack from config.
func NewStack(config *StackConfig, logger *logrus.Logger) *Stack {
	s := &Stack{cors: config.CORS, logger: logger}

	if config.Auth != nil {
		s.auth = security.NewAuthenticator(config.Auth, logger)
	}
	if config.RateLimit != nil && config.RateLimit.Enabled {
		s.limiter = security.NewRateLimiter(config.RateLimit, logger)
	}
	if config.Validation != nil {
		s.validator = security.NewMessageValidator(config.Validation, logger)
	}
	if config.Audit != nil {
		s.auditor = security.NewAuditor(config.Audit, logger)
	}

	return s
}

// Handler wraps a handler in the full chain. Ordering matters: audit sees
// everything, auth runs before rate limiting so limits key on user identity,
// and validation runs last before the handler itself.
func (s *Stack) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next

		if s.validator != nil {
			handler = s.validator.Middleware()(handler)
		}
		if s.limiter != nil {
			handler = s.limiter.Middleware()(handler)
		}
		if s.auth != nil {
			handler = s.auth.Middleware()(handler)
		}
		if s.auditor != nil {
			handler = s.auditor.Middleware()(handler)
		}
		if s.cors != nil {
			handler = CORS(s.cors)(handler)
		}
		handler = SecurityHeaders()(handler)
		handler = RequestLogger(s.logger)(handler)

		return handler
	}
}

// Validator exposes the message validator for handler-level checks.
func (s *Stack) Validator() *security.MessageValidator {
	return s.validator
}

// Auditor exposes the audit logger for handler-level events.
func (s *Stack) Auditor() *security.Auditor {
	return s.auditor
}

// Authenticator exposes the authenticator for token issuing endpoints.
func (s *Stack) Authenticator() *security.Authenticator {
	return s.auth
}

// Stop shuts down background goroutines owned by the stack.
func (s *Stack) Stop() {
	if s.auditor != nil {
		s.auditor.Stop()
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// SecurityHeaders applies standard hardening headers to every response.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'self'")
			next.ServeHTTP(w, r)
		})
	}
}
