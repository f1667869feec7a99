package security

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// ValidationConfig holds chat input validation settings.
type ValidationConfig struct {
	MaxRequestSize   int64 `yaml:"max_request_size"`
	MaxMessageLength int   `yaml:"max_message_length"`
}

// MessageValidator checks and sanitizes chat input before it reaches the
// coordinator.
type MessageValidator struct {
	config *ValidationConfig
	logger *logrus.Logger
}

// NewMessageValidator creates a validator with sane fallbacks.
func NewMessageValidator(config *ValidationConfig, logger *logrus.Logger) *MessageValidator {
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = 1 << 20
	}
	if config.MaxMessageLength <= 0 {
		config.MaxMessageLength = 5000
	}
	return &MessageValidator{config: config, logger: logger}
}

// ValidateMessage rejects empty, oversized, or malformed chat messages.
// Length is counted in runes so multibyte text is not penalized.
func (v *MessageValidator) ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if !utf8.ValidString(message) {
		return fmt.Errorf("message contains invalid UTF-8")
	}
	if n := utf8.RuneCountInString(message); n > v.config.MaxMessageLength {
		return fmt.Errorf("message length %d exceeds maximum %d", n, v.config.MaxMessageLength)
	}
	return nil
}

// Sanitize strips null bytes and control characters, keeping newlines and
// tabs so formatted questions survive.
func (v *MessageValidator) Sanitize(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Middleware caps the request body size and requires JSON on mutating
// methods.
func (v *MessageValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > v.config.MaxRequestSize {
				v.logger.WithFields(logrus.Fields{
					"path":           r.URL.Path,
					"content_length": r.ContentLength,
				}).Warn("Request body too large")
				writeValidationError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}

			if r.Method == http.MethodPost || r.Method == http.MethodPut {
				ct := strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0])
				if !strings.EqualFold(ct, "application/json") {
					writeValidationError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
					return
				}
			}

			r.Body = http.MaxBytesReader(w, r.Body, v.config.MaxRequestSize)
			next.ServeHTTP(w, r)
		})
	}
}

func writeValidationError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":%q,"type":"validation_error"}`, message)
}
