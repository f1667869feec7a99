package security

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditEventType classifies chat audit events.
type AuditEventType string

const (
	EventChatRequest       AuditEventType = "chat_request"
	EventSessionCreated    AuditEventType = "session_created"
	EventAuthFailure       AuditEventType = "auth_failure"
	EventRateLimitExceeded AuditEventType = "rate_limit_exceeded"
	EventValidationFailure AuditEventType = "validation_failure"
)

// AuditEvent is a single audited request or security incident.
type AuditEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	UserID    string                 `json:"user_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AuditConfig holds audit logger settings.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Auditor records security-relevant events asynchronously. Events are
// buffered on a channel and flushed to the structured log so the request
// path never blocks on audit IO.
type Auditor struct {
	config *AuditConfig
	logger *logrus.Logger

	buffer chan *AuditEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	count   int64
	stopped bool
}

// NewAuditor creates an auditor and starts its event processor when enabled.
func NewAuditor(config *AuditConfig, logger *logrus.Logger) *Auditor {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 10 * time.Second
	}

	a := &Auditor{
		config: config,
		logger: logger,
		buffer: make(chan *AuditEvent, config.BufferSize),
		done:   make(chan struct{}),
	}
	if config.Enabled {
		a.wg.Add(1)
		go a.processEvents()
	}
	return a
}

// Record queues an audit event. Full buffers drop the event rather than
// blocking the request.
func (a *Auditor) Record(ctx context.Context, eventType AuditEventType, message string, details map[string]interface{}) {
	a.mu.Lock()
	enabled := a.config.Enabled && !a.stopped
	a.mu.Unlock()
	if !enabled {
		return
	}

	event := &AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		IPAddress: ClientIP(ctx),
		Message:   message,
		Details:   redactSensitive(details),
	}
	if info, ok := GetAuthInfo(ctx); ok {
		event.UserID = info.UserID
	}
	if sid, ok := details["session_id"].(string); ok {
		event.SessionID = sid
	}

	select {
	case a.buffer <- event:
		a.mu.Lock()
		a.count++
		a.mu.Unlock()
	default:
		a.logger.Warn("Audit buffer full, dropping event")
	}
}

// RecordChatRequest audits a completed chat exchange.
func (a *Auditor) RecordChatRequest(ctx context.Context, sessionID string, agents []string, statusCode int, duration time.Duration) {
	a.Record(ctx, EventChatRequest, "chat request processed", map[string]interface{}{
		"session_id":  sessionID,
		"agents":      agents,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	})
}

// EventCount returns the number of events recorded so far.
func (a *Auditor) EventCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Stop flushes buffered events and terminates the processor.
func (a *Auditor) Stop() {
	a.mu.Lock()
	if !a.config.Enabled || a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()

	for {
		select {
		case event := <-a.buffer:
			a.writeEvent(event)
		default:
			return
		}
	}
}

func (a *Auditor) processEvents() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]*AuditEvent, 0, 64)
	flush := func() {
		for _, event := range pending {
			a.writeEvent(event)
		}
		pending = pending[:0]
	}

	for {
		select {
		case event := <-a.buffer:
			pending = append(pending, event)
			if len(pending) >= 64 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-a.done:
			flush()
			return
		}
	}
}

func (a *Auditor) writeEvent(event *AuditEvent) {
	fields := logrus.Fields{
		"audit_event": true,
		"event_id":    event.ID,
		"event_type":  event.EventType,
		"timestamp":   event.Timestamp,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	for key, value := range event.Details {
		fields["detail_"+key] = value
	}

	entry := a.logger.WithFields(fields)
	switch event.EventType {
	case EventAuthFailure:
		entry.Warn(event.Message)
	case EventRateLimitExceeded, EventValidationFailure:
		entry.Info(event.Message)
	default:
		entry.Debug(event.Message)
	}
}

// Middleware tags each request with a request ID and client IP, then audits
// the outcome.
func (a *Auditor) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			ctx := WithClientIP(r.Context(), RequestClientIP(r))

			requestID := uuid.NewString()
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(recorder, r.WithContext(ctx))

			eventType := EventChatRequest
			switch recorder.status {
			case http.StatusUnauthorized:
				eventType = EventAuthFailure
			case http.StatusTooManyRequests:
				eventType = EventRateLimitExceeded
			case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
				eventType = EventValidationFailure
			}

			a.Record(ctx, eventType, r.Method+" "+r.URL.Path, map[string]interface{}{
				"request_id":  requestID,
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": recorder.status,
				"duration_ms": time.Since(start).Milliseconds(),
				"user_agent":  r.UserAgent(),
			})
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

var sensitiveTerms = []string{"password", "token", "secret", "key", "authorization", "credential"}

func redactSensitive(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	out := make(map[string]interface{}, len(details))
	for key, value := range details {
		if isSensitiveField(key) {
			out[key] = "***REDACTED***"
		} else {
			out[key] = value
		}
	}
	return out
}

func isSensitiveField(field string) bool {
	lower := strings.ToLower(field)
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
