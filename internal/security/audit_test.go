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

func newTestAuditor(config *AuditConfig) *Auditor {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewAuditor(config, logger)
}

func TestAuditor_Record(t *testing.T) {
	a := newTestAuditor(&AuditConfig{Enabled: true, BufferSize: 10})
	defer a.Stop()

	a.Record(context.Background(), EventChatRequest, "chat request", map[string]interface{}{
		"session_id": "sess-1",
	})

	assert.Equal(t, int64(1), a.EventCount())
}

func TestAuditor_RecordDisabled(t *testing.T) {
	a := newTestAuditor(&AuditConfig{Enabled: false})

	a.Record(context.Background(), EventChatRequest, "ignored", nil)
	assert.Equal(t, int64(0), a.EventCount())
}

func TestAuditor_RecordChatRequest(t *testing.T) {
	a := newTestAuditor(&AuditConfig{Enabled: true})
	defer a.Stop()

	ctx := WithAuthInfo(context.Background(), &AuthInfo{UserID: "student-1"})
	a.RecordChatRequest(ctx, "sess-9", []string{"jazz_teacher"}, http.StatusOK, 120*time.Millisecond)

	assert.Equal(t, int64(1), a.EventCount())
}

func TestAuditor_StopIsIdempotent(t *testing.T) {
	a := newTestAuditor(&AuditConfig{Enabled: true})
	a.Stop()
	a.Stop()
}

func TestAuditor_Middleware(t *testing.T) {
	a := newTestAuditor(&AuditConfig{Enabled: true, BufferSize: 10})
	defer a.Stop()

	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, "unknown", ClientIP(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
	req.RemoteAddr = "192.0.2.7:4567"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, int64(1), a.EventCount())
}

func TestAuditor_MiddlewareClassifiesFailures(t *testing.T) {
	a := newTestAuditor(&AuditConfig{Enabled: true, BufferSize: 10})
	defer a.Stop()

	handler := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil))
	require.Equal(t, int64(1), a.EventCount())
}

func TestRedactSensitive(t *testing.T) {
	details := map[string]interface{}{
		"api_key":    "sk-12345",
		"session_id": "sess-1",
		"AuthToken":  "abc",
	}

	out := redactSensitive(details)
	assert.Equal(t, "***REDACTED***", out["api_key"])
	assert.Equal(t, "***REDACTED***", out["AuthToken"])
	assert.Equal(t, "sess-1", out["session_id"])

	assert.Nil(t, redactSensitive(nil))
}
