package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/fretlab/guitar-mastery/internal/orchestrator"
	"github.com/fretlab/guitar-mastery/internal/security"
)

// ChatRequest is the payload for POST /api/v1/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	SessionID      string `json:"session_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	SkillLevel     string `json:"skill_level,omitempty"`
	PreferredAgent string `json:"preferred_agent,omitempty"`
}

// ClassifyRequest is the payload for POST /api/v1/chat/classify.
type ClassifyRequest struct {
	Message string `json:"message"`
}

// TokenRequest is the payload for POST /api/v1/admin/token.
type TokenRequest struct {
	UserID     string `json:"user_id"`
	SkillLevel string `json:"skill_level,omitempty"`
}

// sessionLocks serializes request processing per session. Contexts are not
// internally locked, so two concurrent turns on one session must queue.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *sessionLocks) lock(sessionID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	return m
}

var chatLocks sessionLocks

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	validator := s.stack.Validator()
	req.Message = validator.Sanitize(req.Message)
	if err := validator.ValidateMessage(req.Message); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := req.UserID
	skillLevel := req.SkillLevel
	if info, ok := security.GetAuthInfo(r.Context()); ok {
		if userID == "" {
			userID = info.UserID
		}
		if skillLevel == "" {
			skillLevel = info.SkillLevel
		}
	}

	if s.coordinator == nil {
		s.handleRoutingOnlyChat(w, req)
		return
	}

	cctx := s.sessions.GetOrCreate(req.SessionID, userID, skillLevel)

	lock := chatLocks.lock(cctx.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if req.PreferredAgent != "" {
		cctx.Metadata["preferred_agent"] = req.PreferredAgent
	} else {
		delete(cctx.Metadata, "preferred_agent")
	}

	cctx.AddMessage("user", req.Message, "")

	resp := s.coordinator.Process(r.Context(), req.Message, cctx)

	cctx.AddMessage("assistant", resp.Content, resp.PrimaryAgent)
	for _, name := range resp.AllAgentsUsed {
		cctx.RecordAgentUsed(name)
	}
	if cat := resp.RoutingDecision.IntentCategory; cat != "" && cat != "general" {
		cctx.CurrentTopic = cat
	}

	if auditor := s.stack.Auditor(); auditor != nil {
		auditor.RecordChatRequest(r.Context(), cctx.SessionID, resp.AllAgentsUsed, http.StatusOK, time.Since(start))
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleRoutingOnlyChat answers without agents when no LLM credentials are
// configured. The classifier still runs so callers can see where a message
// would have gone.
func (s *Server) handleRoutingOnlyChat(w http.ResponseWriter, req ChatRequest) {
	decision := s.classifier.Classify(req.Message)

	cctx := s.sessions.GetOrCreate(req.SessionID, req.UserID, req.SkillLevel)
	cctx.AddMessage("user", req.Message, "")

	resp := &orchestrator.Response{
		Content: "The service is running without language model credentials, so I can't answer directly. " +
			"Your question would be handled by the " + decision.AgentName + " agent.",
		PrimaryAgent:    "orchestrator",
		AllAgentsUsed:   []string{},
		SessionID:       cctx.SessionID,
		RoutingDecision: decision,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := make([]map[string]any, 0, len(s.catalog))
	for _, agent := range s.catalog {
		agents = append(agents, map[string]any{
			"name":     agent.Name(),
			"role":     agent.Role(),
			"provider": agent.Provider(),
			"tools":    agent.ToolNames(),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	cctx, ok := s.sessions.Get(sessionID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Session "+sessionID+" not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session":         cctx.Snapshot(),
		"recent_messages": cctx.RecentMessages(10),
		"created_at":      cctx.CreatedAt,
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if err := s.stack.Validator().ValidateMessage(req.Message); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, s.classifier.Classify(req.Message))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime_s":  int64(time.Since(startTime).Seconds()),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleAdminHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	database := "connected"
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			status = "degraded"
			database = "unreachable: " + err.Error()
		}
	} else {
		database = "not configured"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]any{
		"status":        status,
		"database":      database,
		"agents":        len(s.catalog),
		"live_sessions": s.sessions.Len(),
		"routing_only":  s.coordinator == nil,
		"uptime_s":      int64(time.Since(startTime).Seconds()),
		"timestamp":     time.Now().Unix(),
	})
}

// handleAdminConfig reports the running configuration with secrets omitted.
func (s *Server) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app": map[string]any{
			"name":        s.cfg.App.Name,
			"version":     s.cfg.App.Version,
			"environment": s.cfg.App.Environment,
		},
		"orchestrator": map[string]any{
			"max_agents_per_request": s.cfg.Orchestrator.MaxAgentsPerRequest,
			"agent_timeout":          s.cfg.Orchestrator.AgentTimeout.String(),
		},
		"llm": map[string]any{
			"credentials_configured": s.cfg.HasLLMCredentials(),
		},
		"security": map[string]any{
			"rate_limiting_enabled": s.cfg.Security.RateLimiting.Enabled,
			"requests_per_minute":   s.cfg.Security.RateLimiting.RequestsPerMin,
			"max_message_length":    s.cfg.Security.RequestValidation.MaxMessageLength,
			"auth_enabled":          len(s.cfg.Security.APIKeys) > 0 || s.cfg.Security.JWTSecret != "",
		},
	})
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	auth := s.stack.Authenticator()
	if auth == nil || s.cfg.Security.JWTSecret == "" {
		s.writeError(w, http.StatusForbidden, "Token issuing is not configured")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, err := auth.IssueJWT(req.UserID, req.SkillLevel, nil)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"user_id": req.UserID,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "api_error",
			"code":    code,
		},
		"timestamp": time.Now().Unix(),
	})
}
