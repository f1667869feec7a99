package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/fretlab/guitar-mastery/internal/types"
)

// HistoryEntry is one recorded conversation turn. Entries are append-only
// and timestamped at insertion.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Context accumulates per-session state across turns. One instance per
// session, long-lived until the session store drops it. Not internally
// locked: callers must serialize request processing per session. Contexts
// for different sessions are fully independent.
type Context struct {
	SessionID           string
	UserID              string
	UserSkillLevel      string
	CurrentTopic        string
	ConversationHistory []HistoryEntry
	ActiveQuiz          map[string]any
	ActiveLesson        map[string]any
	AgentRoutingHistory []string
	Metadata            map[string]string
	CreatedAt           time.Time
}

// NewContext creates a fresh session context. A blank sessionID gets a
// generated UUID.
func NewContext(sessionID, userID, skillLevel string) *Context {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if skillLevel == "" {
		skillLevel = "intermediate"
	}
	return &Context{
		SessionID:      sessionID,
		UserID:         userID,
		UserSkillLevel: skillLevel,
		Metadata:       make(map[string]string),
		CreatedAt:      time.Now().UTC(),
	}
}

// AddMessage appends a turn to the conversation history.
func (c *Context) AddMessage(role, content, agent string) {
	c.ConversationHistory = append(c.ConversationHistory, HistoryEntry{
		Role:      role,
		Content:   content,
		Agent:     agent,
		Timestamp: time.Now().UTC(),
	})
}

// RecentMessages returns the last n turns reduced to role+content pairs.
// Only user and assistant roles are forwarded; anything else recorded in
// history (system annotations and the like) is filtered out before it can
// reach an agent.
func (c *Context) RecentMessages(n int) []types.Message {
	history := c.ConversationHistory
	if len(history) > n {
		history = history[len(history)-n:]
	}
	messages := make([]types.Message, 0, len(history))
	for _, entry := range history {
		if entry.Role != "user" && entry.Role != "assistant" {
			continue
		}
		messages = append(messages, types.Message{Role: entry.Role, Content: entry.Content})
	}
	return messages
}

// RecordAgentUsed appends to the routing history. Storage is unbounded;
// readers truncate on access.
func (c *Context) RecordAgentUsed(agentName string) {
	c.AgentRoutingHistory = append(c.AgentRoutingHistory, agentName)
}

// StartQuiz sets the active quiz, silently replacing any previous one.
func (c *Context) StartQuiz(quiz map[string]any) {
	c.ActiveQuiz = quiz
}

// EndQuiz clears and returns the active quiz, or nil when none is active.
func (c *Context) EndQuiz() map[string]any {
	quiz := c.ActiveQuiz
	c.ActiveQuiz = nil
	return quiz
}

// StartLesson sets the active lesson, silently replacing any previous one.
func (c *Context) StartLesson(lesson map[string]any) {
	c.ActiveLesson = lesson
}

// EndLesson clears and returns the active lesson, or nil when none is active.
func (c *Context) EndLesson() map[string]any {
	lesson := c.ActiveLesson
	c.ActiveLesson = nil
	return lesson
}

// Snapshot returns the read-only projection handed to agents. This is the
// only context surface agents may depend on.
func (c *Context) Snapshot() types.ContextSnapshot {
	history := c.AgentRoutingHistory
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	recent := make([]string, len(history))
	copy(recent, history)

	return types.ContextSnapshot{
		SessionID:    c.SessionID,
		UserID:       c.UserID,
		SkillLevel:   c.UserSkillLevel,
		CurrentTopic: c.CurrentTopic,
		ActiveQuiz:   c.ActiveQuiz,
		ActiveLesson: c.ActiveLesson,
		AgentHistory: recent,
		MessageCount: len(c.ConversationHistory),
	}
}
