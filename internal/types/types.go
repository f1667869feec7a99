package types

// Message is a single conversation turn in the shape language-model calls
// consume: role and content only.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextSnapshot is the read-only projection of a conversation context that
// agents receive. Agents must not depend on anything beyond this surface.
type ContextSnapshot struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id,omitempty"`
	SkillLevel   string         `json:"user_skill_level"`
	CurrentTopic string         `json:"current_topic,omitempty"`
	ActiveQuiz   map[string]any `json:"active_quiz,omitempty"`
	ActiveLesson map[string]any `json:"active_lesson,omitempty"`
	AgentHistory []string       `json:"agent_history"`
	MessageCount int            `json:"message_count"`
}

// AgentResponse is the structured result of a single agent invocation.
// A set Error field marks a degraded response, not a hard failure.
type AgentResponse struct {
	Content      string         `json:"content"`
	AgentName    string         `json:"agent_name"`
	Confidence   float64        `json:"confidence"`
	ToolsUsed    []string       `json:"tools_used,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Suggestions  []string       `json:"suggestions,omitempty"`
	TokensInput  int            `json:"tokens_input"`
	TokensOutput int            `json:"tokens_output"`
	LatencyMs    int64          `json:"latency_ms"`
	Error        string         `json:"error,omitempty"`
}
