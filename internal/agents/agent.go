// Package agents implements the specialized conversational agents. Each
// agent is a BaseAgent configured with a system prompt, an embedded
// knowledge base, and a set of database-backed tools the model can call.
package agents

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/types"
)

//go:embed knowledge/*.md
var knowledgeFiles embed.FS

const (
	maxToolRounds      = 5
	historyWindow      = 10
	maxSuggestions     = 3
	degradedReply      = "I encountered an issue processing your request. Please try rephrasing or ask a different question."
	baseConfidence     = 0.8
	toolUseBonus       = 0.1
	hedgingPenalty     = 0.15
)

var hedgingPhrases = []string{
	"i'm not sure", "i think", "might be", "possibly",
	"i don't know", "not certain", "may not be accurate",
}

// ToolHandler executes one tool call. args is the raw JSON input the model
// supplied. Returned values are JSON-marshaled back to the model.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a callable tool exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     ToolHandler
}

// Config is the explicit per-agent configuration. Every field is validated;
// there is no dynamic option merging.
type Config struct {
	Name          string  `yaml:"name"`
	Role          string  `yaml:"role"`
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	SystemPrompt  string  `yaml:"-"`
	KnowledgeBase string  `yaml:"-"`
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if c.Role == "" {
		return fmt.Errorf("agent %s: role is required", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("agent %s: model is required", c.Name)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("agent %s: temperature %.2f out of range [0, 2]", c.Name, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("agent %s: max_tokens must be positive", c.Name)
	}
	return nil
}

// suggestFunc produces follow-up suggestions from the final response text.
type suggestFunc func(content string) []string

// BaseAgent is the shared agent implementation. Specialized agents are a
// BaseAgent with registered tools, a system prompt, and a suggestion hook.
type BaseAgent struct {
	config    Config
	client    llm.Client
	logger    *logrus.Logger
	tools     map[string]*Tool
	toolOrder []string
	knowledge string
	suggest   suggestFunc
}

// NewBaseAgent builds an agent from a validated config. The knowledge base
// named in the config is loaded from the embedded files; a missing file is
// logged and skipped, not fatal.
func NewBaseAgent(cfg Config, client llm.Client, logger *logrus.Logger) (*BaseAgent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &BaseAgent{
		config: cfg,
		client: client,
		logger: logger,
		tools:  make(map[string]*Tool),
	}

	if cfg.KnowledgeBase != "" {
		data, err := knowledgeFiles.ReadFile("knowledge/" + cfg.KnowledgeBase)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"agent": cfg.Name,
				"file":  cfg.KnowledgeBase,
			}).Warn("Knowledge base not found")
		} else {
			a.knowledge = string(data)
		}
	}

	return a, nil
}

// Name returns the agent identifier used by routing.
func (a *BaseAgent) Name() string { return a.config.Name }

// Role returns the human-readable role label.
func (a *BaseAgent) Role() string { return a.config.Role }

// Provider returns the configured LLM provider name.
func (a *BaseAgent) Provider() string { return a.config.Provider }

// ToolNames lists registered tools in registration order.
func (a *BaseAgent) ToolNames() []string {
	out := make([]string, len(a.toolOrder))
	copy(out, a.toolOrder)
	return out
}

// RegisterTool adds a tool to the agent.
func (a *BaseAgent) RegisterTool(t Tool) {
	a.tools[t.Name] = &t
	a.toolOrder = append(a.toolOrder, t.Name)
	a.logger.WithFields(logrus.Fields{
		"agent": a.config.Name,
		"tool":  t.Name,
	}).Debug("Tool registered")
}

// buildSystem assembles the system prompt from the base prompt, the
// knowledge base, and the per-session context.
func (a *BaseAgent) buildSystem(snapshot types.ContextSnapshot) string {
	parts := []string{a.config.SystemPrompt}

	if a.knowledge != "" {
		parts = append(parts, "\n\n## Reference Knowledge Base\n"+a.knowledge)
	}

	level := snapshot.SkillLevel
	if level == "" {
		level = "intermediate"
	}
	ctxPart := "\n\n## Current Context\n- User skill level: " + level
	if snapshot.CurrentTopic != "" {
		ctxPart += "\n- Current topic: " + snapshot.CurrentTopic
	}
	parts = append(parts, ctxPart)

	return strings.Join(parts, "\n")
}

func (a *BaseAgent) toolDefinitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(a.toolOrder))
	for _, name := range a.toolOrder {
		t := a.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

// Think processes one user message. LLM and tool failures never propagate;
// they degrade into a response carrying the Error field.
func (a *BaseAgent) Think(ctx context.Context, message string, snapshot types.ContextSnapshot, history []types.Message) (*types.AgentResponse, error) {
	start := time.Now()

	messages := make([]llm.Message, 0, historyWindow+1)
	lo := len(history) - historyWindow
	if lo < 0 {
		lo = 0
	}
	for _, msg := range history[lo:] {
		if msg.Role == llm.RoleUser || msg.Role == llm.RoleAssistant {
			messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	req := &llm.Request{
		Model:       a.config.Model,
		System:      a.buildSystem(snapshot),
		Messages:    messages,
		Tools:       a.toolDefinitions(),
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	}

	var (
		toolsUsed []string
		toolData  = map[string]any{}
		tokensIn  int
		tokensOut int
	)

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return a.degraded(err, start), nil
	}
	tokensIn += resp.InputTokens
	tokensOut += resp.OutputTokens

	for round := 0; round < maxToolRounds && len(resp.ToolCalls) > 0; round++ {
		assistant := llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		}
		req.Messages = append(req.Messages, assistant)

		for _, call := range resp.ToolCalls {
			result := a.useTool(ctx, call.Name, call.Arguments)
			toolsUsed = append(toolsUsed, call.Name)
			toolData[call.Name] = result

			payload, merr := json.Marshal(result)
			if merr != nil {
				payload = []byte(`{"error":"unserializable tool result"}`)
			}
			req.Messages = append(req.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
			})
		}

		resp, err = a.client.Complete(ctx, req)
		if err != nil {
			return a.degraded(err, start), nil
		}
		tokensIn += resp.InputTokens
		tokensOut += resp.OutputTokens
	}

	latency := time.Since(start).Milliseconds()

	a.logger.WithFields(logrus.Fields{
		"agent":      a.config.Name,
		"model":      a.config.Model,
		"tokens_in":  tokensIn,
		"tokens_out": tokensOut,
		"latency_ms": latency,
		"tools_used": toolsUsed,
	}).Info("Agent response")

	var suggestions []string
	if a.suggest != nil {
		suggestions = a.suggest(resp.Text)
		if len(suggestions) > maxSuggestions {
			suggestions = suggestions[:maxSuggestions]
		}
	}

	return &types.AgentResponse{
		Content:      resp.Text,
		AgentName:    a.config.Name,
		Confidence:   estimateConfidence(resp.Text, toolsUsed),
		ToolsUsed:    toolsUsed,
		Data:         toolData,
		Suggestions:  suggestions,
		TokensInput:  tokensIn,
		TokensOutput: tokensOut,
		LatencyMs:    latency,
	}, nil
}

// useTool runs a registered tool. Failures come back as an error payload
// the model can read and recover from.
func (a *BaseAgent) useTool(ctx context.Context, name string, args json.RawMessage) any {
	tool, ok := a.tools[name]
	if !ok {
		a.logger.WithFields(logrus.Fields{"agent": a.config.Name, "tool": name}).Warn("Tool not found")
		return map[string]any{"error": fmt.Sprintf("Tool '%s' not available", name)}
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"agent": a.config.Name,
			"tool":  name,
		}).WithError(err).Error("Tool execution failed")
		return map[string]any{"error": err.Error()}
	}
	return result
}

func (a *BaseAgent) degraded(err error, start time.Time) *types.AgentResponse {
	a.logger.WithFields(logrus.Fields{"agent": a.config.Name}).WithError(err).Error("Agent error")
	return &types.AgentResponse{
		Content:    degradedReply,
		AgentName:  a.config.Name,
		Confidence: 0,
		LatencyMs:  time.Since(start).Milliseconds(),
		Error:      err.Error(),
	}
}

// estimateConfidence scores a response: tool-backed answers rate higher,
// hedging language lower.
func estimateConfidence(content string, toolsUsed []string) float64 {
	confidence := baseConfidence
	if len(toolsUsed) > 0 {
		confidence += toolUseBonus
	}

	lower := strings.ToLower(content)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			confidence -= hedgingPenalty
			break
		}
	}

	if confidence < 0.1 {
		return 0.1
	}
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}
