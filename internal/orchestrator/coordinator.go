package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fretlab/guitar-mastery/internal/routing"
	"github.com/fretlab/guitar-mastery/internal/types"
)

// Capability is an external, swappable unit that can answer a message. The
// coordinator treats it as an opaque contract: each capability owns its own
// resources and is responsible for its own internal LLM and tool mechanics.
type Capability interface {
	Name() string
	Role() string
	Think(ctx context.Context, message string, snapshot types.ContextSnapshot, history []types.Message) (*types.AgentResponse, error)
}

// Response is the coordinator's unified output for one processed message.
type Response struct {
	Content           string           `json:"content"`
	PrimaryAgent      string           `json:"primary_agent"`
	AllAgentsUsed     []string         `json:"all_agents_used"`
	SessionID         string           `json:"session_id"`
	Suggestions       []string         `json:"suggestions,omitempty"`
	Data              map[string]any   `json:"data,omitempty"`
	Quiz              map[string]any   `json:"quiz,omitempty"`
	TotalTokensInput  int              `json:"total_tokens_input"`
	TotalTokensOutput int              `json:"total_tokens_output"`
	TotalLatencyMs    int64            `json:"total_latency_ms"`
	RoutingDecision   routing.Decision `json:"routing_decision"`
}

// Degradation messages shown to end users. Operators get the real error in
// the logs; callers never see a raised failure.
const (
	msgAgentNotFound = "I'm sorry, I couldn't find the right expert to help with that. Could you rephrase your question?"
	msgAgentTimeout  = "The request took too long. Please try a simpler question or try again."
	msgAgentFailure  = "I encountered an error processing your request. Please try again."
	msgAllFailed     = "I couldn't get a response. Please try again."
)

// Capabilities must return a response or an error; a nil pair is treated as
// a failure rather than allowed to surface as a panic.
var errAgentNilResponse = errors.New("capability returned no response and no error")

const recentHistoryTurns = 10
const maxSuggestions = 5
const contentSeparator = "\n\n---\n\n"

// Config holds the coordinator's tunables, supplied at construction.
type Config struct {
	MaxAgentsPerRequest int           `yaml:"max_agents_per_request"`
	Timeout             time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the standard coordinator limits.
func DefaultConfig() Config {
	return Config{
		MaxAgentsPerRequest: 3,
		Timeout:             30 * time.Second,
	}
}

// Coordinator routes messages to agent capabilities and aggregates their
// responses. The capability set is read-only after construction; Process
// never returns an error to its caller; every failure mode resolves to a
// degraded Response.
type Coordinator struct {
	agents     map[string]Capability
	classifier *routing.Classifier
	cfg        Config
	logger     *logrus.Logger
}

// NewCoordinator creates a coordinator over a fixed capability set.
func NewCoordinator(agents map[string]Capability, classifier *routing.Classifier, cfg Config, logger *logrus.Logger) *Coordinator {
	if cfg.MaxAgentsPerRequest <= 0 {
		cfg.MaxAgentsPerRequest = DefaultConfig().MaxAgentsPerRequest
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Coordinator{
		agents:     agents,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process classifies a message, drives one or several agents, and returns a
// unified response. All failures are absorbed into degraded responses.
func (c *Coordinator) Process(ctx context.Context, message string, cctx *Context) *Response {
	start := time.Now()

	decision := c.classifier.Classify(message)

	// An explicit agent override in the session metadata short-circuits
	// classification to a single-agent dispatch.
	if preferred := cctx.Metadata["preferred_agent"]; preferred != "" {
		if _, ok := c.agents[preferred]; ok {
			decision = routing.Decision{
				AgentName:      preferred,
				Confidence:     1.0,
				IntentCategory: decision.IntentCategory,
				Reasoning:      "explicit agent override from session metadata",
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"agent":      decision.AgentName,
		"confidence": decision.Confidence,
		"category":   decision.IntentCategory,
		"is_multi":   decision.IsMultiAgent,
	}).Info("Intent classified")

	var resp *Response
	if decision.IsMultiAgent && len(decision.SecondaryAgents) > 0 {
		resp = c.executeMultiAgent(ctx, message, decision, cctx)
	} else {
		resp = c.executeSingleAgent(ctx, message, decision, cctx)
	}

	resp.RoutingDecision = decision
	resp.TotalLatencyMs = time.Since(start).Milliseconds()
	return resp
}

// invoke calls one capability under the per-call timeout. The call runs in
// its own goroutine so a capability that ignores its context cannot hold
// the coordinator past the deadline.
func (c *Coordinator) invoke(ctx context.Context, agent Capability, message string, snapshot types.ContextSnapshot, history []types.Message) (*types.AgentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	type outcome struct {
		resp *types.AgentResponse
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		resp, err := agent.Think(callCtx, message, snapshot, history)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

func (c *Coordinator) executeSingleAgent(ctx context.Context, message string, decision routing.Decision, cctx *Context) *Response {
	agent, ok := c.agents[decision.AgentName]
	if !ok {
		c.logger.WithField("agent", decision.AgentName).Error("Agent not found in capability map")
		return &Response{
			Content:       msgAgentNotFound,
			PrimaryAgent:  "orchestrator",
			AllAgentsUsed: []string{},
			SessionID:     cctx.SessionID,
		}
	}

	result, err := c.invoke(ctx, agent, message, cctx.Snapshot(), cctx.RecentMessages(recentHistoryTurns))
	if err == nil && result == nil {
		err = errAgentNilResponse
	}
	if err != nil {
		content := msgAgentFailure
		if ctxErr := ctx.Err(); ctxErr != nil || isTimeout(err) {
			content = msgAgentTimeout
		}
		c.logger.WithError(err).WithField("agent", decision.AgentName).Error("Agent execution failed")
		return &Response{
			Content:       content,
			PrimaryAgent:  "orchestrator",
			AllAgentsUsed: []string{},
			SessionID:     cctx.SessionID,
		}
	}

	return &Response{
		Content:           result.Content,
		PrimaryAgent:      result.AgentName,
		AllAgentsUsed:     []string{result.AgentName},
		SessionID:         cctx.SessionID,
		Suggestions:       result.Suggestions,
		Data:              result.Data,
		TotalTokensInput:  result.TokensInput,
		TotalTokensOutput: result.TokensOutput,
	}
}

func (c *Coordinator) executeMultiAgent(ctx context.Context, message string, decision routing.Decision, cctx *Context) *Response {
	// Working set: primary plus the highest-scoring secondaries up to the
	// cap. Lower-ranked secondaries are silently dropped.
	agentNames := []string{decision.AgentName}
	for _, name := range decision.SecondaryAgents {
		if len(agentNames) >= c.cfg.MaxAgentsPerRequest {
			break
		}
		agentNames = append(agentNames, name)
	}

	var selected []string
	for _, name := range agentNames {
		if _, ok := c.agents[name]; ok {
			selected = append(selected, name)
		}
	}

	snapshot := cctx.Snapshot()
	history := cctx.RecentMessages(recentHistoryTurns)

	type taskResult struct {
		name string
		role string
		resp *types.AgentResponse
		err  error
	}
	results := make([]taskResult, len(selected))

	// Fan out without fail-fast: every task records its own outcome and one
	// agent's failure never cancels a sibling.
	g := new(errgroup.Group)
	for i, name := range selected {
		i, name := i, name
		agent := c.agents[name]
		g.Go(func() error {
			resp, err := c.invoke(ctx, agent, message, snapshot, history)
			results[i] = taskResult{name: name, role: agent.Role(), resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		contents    []string
		suggestions []string
		agentsUsed  = []string{}
		data        = map[string]any{}
		tokensIn    int
		tokensOut   int
	)

	for _, r := range results {
		if r.err == nil && r.resp == nil {
			r.err = errAgentNilResponse
		}
		if r.err != nil {
			c.logger.WithError(r.err).WithField("agent", r.name).Error("Multi-agent task failed")
			continue
		}
		contents = append(contents, "**"+r.role+":**\n"+r.resp.Content)
		suggestions = append(suggestions, r.resp.Suggestions...)
		for k, v := range r.resp.Data {
			data[k] = v
		}
		tokensIn += r.resp.TokensInput
		tokensOut += r.resp.TokensOutput
		agentsUsed = append(agentsUsed, r.resp.AgentName)
	}

	combined := msgAllFailed
	if len(contents) > 0 {
		combined = strings.Join(contents, contentSeparator)
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	return &Response{
		Content:           combined,
		PrimaryAgent:      decision.AgentName,
		AllAgentsUsed:     agentsUsed,
		SessionID:         cctx.SessionID,
		Suggestions:       suggestions,
		Data:              data,
		TotalTokensInput:  tokensIn,
		TotalTokensOutput: tokensOut,
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
