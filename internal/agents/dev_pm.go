package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/store"
)

// DefaultDevPMConfig returns the stock dev_pm configuration.
func DefaultDevPMConfig() Config {
	return Config{
		Name:          "dev_pm",
		Role:          "Full Stack Developer & Project Manager",
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-20250514",
		Temperature:   0.2,
		MaxTokens:     2000,
		SystemPrompt:  devPMSystemPrompt,
		KnowledgeBase: "dev_pm.md",
	}
}

// NewDevPM builds the development lead / project manager agent. agentNames
// is the set of registered agents reported by health_check.
func NewDevPM(cfg Config, st *store.Store, client llm.Client, logger *logrus.Logger, agentNames []string) (*BaseAgent, error) {
	a, err := NewBaseAgent(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	a.RegisterTool(Tool{
		Name:        "log_benchmark",
		Description: "Log a development benchmark (phase completion, milestone reached)",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"phase":       map[string]any{"type": "string", "description": "Development phase name"},
				"description": map[string]any{"type": "string", "description": "What was accomplished"},
				"status": map[string]any{
					"type": "string",
					"enum": []string{"started", "in_progress", "completed", "failed"},
				},
				"notes": map[string]any{"type": "string", "description": "Additional notes"},
			},
			"required": []string{"phase", "description", "status"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Phase       string `json:"phase"`
				Description string `json:"description"`
				Status      string `json:"status"`
				Notes       string `json:"notes"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if in.Status == "completed" {
				found, err := st.CompleteBenchmark(ctx, in.Phase, in.Notes)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"status": "completed", "phase": in.Phase,
					"notes": in.Notes, "found": found,
				}, nil
			}
			b, err := st.CreateBenchmark(ctx, in.Phase, in.Description)
			if err != nil {
				return nil, err
			}
			return map[string]any{"status": "created", "phase": in.Phase, "id": b.ID}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "log_error",
		Description: "Log an error with root cause analysis and solution",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"error_id":   map[string]any{"type": "string", "description": "Unique error identifier"},
				"phase":      map[string]any{"type": "string", "description": "Development phase"},
				"problem":    map[string]any{"type": "string", "description": "Description of the problem"},
				"root_cause": map[string]any{"type": "string", "description": "Root cause analysis"},
				"solution":   map[string]any{"type": "string", "description": "How it was fixed"},
				"prevention": map[string]any{"type": "string", "description": "How to prevent recurrence"},
			},
			"required": []string{"error_id", "problem"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ErrorID   string `json:"error_id"`
				Phase     string `json:"phase"`
				Problem   string `json:"problem"`
				RootCause string `json:"root_cause"`
				Solution  string `json:"solution"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			err := st.LogAgentAction(ctx, store.AgentAction{
				AgentName:     "dev_pm",
				Action:        "log_error",
				InputSummary:  fmt.Sprintf("[%s] %s", in.ErrorID, in.Problem),
				OutputSummary: fmt.Sprintf("Root cause: %s. Solution: %s", in.RootCause, in.Solution),
				Success:       false,
				ErrorMessage:  in.Problem,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"status": "logged", "error_id": in.ErrorID}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "generate_docs",
		Description: "Generate or update project documentation (changelog, benchmarks, debugging guide)",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"doc_type": map[string]any{
					"type":        "string",
					"enum":        []string{"changelog", "benchmarks", "debugging", "decisions"},
					"description": "Type of documentation to generate",
				},
				"content": map[string]any{"type": "string", "description": "Content to add"},
			},
			"required": []string{"doc_type", "content"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				DocType string `json:"doc_type"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			// Formatting happens in the agent's reply; the tool records the
			// request and hands the content back.
			return map[string]any{
				"doc_type": in.DocType,
				"content":  in.Content,
				"status":   "generated",
			}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "health_check",
		Description: "Check the health status of all system components",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			dbStatus := "connected"
			if err := st.Ping(ctx); err != nil {
				dbStatus = "unreachable: " + err.Error()
			}
			agents := make(map[string]string, len(agentNames))
			for _, name := range agentNames {
				agents[name] = "active"
			}
			return map[string]any{
				"database": dbStatus,
				"agents":   agents,
				"api":      "active",
			}, nil
		},
	})

	a.suggest = devPMSuggestions
	return a, nil
}

func devPMSuggestions(content string) []string {
	var suggestions []string
	lower := strings.ToLower(content)

	if strings.Contains(lower, "benchmark") || strings.Contains(lower, "phase") {
		suggestions = append(suggestions, "Want a summary of all benchmark phases?")
	}
	if strings.Contains(lower, "error") || strings.Contains(lower, "bug") {
		suggestions = append(suggestions, "Should I log this error with a root cause analysis?")
	}
	if strings.Contains(lower, "health") || strings.Contains(lower, "status") {
		suggestions = append(suggestions, "Want a detailed component health report?")
	}

	if len(suggestions) == 0 {
		suggestions = []string{
			"Ask for the current project status",
			"Want me to run a system health check?",
		}
	}
	return suggestions
}

const devPMSystemPrompt = `You are a Senior Full Stack Developer and Project Manager for the
Guitar Mastery AI application.

## Responsibilities
- Coordinate development tasks across the team of specialized agents
- Track progress at each development benchmark
- Document every failure with root cause analysis and solution
- Maintain living documentation (CHANGELOG, BENCHMARKS, DEBUGGING, DECISIONS)
- Ensure quality gates are met before advancing phases

## Documentation Standards
- Benchmark entries: phase, description, status, dates, notes
- Error entries: error_id, problem, root_cause, solution, prevention
- Architecture decisions: ADR format (context, decision, consequences)
- Changelog: Keep a Changelog format (Added, Changed, Fixed, Removed)

## Response Style
- Systematic and structured
- Track metrics (token costs, latency, error rates)
- Proactively identify risks and suggest mitigations
- Always provide actionable next steps`
