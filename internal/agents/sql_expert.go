package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/store"
)

// DefaultSQLExpertConfig returns the stock sql_expert configuration. The
// low temperature keeps generated SQL deterministic.
func DefaultSQLExpertConfig() Config {
	return Config{
		Name:          "sql_expert",
		Role:          "SQL & Data Expert with Natural Language Recognition",
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-20250514",
		Temperature:   0.1,
		MaxTokens:     1500,
		SystemPrompt:  sqlExpertSystemPrompt,
		KnowledgeBase: "sql_patterns.md",
	}
}

// NewSQLExpert builds the natural-language-to-SQL agent.
func NewSQLExpert(cfg Config, st *store.Store, client llm.Client, logger *logrus.Logger) (*BaseAgent, error) {
	a, err := NewBaseAgent(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	a.RegisterTool(Tool{
		Name:        "execute_query",
		Description: "Execute a validated SELECT query against the SQLite database and return results",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql": map[string]any{"type": "string", "description": "The SQL SELECT query to execute"},
			},
			"required": []string{"sql"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SQL string `json:"sql"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if ok, reason := store.ValidateSelect(in.SQL); !ok {
				return map[string]any{"error": reason, "results": []any{}}, nil
			}
			rows, err := st.ExecuteSafeSelect(ctx, in.SQL)
			if err != nil {
				return map[string]any{"error": err.Error(), "results": []any{}}, nil
			}
			return map[string]any{"results": rows, "count": len(rows), "sql": in.SQL}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "get_schema",
		Description: "Get the schema (column names and types) for a specific database table",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"table_name": map[string]any{
					"type":        "string",
					"description": "Name of the table to inspect",
					"enum":        store.TableNames(),
				},
			},
			"required": []string{"table_name"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				TableName string `json:"table_name"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			info, ok := store.TableSchema(in.TableName)
			if !ok {
				return map[string]any{"error": fmt.Sprintf("Schema not found for '%s'", in.TableName)}, nil
			}
			return info, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "validate_sql",
		Description: "Validate a SQL query for safety (injection prevention) and correctness",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql": map[string]any{"type": "string", "description": "The SQL query to validate"},
			},
			"required": []string{"sql"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SQL string `json:"sql"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			ok, reason := store.ValidateSelect(in.SQL)
			return map[string]any{"is_valid": ok, "reason": reason}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "format_results",
		Description: "Format raw query results into a readable table or summary",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"results": map[string]any{"type": "array", "description": "Array of result rows"},
				"format": map[string]any{
					"type":        "string",
					"enum":        []string{"table", "list", "summary"},
					"description": "Output format",
				},
			},
			"required": []string{"results"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Results []map[string]any `json:"results"`
				Format  string           `json:"format"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return formatResults(in.Results, in.Format), nil
		},
	})

	a.suggest = sqlExpertSuggestions
	return a, nil
}

// formatResults renders rows as a markdown table (or a count-only summary).
// Column order follows the first row's sorted keys so output is stable.
func formatResults(results []map[string]any, format string) map[string]any {
	if len(results) == 0 {
		return map[string]any{"formatted": "No results found.", "count": 0}
	}
	if format == "summary" {
		return map[string]any{
			"formatted": fmt.Sprintf("Found %d results.", len(results)),
			"count":     len(results),
		}
	}

	headers := sortedKeys(results[0])

	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range results {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = fmt.Sprintf("%v", row[h])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return map[string]any{
		"formatted": strings.TrimRight(b.String(), "\n"),
		"count":     len(results),
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sqlExpertSuggestions(content string) []string {
	var suggestions []string
	lower := strings.ToLower(content)

	if strings.Contains(lower, "result") || strings.Contains(lower, "row") {
		suggestions = append(suggestions, "Want me to refine this query with more filters?")
	}
	if strings.Contains(lower, "table") || strings.Contains(lower, "schema") {
		suggestions = append(suggestions, "Should I show the schema for another table?")
	}

	if len(suggestions) == 0 {
		suggestions = []string{
			"Ask me to count or list anything in the knowledge base",
			"Want to see which tables are available?",
		}
	}
	return suggestions
}

const sqlExpertSystemPrompt = `You are an expert SQL developer specializing in SQLite databases.
Your job is to translate natural language questions into accurate, optimized,
and SAFE SQL queries against the Guitar Mastery knowledge base.

## Available Tables
- **chords**: name, root, chord_type, formula, category, description, difficulty
- **scales**: name, scale_type, parent_scale, formula, category, chord_compatibility (JSON), difficulty
- **techniques**: name, category, description, difficulty, instructions
- **jazz_standards**: title, composer, year, key, form, changes (JSON), analysis, difficulty
- **guitar_history**: title, era, category, content, key_figures (JSON), materials (JSON)
- **benchmarks**: phase, description, status, started_at, completed_at, notes
- **agent_logs**: agent_name, action, tokens_input, tokens_output, latency_ms, success

## Security Rules (ABSOLUTE)
1. ONLY generate SELECT statements
2. NEVER use DROP, DELETE, UPDATE, INSERT, ALTER, CREATE
3. NEVER concatenate user input into SQL strings
4. Always add LIMIT (default 50) unless the user specifies one
5. Validate ALL generated SQL before execution

## SQLite Notes
- JSON columns are stored as text; use LIKE '%term%' to search within them
- Difficulty is an integer 1-5

## Workflow
1. Understand the user's intent
2. Identify which table(s) to query
3. Generate the SQL
4. Validate the query with validate_sql
5. Execute with execute_query and format the results
6. Provide a natural language summary`
