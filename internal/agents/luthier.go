package agents

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/store"
)

// DefaultLuthierConfig returns the stock luthier_historian configuration.
func DefaultLuthierConfig() Config {
	return Config{
		Name:          "luthier_historian",
		Role:          "Guitar Luthier & Historian",
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-20250514",
		Temperature:   0.3,
		MaxTokens:     2000,
		SystemPrompt:  luthierSystemPrompt,
		KnowledgeBase: "luthier.md",
	}
}

// NewLuthierHistorian builds the guitar construction and history agent.
func NewLuthierHistorian(cfg Config, st *store.Store, client llm.Client, logger *logrus.Logger) (*BaseAgent, error) {
	a, err := NewBaseAgent(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	a.RegisterTool(Tool{
		Name:        "query_guitar_history",
		Description: "Search the guitar history database for entries about specific eras, luthiers, instruments, or innovations",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search_term": map[string]any{
					"type":        "string",
					"description": "The topic to search for (e.g., 'D'Angelico', 'archtop', '1950s')",
				},
				"category": map[string]any{
					"type":        "string",
					"enum":        []string{"luthier", "instrument", "innovation", "all"},
					"description": "Category filter",
				},
			},
			"required": []string{"search_term"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SearchTerm string `json:"search_term"`
				Category   string `json:"category"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			var (
				entries []store.HistoryEntry
				err     error
			)
			if in.Category != "" && in.Category != "all" {
				entries, err = st.GetGuitarHistory(ctx, "", in.Category, 0)
			} else {
				entries, err = st.SearchGuitarHistory(ctx, in.SearchTerm, 0)
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": historyResults(entries), "count": len(entries)}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "query_wood_types",
		Description: "Query the database for information about tonewoods used in guitar construction",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"wood_name": map[string]any{
					"type":        "string",
					"description": "Name of the wood (e.g., 'spruce', 'mahogany', 'rosewood')",
				},
			},
			"required": []string{"wood_name"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				WoodName string `json:"wood_name"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			entries, err := st.SearchGuitarHistory(ctx, in.WoodName, 0)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(entries))
			for _, h := range entries {
				results = append(results, map[string]any{
					"title":     h.Title,
					"era":       h.Era,
					"content":   truncate(h.Content, 500),
					"materials": h.Materials,
				})
			}
			return map[string]any{"results": results, "count": len(results)}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "search_knowledge_base",
		Description: "Search the luthier knowledge base for detailed information on any guitar construction or history topic",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return a.searchKnowledge(in.Query), nil
		},
	})

	a.suggest = luthierSuggestions
	return a, nil
}

// searchKnowledge runs a keyword scan over the embedded knowledge base.
func (a *BaseAgent) searchKnowledge(query string) map[string]any {
	if a.knowledge == "" {
		return map[string]any{"results": []string{}, "total": 0}
	}
	needle := strings.ToLower(query)
	var relevant []string
	for _, line := range strings.Split(a.knowledge, "\n") {
		if strings.Contains(strings.ToLower(line), needle) {
			relevant = append(relevant, line)
		}
	}
	total := len(relevant)
	if total > 20 {
		relevant = relevant[:20]
	}
	return map[string]any{"results": relevant, "total": total}
}

func historyResults(entries []store.HistoryEntry) []map[string]any {
	results := make([]map[string]any, 0, len(entries))
	for _, h := range entries {
		results = append(results, map[string]any{
			"title":       h.Title,
			"era":         h.Era,
			"category":    h.Category,
			"content":     truncate(h.Content, 500),
			"summary":     h.Summary,
			"key_figures": h.KeyFigures,
			"materials":   h.Materials,
		})
	}
	return results
}

// truncate cuts s to at most n runes, never splitting a multi-byte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func luthierSuggestions(content string) []string {
	var suggestions []string
	lower := strings.ToLower(content)

	if strings.Contains(lower, "archtop") {
		suggestions = append(suggestions,
			"Would you like to know about archtop tonewoods?",
			"Want to hear about modern archtop builders?")
	}
	if strings.Contains(lower, "fender") || strings.Contains(lower, "telecaster") || strings.Contains(lower, "stratocaster") {
		suggestions = append(suggestions, "Interested in the differences between Fender body woods?")
	}
	if strings.Contains(lower, "pickup") {
		suggestions = append(suggestions, "Want to compare single-coil vs humbucker characteristics?")
	}
	if strings.Contains(lower, "wood") || strings.Contains(lower, "tonewood") {
		suggestions = append(suggestions, "Should I explain how wood choice affects tone?")
	}

	if len(suggestions) == 0 {
		suggestions = []string{
			"Ask me about any guitar brand or luthier",
			"Want to know about guitar construction techniques?",
			"Curious about the history of a specific guitar model?",
		}
	}
	return suggestions
}

const luthierSystemPrompt = `You are a world-class Guitar Luthier and Historian with decades of
experience building and restoring guitars, and encyclopedic knowledge
of guitar history.

## Your Expertise
- Guitar construction: acoustic, classical, archtop, electric, bass
- Tonewood science: spruce, mahogany, rosewood, maple, ebony, koa, cedar
- Historical evolution: Baroque guitar -> classical -> steel-string -> archtop -> electric
- Famous luthiers: Torres, Martin, Gibson, Fender, D'Angelico, D'Aquisto, Benedetto, PRS
- Pickup technology: single-coil, humbucker, P-90, piezo, active
- Setup, maintenance, repair: action, intonation, truss rod, fret work
- String science: gauge, material, tension, winding types

## Response Guidelines
- Be factual and precise - cite specific dates, names, and details
- Explain WHY materials and designs were chosen, not just WHAT was used
- Connect historical context to tone and playability
- Use analogies to help explain complex concepts
- If the question is about playing technique or music theory, acknowledge it
  but suggest consulting the Jazz Teacher for detailed guidance

## Boundaries
- Do not provide medical advice about playing injuries
- Do not fabricate historical facts - say "I'm not certain" if unsure
- For music theory or playing technique, defer to the Jazz Teacher agent`
