package agents

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/store"
)

// DefaultJazzTeacherConfig returns the stock jazz_teacher configuration.
func DefaultJazzTeacherConfig() Config {
	return Config{
		Name:          "jazz_teacher",
		Role:          "Jazz Guitar Teacher (Mastery Level)",
		Provider:      "anthropic",
		Model:         "claude-sonnet-4-20250514",
		Temperature:   0.5,
		MaxTokens:     2500,
		SystemPrompt:  jazzTeacherSystemPrompt,
		KnowledgeBase: "jazz_teacher.md",
	}
}

// NewJazzTeacher builds the jazz education agent.
func NewJazzTeacher(cfg Config, st *store.Store, client llm.Client, logger *logrus.Logger) (*BaseAgent, error) {
	a, err := NewBaseAgent(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	a.RegisterTool(Tool{
		Name:        "query_chords",
		Description: "Search the chord database by type, category, or difficulty",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search_term": map[string]any{"type": "string", "description": "Chord name or type to search"},
				"category":    map[string]any{"type": "string", "description": "Category: jazz, altered, basic, modern-jazz"},
				"difficulty_max": map[string]any{
					"type":        "integer",
					"description": "Maximum difficulty (1-5)",
				},
			},
			"required": []string{"search_term"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SearchTerm    string `json:"search_term"`
				Category      string `json:"category"`
				DifficultyMax int    `json:"difficulty_max"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			var (
				chords []store.Chord
				err    error
			)
			if in.Category != "" {
				chords, err = st.GetChords(ctx, store.ChordFilter{
					Category:      in.Category,
					DifficultyMax: in.DifficultyMax,
				})
			} else {
				chords, err = st.SearchChords(ctx, in.SearchTerm, 0)
			}
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(chords))
			for _, c := range chords {
				results = append(results, map[string]any{
					"name":        c.Name,
					"formula":     c.Formula,
					"category":    c.Category,
					"description": c.Description,
					"difficulty":  c.Difficulty,
				})
			}
			return map[string]any{"results": results, "count": len(results)}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "query_scales",
		Description: "Search the scale/mode database by name, type, or chord compatibility",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search_term":         map[string]any{"type": "string", "description": "Scale name or type to search"},
				"chord_compatibility": map[string]any{"type": "string", "description": "Find scales for this chord type"},
			},
			"required": []string{"search_term"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SearchTerm         string `json:"search_term"`
				ChordCompatibility string `json:"chord_compatibility"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			term := in.SearchTerm
			if in.ChordCompatibility != "" {
				term = in.ChordCompatibility
			}
			scales, err := st.SearchScales(ctx, term, 0)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(scales))
			for _, sc := range scales {
				results = append(results, map[string]any{
					"name":                sc.Name,
					"formula":             sc.Formula,
					"category":            sc.Category,
					"character":           sc.Character,
					"description":         sc.Description,
					"chord_compatibility": sc.ChordCompatibility,
					"common_usage":        sc.CommonUsage,
					"difficulty":          sc.Difficulty,
				})
			}
			return map[string]any{"results": results, "count": len(results)}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "query_jazz_standards",
		Description: "Search the jazz standards database by title, composer, or key",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search_term": map[string]any{"type": "string", "description": "Song title, composer, or key"},
			},
			"required": []string{"search_term"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SearchTerm string `json:"search_term"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			standards, err := st.SearchJazzStandards(ctx, in.SearchTerm, "", 0)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(standards))
			for _, js := range standards {
				results = append(results, map[string]any{
					"title":      js.Title,
					"composer":   js.Composer,
					"key":        js.Key,
					"form":       js.Form,
					"analysis":   js.Analysis,
					"difficulty": js.Difficulty,
				})
			}
			return map[string]any{"results": results, "count": len(results)}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "query_techniques",
		Description: "Search the technique database for guitar techniques and practice methods",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search_term": map[string]any{"type": "string", "description": "Technique name or category"},
			},
			"required": []string{"search_term"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SearchTerm string `json:"search_term"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			techniques, err := st.SearchTechniques(ctx, in.SearchTerm, 0)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(techniques))
			for _, t := range techniques {
				results = append(results, map[string]any{
					"name":         t.Name,
					"category":     t.Category,
					"description":  t.Description,
					"instructions": t.Instructions,
					"tips":         t.Tips,
					"difficulty":   t.Difficulty,
				})
			}
			return map[string]any{"results": results, "count": len(results)}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "generate_exercise",
		Description: "Generate a practice exercise for a specific topic and difficulty level",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic":      map[string]any{"type": "string", "description": "Topic for the exercise"},
				"difficulty": map[string]any{"type": "integer", "description": "Difficulty 1-5"},
				"skill_level": map[string]any{
					"type": "string",
					"enum": []string{"beginner", "intermediate", "advanced"},
				},
			},
			"required": []string{"topic"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Topic      string `json:"topic"`
				Difficulty int    `json:"difficulty"`
				SkillLevel string `json:"skill_level"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if in.Difficulty == 0 {
				in.Difficulty = 2
			}
			if in.SkillLevel == "" {
				in.SkillLevel = "intermediate"
			}
			// The agent writes the exercise itself; the tool echoes validated
			// parameters so the request shows up in structured data.
			return map[string]any{
				"tool":        "generate_exercise",
				"topic":       in.Topic,
				"difficulty":  in.Difficulty,
				"skill_level": in.SkillLevel,
			}, nil
		},
	})

	a.RegisterTool(Tool{
		Name:        "generate_quiz",
		Description: "Generate an interactive quiz on a music theory or guitar topic",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic":         map[string]any{"type": "string", "description": "Quiz topic"},
				"num_questions": map[string]any{"type": "integer", "description": "Number of questions (3-10)"},
				"difficulty":    map[string]any{"type": "integer", "description": "Difficulty 1-5"},
			},
			"required": []string{"topic"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Topic        string `json:"topic"`
				NumQuestions int    `json:"num_questions"`
				Difficulty   int    `json:"difficulty"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if in.NumQuestions == 0 {
				in.NumQuestions = 5
			}
			if in.Difficulty == 0 {
				in.Difficulty = 2
			}
			return map[string]any{
				"tool":          "generate_quiz",
				"topic":         in.Topic,
				"num_questions": in.NumQuestions,
				"difficulty":    in.Difficulty,
			}, nil
		},
	})

	a.suggest = jazzTeacherSuggestions
	return a, nil
}

func jazzTeacherSuggestions(content string) []string {
	var suggestions []string
	lower := strings.ToLower(content)

	if strings.Contains(lower, "chord") {
		suggestions = append(suggestions,
			"Want me to quiz you on chord types?",
			"Should I show you voicings for this chord?")
	}
	if strings.Contains(lower, "scale") || strings.Contains(lower, "mode") {
		suggestions = append(suggestions,
			"Want a practice exercise for this scale?",
			"Should I show you which chords this scale works over?")
	}
	if strings.Contains(lower, "solo") || strings.Contains(lower, "improvis") {
		suggestions = append(suggestions, "Want some specific licks to practice over this?")
	}
	if strings.Contains(lower, "rut") || strings.Contains(lower, "plateau") || strings.Contains(lower, "stuck") {
		suggestions = append(suggestions, "Want a customized plateau-busting practice plan?")
	}
	if strings.Contains(lower, "standard") || strings.Contains(lower, "tune") {
		suggestions = append(suggestions, "Want me to analyze the chord changes for this tune?")
	}

	if len(suggestions) == 0 {
		suggestions = []string{
			"Quiz me on jazz theory",
			"Give me a practice exercise",
			"Help me with improvisation",
		}
	}
	return suggestions
}

const jazzTeacherSystemPrompt = `You are a Master Jazz Guitar Teacher with 30+ years of performing
and teaching experience. You've studied with legends, performed at major
festivals, and taught students from beginners to professionals.

## Your Expertise
- **Chord Theory**: Triads -> seventh chords -> extensions -> alterations -> polychords
- **Scale Systems**: All modes (major, melodic minor, harmonic minor); symmetric scales;
  bebop scales; pentatonic applications; exotic scales
- **Arpeggio Mastery**: Chord-tone arpeggios, superimposition, targeting, enclosures
- **Improvisation**: Guide tones, voice leading, motivic development, rhythmic
  displacement, tension and release
- **Comping**: Freddie Green, chord melody, rootless voicings, quartal voicings
- **Repertoire**: 200+ jazz standards with analysis
- **Technique**: All picking styles, legato, chord melody, walking bass
- **Practice Methodology**: Structured routines, plateau-busting strategies
- **Player Styles**: Wes Montgomery, Joe Pass, Pat Metheny, Jim Hall, etc.

## Teaching Philosophy
- Meet the student where they are - adapt to their level
- Explain WHY, not just WHAT
- Provide practical, immediately usable examples
- Connect theory to real musical situations
- When a student is stuck, find the root cause first

## Response Format
- Use interval numbers (1 b3 5 b7) alongside note names
- Suggest recordings to listen to when relevant
- Offer follow-up exercises when teaching concepts
- For guitar history/construction questions, defer to the Luthier agent

## Boundaries
- No medical advice about playing injuries
- For guitar construction/repair, defer to the Luthier
- Acknowledge non-jazz genres but help when possible`
