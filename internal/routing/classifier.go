package routing

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Known luthier, brand, and instrument-model names that route straight to the
// history agent.
var luthierEntities = []string{
	"torres", "martin", "gibson", "fender", "d'angelico", "d'aquisto",
	"benedetto", "prs", "paul reed smith", "rickenbacker", "gretsch",
	"epiphone", "ibanez", "yamaha", "taylor", "collings", "santa cruz",
	"bourgeois", "huss and dalton", "lowden", "mcpherson", "lloyd loar",
	"leo fender", "les paul", "orville gibson", "ted mccarty", "seth lover",
	"telecaster", "stratocaster", "sg", "es-335", "l-5",
	"dreadnought", "parlor guitar", "archtop",
}

// Pattern groups, one per agent. Every match adds the group weight to that
// agent's score; matches within a group accumulate without a cap.
var (
	historyPatterns = compileAll(
		`\b(history|historical|evolution|origin|invented|created)\b`,
		`\b(luthier|builder|craftsman|workshop|shop)\b`,
		`\b(tonewood|wood|spruce|mahogany|rosewood|maple|ebony)\b`,
		`\b(pickup|humbucker|single.coil|p-90|piezo|active)\b`,
		`\b(construction|bracing|neck\s*joint|frets|nut|saddle)\b`,
		`\b(setup|intonation|action|truss\s*rod|string\s*gauge)\b`,
		`\b(repair|restore|maintenance|restring|adjust)\b`,
	)

	theoryPatterns = compileAll(
		`\b(chord|scale|mode|arpeggio|interval|key)\b`,
		`\b(dorian|mixolydian|lydian|phrygian|locrian|ionian|aeolian)\b`,
		`\b(bebop|altered|diminished|whole\s*tone|pentatonic|chromatic)\b`,
		`\b(ii-v-i|ii\s*v\s*i|2-5-1|two\s*five\s*one)\b`,
		`\b(improvise|improvisation|solo|comping|voicing)\b`,
		`\b(practice|routine|exercise|lesson|warmup|warm-up)\b`,
		`\b(rut|plateau|stuck|bored|stale|uninspired)\b`,
		`\b(jazz|swing|bebop|bossa|ballad|blues)\b`,
		`\b(wes montgomery|joe pass|pat metheny|jim hall|grant green)\b`,
		`\b(charlie parker|miles davis|john coltrane|bill evans)\b`,
		`\b(quiz|test|question)\b`,
		`\b(voice\s*lead|guide\s*tone|enclosure|targeting)\b`,
	)

	dataQueryPatterns = compileAll(
		`\b(how many|list all|show me|find all|search for|count)\b`,
		`\b(which ones|what are all|give me all|display)\b`,
		`\b(database|query|data|records|entries)\b`,
		`\b(filter|sort|between|greater than|less than)\b`,
		`\b(difficulty \d|category|type)\b`,
	)

	systemPatterns = compileAll(
		`\b(benchmark|progress|status|health|error|bug)\b`,
		`\b(documentation|changelog|log|report)\b`,
		`\b(test|deploy|build|version)\b`,
	)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Config holds the classifier's scoring tunables. The defaults are the
// weights the system was tuned with; treat them as configuration rather
// than fixed law.
type Config struct {
	EntityWeight        float64 `yaml:"entity_weight"`
	HistoryWeight       float64 `yaml:"history_weight"`
	TheoryWeight        float64 `yaml:"theory_weight"`
	DataQueryWeight     float64 `yaml:"data_query_weight"`
	SystemWeight        float64 `yaml:"system_weight"`
	MultiAgentThreshold float64 `yaml:"multi_agent_threshold"`
	ConfidenceDivisor   float64 `yaml:"confidence_divisor"`
}

// DefaultConfig returns the standard scoring weights.
func DefaultConfig() Config {
	return Config{
		EntityWeight:        3.0,
		HistoryWeight:       1.0,
		TheoryWeight:        1.0,
		DataQueryWeight:     2.5,
		SystemWeight:        1.0,
		MultiAgentThreshold: 0.6,
		ConfidenceDivisor:   5.0,
	}
}

// Validate rejects weight configurations the scoring algorithm cannot use.
func (c Config) Validate() error {
	for name, w := range map[string]float64{
		"entity_weight":     c.EntityWeight,
		"history_weight":    c.HistoryWeight,
		"theory_weight":     c.TheoryWeight,
		"data_query_weight": c.DataQueryWeight,
		"system_weight":     c.SystemWeight,
	} {
		if w < 0 {
			return fmt.Errorf("classifier %s must not be negative", name)
		}
	}
	if c.MultiAgentThreshold < 0 || c.MultiAgentThreshold > 1 {
		return fmt.Errorf("classifier multi_agent_threshold must be in [0, 1]")
	}
	if c.ConfidenceDivisor < 0 {
		return fmt.Errorf("classifier confidence_divisor must not be negative")
	}
	return nil
}

// Classifier scores a free-text message against weighted keyword and entity
// patterns and produces a routing decision. Pure and deterministic: no I/O,
// no state beyond the configured weights.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier with the given weights. Zero-valued
// fields fall back to the defaults.
func NewClassifier(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.EntityWeight == 0 {
		cfg.EntityWeight = def.EntityWeight
	}
	if cfg.HistoryWeight == 0 {
		cfg.HistoryWeight = def.HistoryWeight
	}
	if cfg.TheoryWeight == 0 {
		cfg.TheoryWeight = def.TheoryWeight
	}
	if cfg.DataQueryWeight == 0 {
		cfg.DataQueryWeight = def.DataQueryWeight
	}
	if cfg.SystemWeight == 0 {
		cfg.SystemWeight = def.SystemWeight
	}
	if cfg.MultiAgentThreshold == 0 {
		cfg.MultiAgentThreshold = def.MultiAgentThreshold
	}
	if cfg.ConfidenceDivisor == 0 {
		cfg.ConfidenceDivisor = def.ConfidenceDivisor
	}
	return &Classifier{cfg: cfg}
}

// Classify maps a message to a routing decision without invoking any agent.
// Never fails: messages matching nothing fall back to the jazz teacher, the
// most general of the music agents.
func (c *Classifier) Classify(message string) Decision {
	msg := strings.ToLower(strings.TrimSpace(message))

	scores := map[string]float64{
		AgentLuthierHistorian: 0,
		AgentJazzTeacher:      0,
		AgentSQLExpert:        0,
		AgentDevPM:            0,
	}

	// Entity bonus is applied once, on the first hit only.
	for _, entity := range luthierEntities {
		if strings.Contains(msg, entity) {
			scores[AgentLuthierHistorian] += c.cfg.EntityWeight
			break
		}
	}

	for _, p := range historyPatterns {
		if p.MatchString(msg) {
			scores[AgentLuthierHistorian] += c.cfg.HistoryWeight
		}
	}
	for _, p := range theoryPatterns {
		if p.MatchString(msg) {
			scores[AgentJazzTeacher] += c.cfg.TheoryWeight
		}
	}
	for _, p := range dataQueryPatterns {
		if p.MatchString(msg) {
			scores[AgentSQLExpert] += c.cfg.DataQueryWeight
		}
	}
	for _, p := range systemPatterns {
		if p.MatchString(msg) {
			scores[AgentDevPM] += c.cfg.SystemWeight
		}
	}

	// Rank agents by score, resolving ties by the fixed priority order.
	ranked := make([]string, len(agentPriority))
	copy(ranked, agentPriority)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	winner := ranked[0]
	maxScore := scores[winner]

	if maxScore == 0 {
		return Decision{
			AgentName:      AgentJazzTeacher,
			Confidence:     0.5,
			IntentCategory: "general",
			Reasoning:      "no strong pattern match; defaulting to jazz teacher as the most general music agent",
		}
	}

	confidence := maxScore / c.cfg.ConfidenceDivisor
	if confidence > 1.0 {
		confidence = 1.0
	}

	second := scores[ranked[1]]
	isMulti := second > 0 && second >= maxScore*c.cfg.MultiAgentThreshold

	var secondary []string
	if isMulti {
		for _, name := range ranked[1:] {
			if scores[name] > 0 {
				secondary = append(secondary, name)
			}
		}
	}

	return Decision{
		AgentName:       winner,
		Confidence:      confidence,
		IntentCategory:  c.categoryFor(winner, msg),
		Reasoning:       reasoningString(scores),
		IsMultiAgent:    isMulti,
		SecondaryAgents: secondary,
	}
}

// categoryFor derives the coarse intent label from the winning agent. The
// history agent splits into history vs. construction/setup depending on
// which pattern subgroup fired.
func (c *Classifier) categoryFor(agent, msg string) string {
	switch agent {
	case AgentLuthierHistorian:
		// The first two history patterns cover history/lutherie proper;
		// the rest are construction and setup topics.
		for _, p := range historyPatterns[:2] {
			if p.MatchString(msg) {
				return "guitar_history"
			}
		}
		return "guitar_setup"
	case AgentJazzTeacher:
		return "music_theory"
	case AgentSQLExpert:
		return "data_query"
	case AgentDevPM:
		return "system"
	default:
		return "general"
	}
}

func reasoningString(scores map[string]float64) string {
	parts := make([]string, 0, len(agentPriority))
	for _, name := range agentPriority {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, scores[name]))
	}
	return "pattern scores: " + strings.Join(parts, " ")
}
