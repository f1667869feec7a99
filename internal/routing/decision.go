package routing

// Known agent identifiers. The classifier only ever returns one of these.
const (
	AgentLuthierHistorian = "luthier_historian"
	AgentJazzTeacher      = "jazz_teacher"
	AgentSQLExpert        = "sql_expert"
	AgentDevPM            = "dev_pm"
)

// agentPriority is the deterministic tiebreak order when two agents land on
// the same score. Earlier wins.
var agentPriority = []string{
	AgentLuthierHistorian,
	AgentJazzTeacher,
	AgentSQLExpert,
	AgentDevPM,
}

// Decision is the routing decision produced for a single message.
type Decision struct {
	// The agent that should handle the message
	AgentName string `json:"agent_name"`

	// Confidence in [0,1]. Coarse normalization of the raw score, not a probability.
	Confidence float64 `json:"confidence"`

	// Coarse intent label: "guitar_history", "guitar_setup", "music_theory",
	// "data_query", "system", or "general"
	IntentCategory string `json:"intent_category"`

	// Human-readable explanation, diagnostic only
	Reasoning string `json:"reasoning"`

	// Whether more than one agent should be invoked
	IsMultiAgent bool `json:"is_multi_agent"`

	// Additional agents in descending score order; never contains AgentName.
	// Populated only when IsMultiAgent is true.
	SecondaryAgents []string `json:"secondary_agents,omitempty"`
}

// NeedsAdditionalClassification reports whether a decision is ambiguous
// enough to warrant a second, more expensive classification pass. Extension
// point for a learned classifier sitting between Classify and Process.
func NeedsAdditionalClassification(d Decision) bool {
	return d.Confidence < 0.4 || d.IsMultiAgent
}
