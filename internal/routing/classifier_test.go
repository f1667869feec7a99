package routing

import (
	"strings"
	"testing"
)

func TestClassify_LuthierEntities(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	messages := []string{
		"Tell me about D'Angelico guitars",
		"Tell me about D'Angelico archtop guitars",
		"What makes a Benedetto special?",
		"Why is the Telecaster so popular?",
	}

	for _, msg := range messages {
		d := c.Classify(msg)
		if d.AgentName != AgentLuthierHistorian {
			t.Errorf("Classify(%q): expected %s, got %s", msg, AgentLuthierHistorian, d.AgentName)
		}
	}
}

func TestClassify_HistoryAndConstruction(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	tests := []struct {
		message  string
		category string
	}{
		{"What is the history of the archtop guitar?", "guitar_history"},
		{"What wood is best for an acoustic guitar top?", "guitar_setup"},
		{"How does a humbucker pickup work?", "guitar_setup"},
		{"How do I adjust the truss rod?", "guitar_setup"},
	}

	for _, tt := range tests {
		d := c.Classify(tt.message)
		if d.AgentName != AgentLuthierHistorian {
			t.Errorf("Classify(%q): expected %s, got %s", tt.message, AgentLuthierHistorian, d.AgentName)
			continue
		}
		if d.IntentCategory != tt.category {
			t.Errorf("Classify(%q): expected category %s, got %s", tt.message, tt.category, d.IntentCategory)
		}
	}
}

func TestClassify_JazzTeacher(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	messages := []string{
		"What scales can I play over a Cmaj7 chord?",
		"How do I improvise over ii-V-I changes?",
		"I'm stuck in a rut, how do I break through?",
		"How do I practice alternate picking?",
		"Quiz me on jazz chord types",
	}

	for _, msg := range messages {
		d := c.Classify(msg)
		if d.AgentName != AgentJazzTeacher {
			t.Errorf("Classify(%q): expected %s, got %s", msg, AgentJazzTeacher, d.AgentName)
		}
		if d.IntentCategory != "music_theory" {
			t.Errorf("Classify(%q): expected category music_theory, got %s", msg, d.IntentCategory)
		}
	}
}

func TestClassify_SQLExpert(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	messages := []string{
		"Show me all chords with difficulty 4 or higher",
		"How many scales are in the database?",
		"List all jazz standards in the key of Bb",
		"How many jazz standards are in the key of Bb?",
		"Count the records in the techniques table",
	}

	for _, msg := range messages {
		d := c.Classify(msg)
		if d.AgentName != AgentSQLExpert {
			t.Errorf("Classify(%q): expected %s, got %s", msg, AgentSQLExpert, d.AgentName)
		}
		if d.IntentCategory != "data_query" {
			t.Errorf("Classify(%q): expected category data_query, got %s", msg, d.IntentCategory)
		}
	}
}

func TestClassify_DevPM(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	d := c.Classify("What's the current benchmark status and changelog?")
	if d.AgentName != AgentDevPM {
		t.Errorf("expected %s, got %s", AgentDevPM, d.AgentName)
	}
	if d.IntentCategory != "system" {
		t.Errorf("expected category system, got %s", d.IntentCategory)
	}
}

func TestClassify_DefaultsToJazzTeacher(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	for _, msg := range []string{"hello", "", "    ", "help me get better at guitar"} {
		d := c.Classify(msg)
		if d.AgentName != AgentJazzTeacher {
			t.Errorf("Classify(%q): expected default %s, got %s", msg, AgentJazzTeacher, d.AgentName)
		}
		if d.Confidence != 0.5 {
			t.Errorf("Classify(%q): expected confidence 0.5, got %f", msg, d.Confidence)
		}
		if d.IntentCategory != "general" {
			t.Errorf("Classify(%q): expected category general, got %s", msg, d.IntentCategory)
		}
		if d.IsMultiAgent {
			t.Errorf("Classify(%q): default decision should not be multi-agent", msg)
		}
	}
}

func TestClassify_ConfidenceBounds(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	// A message stuffed with matches from every group must still saturate at 1.0.
	adversarial := "how many chords scales modes database records history luthier " +
		"tonewood pickup setup repair benchmark status test jazz bebop practice quiz " +
		strings.Repeat("count list all show me ", 20)

	d := c.Classify(adversarial)
	if d.Confidence < 0 || d.Confidence > 1.0 {
		t.Errorf("confidence out of range: %f", d.Confidence)
	}
	if d.Confidence != 1.0 {
		t.Errorf("expected saturated confidence 1.0, got %f", d.Confidence)
	}
}

func TestClassify_HighConfidenceForClearIntent(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	d := c.Classify("Tell me about the Gibson L-5 archtop guitar history")
	if d.Confidence <= 0.4 {
		t.Errorf("expected confidence > 0.4, got %f", d.Confidence)
	}

	d = c.Classify("Tell me about D'Angelico archtop guitars")
	if d.AgentName != AgentLuthierHistorian {
		t.Errorf("expected %s, got %s", AgentLuthierHistorian, d.AgentName)
	}
	if d.Confidence <= 0.4 {
		t.Errorf("expected confidence > 0.4, got %f", d.Confidence)
	}
}

func TestClassify_MultiAgentConsistency(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	// Straddles history and theory strongly enough to trigger multi-agent.
	d := c.Classify("Explain the history of jazz guitar chords and scales and the luthiers who built the instruments")

	if d.IsMultiAgent != (len(d.SecondaryAgents) > 0) {
		t.Errorf("IsMultiAgent=%v inconsistent with %d secondary agents", d.IsMultiAgent, len(d.SecondaryAgents))
	}
	for _, name := range d.SecondaryAgents {
		if name == d.AgentName {
			t.Errorf("secondary agents must not contain the primary agent %s", d.AgentName)
		}
	}
}

func TestClassify_SecondaryAgentsEmptyWhenSingle(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	d := c.Classify("How do I adjust the truss rod?")
	if d.IsMultiAgent {
		t.Errorf("expected single-agent decision, got multi with %v", d.SecondaryAgents)
	}
	if len(d.SecondaryAgents) != 0 {
		t.Errorf("expected no secondary agents, got %v", d.SecondaryAgents)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	msg := "Tell me about jazz guitar history"
	first := c.Classify(msg)
	for i := 0; i < 10; i++ {
		d := c.Classify(msg)
		if d.AgentName != first.AgentName || d.Confidence != first.Confidence {
			t.Fatalf("classification not deterministic: %+v vs %+v", first, d)
		}
	}
}

func TestNeedsAdditionalClassification(t *testing.T) {
	tests := []struct {
		decision Decision
		want     bool
	}{
		{Decision{Confidence: 0.3}, true},
		{Decision{Confidence: 0.8, IsMultiAgent: true}, true},
		{Decision{Confidence: 0.8}, false},
		{Decision{Confidence: 0.4}, false},
	}

	for _, tt := range tests {
		if got := NeedsAdditionalClassification(tt.decision); got != tt.want {
			t.Errorf("NeedsAdditionalClassification(%+v) = %v, want %v", tt.decision, got, tt.want)
		}
	}
}
