package agents

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/types"
)

func toolCallResponse(name string, args map[string]any) *llm.Response {
	raw, _ := json.Marshal(args)
	return &llm.Response{
		ToolCalls:  []llm.ToolCall{{ID: "call-1", Name: name, Arguments: raw}},
		StopReason: "tool_use",
	}
}

func TestLuthierHistorianSetup(t *testing.T) {
	a, err := NewLuthierHistorian(DefaultLuthierConfig(), testStore(t), &fakeClient{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "luthier_historian", a.Name())
	assert.Equal(t, "Guitar Luthier & Historian", a.Role())
	assert.Equal(t,
		[]string{"query_guitar_history", "query_wood_types", "search_knowledge_base"},
		a.ToolNames())
}

func TestLuthierHistoryTool(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("query_guitar_history", map[string]any{"search_term": "Telecaster"}),
		{Text: "Leo Fender designed the Telecaster in 1950.", StopReason: "end_turn"},
	}}
	a, err := NewLuthierHistorian(DefaultLuthierConfig(), testStore(t), client, testLogger())
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "Who made the Telecaster?", types.ContextSnapshot{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"query_guitar_history"}, resp.ToolsUsed)

	result, ok := resp.Data["query_guitar_history"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, result["count"])
}

func TestLuthierWoodTool(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("query_wood_types", map[string]any{"wood_name": "mahogany"}),
		{Text: "Mahogany reads as warm and thick.", StopReason: "end_turn"},
	}}
	a, err := NewLuthierHistorian(DefaultLuthierConfig(), testStore(t), client, testLogger())
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "Tell me about mahogany", types.ContextSnapshot{}, nil)
	require.NoError(t, err)

	result := resp.Data["query_wood_types"].(map[string]any)
	assert.Greater(t, result["count"], 0)
}

func TestLuthierSuggestions(t *testing.T) {
	s := luthierSuggestions("The archtop guitar used a carved spruce top.")
	assert.Contains(t, s, "Would you like to know about archtop tonewoods?")

	s = luthierSuggestions("nothing relevant here")
	assert.Len(t, s, 3)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 500))

	long := strings.Repeat("é", 600)
	cut := truncate(long, 500)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 500, utf8.RuneCountInString(cut))
}

func TestJazzTeacherSetup(t *testing.T) {
	a, err := NewJazzTeacher(DefaultJazzTeacherConfig(), testStore(t), &fakeClient{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "jazz_teacher", a.Name())
	assert.Len(t, a.ToolNames(), 6)
}

func TestJazzTeacherChordTool(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("query_chords", map[string]any{"search_term": "maj7", "category": "jazz"}),
		{Text: "Here are the jazz chords.", StopReason: "end_turn"},
	}}
	a, err := NewJazzTeacher(DefaultJazzTeacherConfig(), testStore(t), client, testLogger())
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "Show me jazz chords", types.ContextSnapshot{}, nil)
	require.NoError(t, err)

	result := resp.Data["query_chords"].(map[string]any)
	assert.Greater(t, result["count"], 0)
	rows := result["results"].([]map[string]any)
	for _, row := range rows {
		assert.Equal(t, "jazz", row["category"])
	}
}

func TestJazzTeacherQuizTool(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("generate_quiz", map[string]any{"topic": "modes"}),
		{Text: "Quiz ready.", StopReason: "end_turn"},
	}}
	a, err := NewJazzTeacher(DefaultJazzTeacherConfig(), testStore(t), client, testLogger())
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "Quiz me on modes", types.ContextSnapshot{}, nil)
	require.NoError(t, err)

	result := resp.Data["generate_quiz"].(map[string]any)
	assert.Equal(t, "modes", result["topic"])
	assert.Equal(t, 5, result["num_questions"])
	assert.Equal(t, 2, result["difficulty"])
}

func TestSQLExpertSetup(t *testing.T) {
	a, err := NewSQLExpert(DefaultSQLExpertConfig(), testStore(t), &fakeClient{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "sql_expert", a.Name())
	assert.Equal(t,
		[]string{"execute_query", "get_schema", "validate_sql", "format_results"},
		a.ToolNames())
}

func TestSQLExpertExecuteQuery(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("execute_query", map[string]any{
			"sql": "SELECT COUNT(*) AS total FROM jazz_standards WHERE key = 'Gm'",
		}),
		{Text: "There is 1 standard in G minor.", StopReason: "end_turn"},
	}}
	a, err := NewSQLExpert(DefaultSQLExpertConfig(), testStore(t), client, testLogger())
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "How many standards in Gm?", types.ContextSnapshot{}, nil)
	require.NoError(t, err)

	result := resp.Data["execute_query"].(map[string]any)
	assert.Equal(t, 1, result["count"])
}

func TestSQLExpertRejectsWrite(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("execute_query", map[string]any{"sql": "DELETE FROM chords"}),
		{Text: "I can only run SELECT queries.", StopReason: "end_turn"},
	}}
	a, err := NewSQLExpert(DefaultSQLExpertConfig(), testStore(t), client, testLogger())
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "delete everything", types.ContextSnapshot{}, nil)
	require.NoError(t, err)

	result := resp.Data["execute_query"].(map[string]any)
	assert.Equal(t, "Only SELECT queries are allowed", result["error"])
}

func TestFormatResults(t *testing.T) {
	rows := []map[string]any{
		{"name": "Cmaj7", "difficulty": 1},
		{"name": "G7alt", "difficulty": 4},
	}

	out := formatResults(rows, "table")
	assert.Equal(t, 2, out["count"])
	formatted := out["formatted"].(string)
	assert.Contains(t, formatted, "| difficulty | name |")
	assert.Contains(t, formatted, "| 1 | Cmaj7 |")

	out = formatResults(rows, "summary")
	assert.Equal(t, "Found 2 results.", out["formatted"])

	out = formatResults(nil, "table")
	assert.Equal(t, "No results found.", out["formatted"])
}

func TestDevPMSetup(t *testing.T) {
	a, err := NewDevPM(DefaultDevPMConfig(), testStore(t), &fakeClient{}, testLogger(), []string{"jazz_teacher"})
	require.NoError(t, err)
	assert.Equal(t, "dev_pm", a.Name())
	assert.Equal(t,
		[]string{"log_benchmark", "log_error", "generate_docs", "health_check"},
		a.ToolNames())
}

func TestDevPMBenchmarkTool(t *testing.T) {
	st := testStore(t)
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("log_benchmark", map[string]any{
			"phase": "phase-7", "description": "orchestrator wired", "status": "in_progress",
		}),
		{Text: "Benchmark recorded.", StopReason: "end_turn"},
	}}
	a, err := NewDevPM(DefaultDevPMConfig(), st, client, testLogger(), nil)
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "log the benchmark", types.ContextSnapshot{}, nil)
	require.NoError(t, err)

	result := resp.Data["log_benchmark"].(map[string]any)
	assert.Equal(t, "created", result["status"])

	list, err := st.ListBenchmarks(context.Background(), "phase-7")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "in_progress", list[0].Status)
}

func TestDevPMHealthCheck(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		toolCallResponse("health_check", map[string]any{}),
		{Text: "All systems healthy.", StopReason: "end_turn"},
	}}
	a, err := NewDevPM(DefaultDevPMConfig(), testStore(t), client, testLogger(),
		[]string{"luthier_historian", "jazz_teacher", "sql_expert", "dev_pm"})
	require.NoError(t, err)

	resp, err := a.Think(context.Background(), "health check", types.ContextSnapshot{}, nil)
	require.NoError(t, err)

	result := resp.Data["health_check"].(map[string]any)
	assert.Equal(t, "connected", result["database"])
	agents := result["agents"].(map[string]string)
	assert.Equal(t, "active", agents["sql_expert"])
}
