package orchestrator

import (
	"testing"
)

func TestContext_AddMessageAndRecent(t *testing.T) {
	ctx := NewContext("", "", "")

	ctx.AddMessage("user", "first", "")
	ctx.AddMessage("assistant", "second", "jazz_teacher")
	ctx.AddMessage("system", "internal annotation", "")
	ctx.AddMessage("user", "third", "")

	recent := ctx.RecentMessages(10)
	if len(recent) != 3 {
		t.Fatalf("expected 3 forwarded messages, got %d", len(recent))
	}
	// System annotations must never reach an agent.
	for _, msg := range recent {
		if msg.Role != "user" && msg.Role != "assistant" {
			t.Errorf("role %q leaked into agent history", msg.Role)
		}
	}
	if recent[0].Content != "first" || recent[2].Content != "third" {
		t.Errorf("unexpected order: %+v", recent)
	}
}

func TestContext_RecentMessagesWindow(t *testing.T) {
	ctx := NewContext("", "", "")
	for i := 0; i < 25; i++ {
		ctx.AddMessage("user", "msg", "")
	}

	if got := len(ctx.RecentMessages(10)); got != 10 {
		t.Errorf("expected window of 10, got %d", got)
	}
	if got := len(ctx.ConversationHistory); got != 25 {
		t.Errorf("storage must not be truncated, got %d entries", got)
	}
}

func TestContext_QuizSingleSlot(t *testing.T) {
	ctx := NewContext("", "", "")

	if quiz := ctx.EndQuiz(); quiz != nil {
		t.Errorf("ending with no active quiz should return nil, got %v", quiz)
	}

	ctx.StartQuiz(map[string]any{"topic": "modes"})
	ctx.StartQuiz(map[string]any{"topic": "chords"}) // overwrites silently

	quiz := ctx.EndQuiz()
	if quiz == nil || quiz["topic"] != "chords" {
		t.Errorf("expected the replacing quiz, got %v", quiz)
	}
	if ctx.ActiveQuiz != nil {
		t.Error("quiz slot not cleared")
	}
}

func TestContext_LessonSingleSlot(t *testing.T) {
	ctx := NewContext("", "", "")

	ctx.StartLesson(map[string]any{"title": "voice leading"})
	lesson := ctx.EndLesson()
	if lesson == nil || lesson["title"] != "voice leading" {
		t.Errorf("unexpected lesson: %v", lesson)
	}
	if again := ctx.EndLesson(); again != nil {
		t.Errorf("second end should return nil, got %v", again)
	}
}

func TestContext_Snapshot(t *testing.T) {
	ctx := NewContext("sess-1", "user-9", "advanced")
	for i := 0; i < 8; i++ {
		ctx.RecordAgentUsed("jazz_teacher")
	}
	ctx.AddMessage("user", "hi", "")
	ctx.AddMessage("assistant", "hello", "jazz_teacher")

	snap := ctx.Snapshot()
	if snap.SessionID != "sess-1" || snap.UserID != "user-9" || snap.SkillLevel != "advanced" {
		t.Errorf("identity fields wrong: %+v", snap)
	}
	if len(snap.AgentHistory) != 5 {
		t.Errorf("agent history should be truncated to 5, got %d", len(snap.AgentHistory))
	}
	if snap.MessageCount != 2 {
		t.Errorf("expected message count 2, got %d", snap.MessageCount)
	}
	if len(ctx.AgentRoutingHistory) != 8 {
		t.Errorf("routing history storage must stay unbounded, got %d", len(ctx.AgentRoutingHistory))
	}
}

func TestNewContext_GeneratesSessionID(t *testing.T) {
	a := NewContext("", "", "")
	b := NewContext("", "", "")
	if a.SessionID == "" || a.SessionID == b.SessionID {
		t.Errorf("expected unique generated session ids, got %q and %q", a.SessionID, b.SessionID)
	}
	if a.UserSkillLevel != "intermediate" {
		t.Errorf("expected default skill level, got %q", a.UserSkillLevel)
	}
}

func TestSessionStore_GetOrCreate(t *testing.T) {
	store := NewSessionStore()

	first := store.GetOrCreate("", "u1", "beginner")
	if first.SessionID == "" {
		t.Fatal("expected generated session id")
	}

	same := store.GetOrCreate(first.SessionID, "", "")
	if same != first {
		t.Error("expected the same context back for a known session id")
	}

	other := store.GetOrCreate("fresh-id", "u2", "")
	if other.SessionID != "fresh-id" {
		t.Errorf("expected supplied id to stick, got %q", other.SessionID)
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", store.Len())
	}
}
