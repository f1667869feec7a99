package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Chord is one chord definition row.
type Chord struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Root               string   `json:"root"`
	ChordType          string   `json:"chord_type"`
	Formula            string   `json:"formula"`
	NotesInC           string   `json:"notes_in_c"`
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	CommonProgressions []string `json:"common_progressions"`
	Difficulty         int      `json:"difficulty"`
}

// Scale is one scale or mode definition row.
type Scale struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	ScaleType          string   `json:"scale_type"`
	ParentScale        string   `json:"parent_scale"`
	Formula            string   `json:"formula"`
	NotesInC           string   `json:"notes_in_c"`
	Category           string   `json:"category"`
	ChordCompatibility []string `json:"chord_compatibility"`
	Description        string   `json:"description"`
	Character          string   `json:"character"`
	CommonUsage        string   `json:"common_usage"`
	Difficulty         int      `json:"difficulty"`
}

// JazzStandard is one tune row with harmonic analysis.
type JazzStandard struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Composer        string   `json:"composer"`
	Year            int      `json:"year"`
	Key             string   `json:"key"`
	Form            string   `json:"form"`
	Measures        int      `json:"measures"`
	Changes         []string `json:"changes"`
	Analysis        string   `json:"analysis"`
	KeyConcepts     []string `json:"key_concepts"`
	SuggestedScales []string `json:"suggested_scales"`
	Difficulty      int      `json:"difficulty"`
}

// Technique is one playing technique row.
type Technique struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Subcategory  string   `json:"subcategory"`
	Description  string   `json:"description"`
	Instructions string   `json:"instructions"`
	CommonErrors []string `json:"common_errors"`
	Tips         []string `json:"tips"`
	Difficulty   int      `json:"difficulty"`
}

// HistoryEntry is one guitar history row.
type HistoryEntry struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Era          string   `json:"era"`
	Category     string   `json:"category"`
	Content      string   `json:"content"`
	Summary      string   `json:"summary"`
	KeyFigures   []string `json:"key_figures"`
	Materials    []string `json:"materials"`
	Significance string   `json:"significance"`
}

// Benchmark is one development benchmark row.
type Benchmark struct {
	ID          int64      `json:"id"`
	Phase       string     `json:"phase"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes"`
}

// ChordFilter narrows GetChords results. Zero values mean no filter.
type ChordFilter struct {
	Category      string
	ChordType     string
	DifficultyMin int
	DifficultyMax int
	Limit         int
}

const defaultListLimit = 50

// GetChords queries chords with optional filters, ordered by difficulty
// then name.
func (s *Store) GetChords(ctx context.Context, f ChordFilter) ([]Chord, error) {
	if f.DifficultyMin == 0 {
		f.DifficultyMin = 1
	}
	if f.DifficultyMax == 0 {
		f.DifficultyMax = 5
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}

	query := `SELECT id, name, root, chord_type, formula, notes_in_c, category,
		description, common_progressions, difficulty
		FROM chords WHERE is_active = 1 AND difficulty >= ? AND difficulty <= ?`
	args := []any{f.DifficultyMin, f.DifficultyMax}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.ChordType != "" {
		query += " AND chord_type = ?"
		args = append(args, f.ChordType)
	}
	query += " ORDER BY difficulty, name LIMIT ?"
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chord query failed: %w", err)
	}
	defer rows.Close()
	return scanChords(rows)
}

// SearchChords matches chord names, descriptions, and formulas.
func (s *Store) SearchChords(ctx context.Context, term string, limit int) ([]Chord, error) {
	if limit == 0 {
		limit = 20
	}
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, root, chord_type, formula,
		notes_in_c, category, description, common_progressions, difficulty
		FROM chords
		WHERE is_active = 1 AND (name LIKE ? OR description LIKE ? OR formula LIKE ?)
		LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("chord search failed: %w", err)
	}
	defer rows.Close()
	return scanChords(rows)
}

func scanChords(rows *sql.Rows) ([]Chord, error) {
	var out []Chord
	for rows.Next() {
		var c Chord
		var progressions sql.NullString
		var notesInC, description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Root, &c.ChordType, &c.Formula,
			&notesInC, &c.Category, &description, &progressions, &c.Difficulty); err != nil {
			return nil, err
		}
		c.NotesInC = notesInC.String
		c.Description = description.String
		c.CommonProgressions = decodeStrings(progressions)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchScales matches scale names, descriptions, and character.
func (s *Store) SearchScales(ctx context.Context, term string, limit int) ([]Scale, error) {
	if limit == 0 {
		limit = 20
	}
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, scale_type, parent_scale,
		formula, notes_in_c, category, chord_compatibility, description, character,
		common_usage, difficulty
		FROM scales
		WHERE is_active = 1 AND (name LIKE ? OR description LIKE ? OR character LIKE ?)
		LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("scale search failed: %w", err)
	}
	defer rows.Close()

	var out []Scale
	for rows.Next() {
		var sc Scale
		var parent, notesInC, compat, description, character, usage sql.NullString
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.ScaleType, &parent, &sc.Formula,
			&notesInC, &sc.Category, &compat, &description, &character, &usage,
			&sc.Difficulty); err != nil {
			return nil, err
		}
		sc.ParentScale = parent.String
		sc.NotesInC = notesInC.String
		sc.ChordCompatibility = decodeStrings(compat)
		sc.Description = description.String
		sc.Character = character.String
		sc.CommonUsage = usage.String
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ScalesForChord finds scales whose compatibility list mentions the chord.
func (s *Store) ScalesForChord(ctx context.Context, chordName string) ([]Scale, error) {
	return s.SearchScales(ctx, chordName, 20)
}

// SearchJazzStandards matches titles, composers, and analysis. An empty term
// lists standards, optionally narrowed by key.
func (s *Store) SearchJazzStandards(ctx context.Context, term, key string, limit int) ([]JazzStandard, error) {
	if limit == 0 {
		limit = 20
	}
	query := `SELECT id, title, composer, year, key, form, measures, changes,
		analysis, key_concepts, suggested_scales, difficulty
		FROM jazz_standards WHERE is_active = 1`
	var args []any
	if term != "" {
		pattern := "%" + term + "%"
		query += " AND (title LIKE ? OR composer LIKE ? OR analysis LIKE ?)"
		args = append(args, pattern, pattern, pattern)
	}
	if key != "" {
		query += " AND key = ?"
		args = append(args, key)
	}
	query += " ORDER BY title LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jazz standard search failed: %w", err)
	}
	defer rows.Close()

	var out []JazzStandard
	for rows.Next() {
		var js JazzStandard
		var year, measures sql.NullInt64
		var form, changes, analysis, concepts, scales sql.NullString
		if err := rows.Scan(&js.ID, &js.Title, &js.Composer, &year, &js.Key, &form,
			&measures, &changes, &analysis, &concepts, &scales, &js.Difficulty); err != nil {
			return nil, err
		}
		js.Year = int(year.Int64)
		js.Form = form.String
		js.Measures = int(measures.Int64)
		js.Changes = decodeStrings(changes)
		js.Analysis = analysis.String
		js.KeyConcepts = decodeStrings(concepts)
		js.SuggestedScales = decodeStrings(scales)
		out = append(out, js)
	}
	return out, rows.Err()
}

// SearchTechniques matches technique names and descriptions.
func (s *Store) SearchTechniques(ctx context.Context, term string, limit int) ([]Technique, error) {
	if limit == 0 {
		limit = 20
	}
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, category, subcategory,
		description, instructions, common_errors, tips, difficulty
		FROM techniques
		WHERE is_active = 1 AND (name LIKE ? OR description LIKE ?)
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("technique search failed: %w", err)
	}
	defer rows.Close()

	var out []Technique
	for rows.Next() {
		var t Technique
		var subcategory, errorsJSON, tipsJSON sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &subcategory, &t.Description,
			&t.Instructions, &errorsJSON, &tipsJSON, &t.Difficulty); err != nil {
			return nil, err
		}
		t.Subcategory = subcategory.String
		t.CommonErrors = decodeStrings(errorsJSON)
		t.Tips = decodeStrings(tipsJSON)
		out = append(out, t)
	}
	return out, rows.Err()
}

// SearchGuitarHistory matches history entry titles and content.
func (s *Store) SearchGuitarHistory(ctx context.Context, term string, limit int) ([]HistoryEntry, error) {
	if limit == 0 {
		limit = 20
	}
	pattern := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, historySelect+
		` WHERE is_active = 1 AND (title LIKE ? OR content LIKE ?) LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("history search failed: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

// GetGuitarHistory lists history entries, optionally narrowed by era and
// category, ordered by era then title.
func (s *Store) GetGuitarHistory(ctx context.Context, era, category string, limit int) ([]HistoryEntry, error) {
	if limit == 0 {
		limit = defaultListLimit
	}
	query := historySelect + ` WHERE is_active = 1`
	var args []any
	if era != "" {
		query += " AND era = ?"
		args = append(args, era)
	}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY era, title LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()
	return scanHistory(rows)
}

const historySelect = `SELECT id, title, era, category, content, summary,
	key_figures, materials, significance FROM guitar_history`

func scanHistory(rows *sql.Rows) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var summary, figures, materials, significance sql.NullString
		if err := rows.Scan(&h.ID, &h.Title, &h.Era, &h.Category, &h.Content,
			&summary, &figures, &materials, &significance); err != nil {
			return nil, err
		}
		h.Summary = summary.String
		h.KeyFigures = decodeStrings(figures)
		h.Materials = decodeStrings(materials)
		h.Significance = significance.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateBenchmark records a new in-progress benchmark phase.
func (s *Store) CreateBenchmark(ctx context.Context, phase, description string) (*Benchmark, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO benchmarks (phase, description, status, started_at) VALUES (?, ?, 'in_progress', ?)`,
		phase, description, now)
	if err != nil {
		return nil, fmt.Errorf("benchmark insert failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Benchmark{ID: id, Phase: phase, Description: description, Status: "in_progress", StartedAt: &now}, nil
}

// CompleteBenchmark marks the in-progress benchmark for a phase completed.
// Returns false when no in-progress benchmark exists for the phase.
func (s *Store) CompleteBenchmark(ctx context.Context, phase, notes string) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE benchmarks SET status = 'completed', completed_at = ?, notes = ?
		 WHERE phase = ? AND status = 'in_progress'`,
		now, notes, phase)
	if err != nil {
		return false, fmt.Errorf("benchmark update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBenchmarks returns benchmarks for a phase, or all phases when empty.
func (s *Store) ListBenchmarks(ctx context.Context, phase string) ([]Benchmark, error) {
	query := `SELECT id, phase, description, status, started_at, completed_at, notes
		FROM benchmarks`
	var args []any
	if phase != "" {
		query += " WHERE phase = ?"
		args = append(args, phase)
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("benchmark query failed: %w", err)
	}
	defer rows.Close()

	var out []Benchmark
	for rows.Next() {
		var b Benchmark
		var started, completed sql.NullTime
		var notes sql.NullString
		if err := rows.Scan(&b.ID, &b.Phase, &b.Description, &b.Status, &started,
			&completed, &notes); err != nil {
			return nil, err
		}
		if started.Valid {
			b.StartedAt = &started.Time
		}
		if completed.Valid {
			b.CompletedAt = &completed.Time
		}
		b.Notes = notes.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// AgentAction is one row in the agent action log.
type AgentAction struct {
	AgentName     string
	Action        string
	InputSummary  string
	OutputSummary string
	ToolUsed      string
	TokensInput   int
	TokensOutput  int
	LatencyMs     int
	Success       bool
	ErrorMessage  string
	SessionID     string
}

// LogAgentAction appends one entry to the agent action log.
func (s *Store) LogAgentAction(ctx context.Context, a AgentAction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_logs (agent_name, action, input_summary, output_summary,
			tool_used, tokens_input, tokens_output, latency_ms, success, error_message, session_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AgentName, a.Action, a.InputSummary, a.OutputSummary, a.ToolUsed,
		a.TokensInput, a.TokensOutput, a.LatencyMs, a.Success, a.ErrorMessage, a.SessionID)
	if err != nil {
		return fmt.Errorf("agent log insert failed: %w", err)
	}
	return nil
}

// decodeStrings unpacks a JSON text column holding a string array.
func decodeStrings(col sql.NullString) []string {
	if !col.Valid || col.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(col.String), &out); err != nil {
		return nil
	}
	return out
}

func encodeStrings(in []string) string {
	if len(in) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(in)
	return string(b)
}
