package store

// SchemaInfo describes one table for the schema inspection tool.
type SchemaInfo struct {
	Columns []string `json:"columns"`
	Indexes []string `json:"indexes,omitempty"`
	Notes   string   `json:"notes,omitempty"`
}

var tableSchemas = map[string]SchemaInfo{
	"chords": {
		Columns: []string{
			"id INTEGER PRIMARY KEY",
			"name TEXT NOT NULL UNIQUE",
			"root TEXT NOT NULL",
			"chord_type TEXT NOT NULL",
			"formula TEXT NOT NULL",
			"notes_in_c TEXT",
			"category TEXT NOT NULL",
			"description TEXT",
			"common_progressions JSON",
			"difficulty INTEGER DEFAULT 1",
		},
		Indexes: []string{
			"idx_chords_category_type (category, chord_type)",
			"idx_chords_difficulty (difficulty)",
		},
		Notes: "Category values: jazz, altered, basic, modern-jazz. Use LIKE for JSON columns.",
	},
	"scales": {
		Columns: []string{
			"id INTEGER PRIMARY KEY",
			"name TEXT NOT NULL UNIQUE",
			"scale_type TEXT NOT NULL",
			"parent_scale TEXT",
			"formula TEXT NOT NULL",
			"notes_in_c TEXT",
			"category TEXT NOT NULL",
			"chord_compatibility JSON",
			"description TEXT",
			"character TEXT",
			"common_usage TEXT",
			"difficulty INTEGER DEFAULT 1",
		},
		Indexes: []string{"idx_scales_category_type (category, scale_type)"},
		Notes:   "Categories: major_modes, melodic_minor_modes, symmetric, bebop, pentatonic",
	},
	"jazz_standards": {
		Columns: []string{
			"id INTEGER PRIMARY KEY",
			"title TEXT NOT NULL UNIQUE",
			"composer TEXT NOT NULL",
			"year INTEGER",
			"key TEXT NOT NULL",
			"form TEXT",
			"measures INTEGER",
			"changes JSON NOT NULL",
			"analysis TEXT",
			"key_concepts JSON",
			"suggested_scales JSON",
			"difficulty INTEGER DEFAULT 1",
		},
		Notes: "Changes are a JSON array of chords in order",
	},
	"techniques": {
		Columns: []string{
			"id INTEGER PRIMARY KEY",
			"name TEXT NOT NULL UNIQUE",
			"category TEXT NOT NULL",
			"subcategory TEXT",
			"description TEXT NOT NULL",
			"instructions TEXT NOT NULL",
			"common_errors JSON",
			"tips JSON",
			"difficulty INTEGER DEFAULT 1",
		},
		Notes: "Categories: picking, fretting, articulation",
	},
	"guitar_history": {
		Columns: []string{
			"id INTEGER PRIMARY KEY",
			"title TEXT NOT NULL",
			"era TEXT NOT NULL",
			"category TEXT NOT NULL",
			"content TEXT NOT NULL",
			"summary TEXT",
			"key_figures JSON",
			"materials JSON",
			"significance TEXT",
		},
		Indexes: []string{"idx_guitar_history_era_cat (era, category)"},
		Notes:   "Categories: luthier, instrument, innovation",
	},
	"benchmarks": {
		Columns: []string{
			"id INTEGER PRIMARY KEY",
			"phase TEXT NOT NULL",
			"description TEXT NOT NULL",
			"status TEXT NOT NULL DEFAULT 'pending'",
			"started_at DATETIME",
			"completed_at DATETIME",
			"notes TEXT",
		},
		Notes: "Status values: pending, in_progress, completed, failed",
	},
	"agent_logs": {
		Columns: []string{
			"id INTEGER PRIMARY KEY",
			"agent_name TEXT NOT NULL",
			"action TEXT NOT NULL",
			"input_summary TEXT",
			"output_summary TEXT",
			"tool_used TEXT",
			"tokens_input INTEGER",
			"tokens_output INTEGER",
			"latency_ms INTEGER",
			"success INTEGER",
			"error_message TEXT",
			"session_id TEXT",
			"timestamp DATETIME",
		},
	},
}

// TableSchema returns schema metadata for a known table.
func TableSchema(name string) (SchemaInfo, bool) {
	info, ok := tableSchemas[name]
	return info, ok
}

// TableNames lists the tables exposed to schema inspection, in no
// particular order.
func TableNames() []string {
	names := make([]string, 0, len(tableSchemas))
	for name := range tableSchemas {
		names = append(names, name)
	}
	return names
}
