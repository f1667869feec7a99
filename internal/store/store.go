// Package store is the SQLite-backed knowledge base. Typed query functions
// are the only database surface the agents see, with the single exception of
// ExecuteSafeSelect which runs validated read-only SQL for ad-hoc questions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection pool.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open opens (creating if needed) the SQLite database at path and runs
// migrations. Use ":memory:" for an ephemeral database.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc's driver is not safe for concurrent writers on one connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("path", path).Info("Database opened")
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for callers that need raw access (tests, seeding).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chords (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			root TEXT NOT NULL,
			chord_type TEXT NOT NULL,
			formula TEXT NOT NULL,
			notes_in_c TEXT,
			category TEXT NOT NULL,
			description TEXT,
			common_progressions TEXT,
			difficulty INTEGER DEFAULT 1,
			is_active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chords_category_type ON chords(category, chord_type)`,
		`CREATE INDEX IF NOT EXISTS idx_chords_difficulty ON chords(difficulty)`,

		`CREATE TABLE IF NOT EXISTS scales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			scale_type TEXT NOT NULL,
			parent_scale TEXT,
			formula TEXT NOT NULL,
			notes_in_c TEXT,
			category TEXT NOT NULL,
			chord_compatibility TEXT,
			description TEXT,
			character TEXT,
			common_usage TEXT,
			difficulty INTEGER DEFAULT 1,
			is_active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scales_category_type ON scales(category, scale_type)`,

		`CREATE TABLE IF NOT EXISTS jazz_standards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL UNIQUE,
			composer TEXT NOT NULL,
			year INTEGER,
			key TEXT NOT NULL,
			form TEXT,
			measures INTEGER,
			changes TEXT NOT NULL,
			analysis TEXT,
			key_concepts TEXT,
			suggested_scales TEXT,
			difficulty INTEGER DEFAULT 1,
			is_active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS techniques (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			subcategory TEXT,
			description TEXT NOT NULL,
			instructions TEXT NOT NULL,
			common_errors TEXT,
			tips TEXT,
			difficulty INTEGER DEFAULT 1,
			is_active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS guitar_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			era TEXT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			key_figures TEXT,
			materials TEXT,
			significance TEXT,
			is_active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guitar_history_era_cat ON guitar_history(era, category)`,

		`CREATE TABLE IF NOT EXISTS benchmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			phase TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			started_at DATETIME,
			completed_at DATETIME,
			notes TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_benchmarks_phase ON benchmarks(phase)`,

		`CREATE TABLE IF NOT EXISTS agent_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_name TEXT NOT NULL,
			action TEXT NOT NULL,
			input_summary TEXT,
			output_summary TEXT,
			tool_used TEXT,
			tokens_input INTEGER DEFAULT 0,
			tokens_output INTEGER DEFAULT 0,
			latency_ms INTEGER DEFAULT 0,
			success INTEGER DEFAULT 1,
			error_message TEXT,
			session_id TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_logs_agent ON agent_logs(agent_name)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// count returns the row count of a known table. The name comes from code,
// never from user input.
func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}
