package store

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed seed/*.json
var seedFiles embed.FS

// Seed loads the embedded seed data into any knowledge tables that are
// empty. Tables that already hold rows are left alone.
func (s *Store) Seed(ctx context.Context) error {
	seeders := []struct {
		table string
		fn    func(context.Context) (int, error)
	}{
		{"chords", s.seedChords},
		{"scales", s.seedScales},
		{"jazz_standards", s.seedJazzStandards},
		{"techniques", s.seedTechniques},
		{"guitar_history", s.seedGuitarHistory},
	}

	for _, seeder := range seeders {
		n, err := s.count(ctx, seeder.table)
		if err != nil {
			return fmt.Errorf("seed count for %s failed: %w", seeder.table, err)
		}
		if n > 0 {
			continue
		}
		inserted, err := seeder.fn(ctx)
		if err != nil {
			return fmt.Errorf("seeding %s failed: %w", seeder.table, err)
		}
		s.logger.WithFields(map[string]any{
			"table":    seeder.table,
			"inserted": inserted,
		}).Info("Seeded table")
	}
	return nil
}

func loadSeed[T any](name string) ([]T, error) {
	data, err := seedFiles.ReadFile("seed/" + name)
	if err != nil {
		return nil, err
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("malformed seed file %s: %w", name, err)
	}
	return records, nil
}

func (s *Store) seedChords(ctx context.Context) (int, error) {
	records, err := loadSeed[Chord]("chords.json")
	if err != nil {
		return 0, err
	}
	for _, c := range records {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO chords (name, root, chord_type, formula, notes_in_c, category,
				description, common_progressions, difficulty)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.Root, c.ChordType, c.Formula, c.NotesInC, c.Category,
			c.Description, encodeStrings(c.CommonProgressions), c.Difficulty)
		if err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func (s *Store) seedScales(ctx context.Context) (int, error) {
	records, err := loadSeed[Scale]("scales.json")
	if err != nil {
		return 0, err
	}
	for _, sc := range records {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO scales (name, scale_type, parent_scale, formula, notes_in_c,
				category, chord_compatibility, description, character, common_usage, difficulty)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.Name, sc.ScaleType, sc.ParentScale, sc.Formula, sc.NotesInC,
			sc.Category, encodeStrings(sc.ChordCompatibility), sc.Description,
			sc.Character, sc.CommonUsage, sc.Difficulty)
		if err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func (s *Store) seedJazzStandards(ctx context.Context) (int, error) {
	records, err := loadSeed[JazzStandard]("jazz_standards.json")
	if err != nil {
		return 0, err
	}
	for _, js := range records {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO jazz_standards (title, composer, year, key, form, measures,
				changes, analysis, key_concepts, suggested_scales, difficulty)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			js.Title, js.Composer, js.Year, js.Key, js.Form, js.Measures,
			encodeStrings(js.Changes), js.Analysis, encodeStrings(js.KeyConcepts),
			encodeStrings(js.SuggestedScales), js.Difficulty)
		if err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func (s *Store) seedTechniques(ctx context.Context) (int, error) {
	records, err := loadSeed[Technique]("techniques.json")
	if err != nil {
		return 0, err
	}
	for _, t := range records {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO techniques (name, category, subcategory, description,
				instructions, common_errors, tips, difficulty)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Name, t.Category, t.Subcategory, t.Description, t.Instructions,
			encodeStrings(t.CommonErrors), encodeStrings(t.Tips), t.Difficulty)
		if err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func (s *Store) seedGuitarHistory(ctx context.Context) (int, error) {
	records, err := loadSeed[HistoryEntry]("guitar_history.json")
	if err != nil {
		return 0, err
	}
	for _, h := range records {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO guitar_history (title, era, category, content, summary,
				key_figures, materials, significance)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			h.Title, h.Era, h.Category, h.Content, h.Summary,
			encodeStrings(h.KeyFigures), encodeStrings(h.Materials), h.Significance)
		if err != nil {
			return 0, err
		}
	}
	return len(records), nil
}
