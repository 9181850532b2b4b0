// Package storage handles persistence.
//
// One SQLite database holds:
//   - app_categories: the category store's durable records
//   - summaries: the history of generated summaries
//
// Directory structure:
//
//	~/.local/share/attune/
//	├── attune.db     # SQLite database
//	└── state.json    # mode + latest summaries (written by statefile)
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// CategoryRecord is the durable form of one app categorization.
type CategoryRecord struct {
	AppName           string `json:"app_name"`
	Category          string `json:"category"`
	Subcategory       string `json:"subcategory,omitempty"`
	ProductivityScore int    `json:"productivity_score"`
}

// SummaryRecord is the durable form of one generated summary.
type SummaryRecord struct {
	ID          int64     `json:"id"`
	Text        string    `json:"text"`
	FocusScore  int       `json:"focus_score"`
	GeneratedAt time.Time `json:"generated_at"`
	PeriodLabel string    `json:"period_label"`
	Source      string    `json:"source"` // "llm" or "fallback"
	Mode        string    `json:"mode"`
	State       string    `json:"state"`
}

// Store handles persistence.
type Store struct {
	db *sql.DB
}

// New creates a Store backed by a database under baseDir.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "attune.db")
	return open(dbPath + "?_journal_mode=WAL")
}

// NewMemory creates an in-memory Store, for tests.
func NewMemory() (*Store, error) {
	s, err := open(":memory:")
	if err != nil {
		return nil, err
	}
	// A second pooled connection would see its own empty database.
	s.db.SetMaxOpenConns(1)
	return s, nil
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the database tables.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS app_categories (
		app_name TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		subcategory TEXT,
		productivity_score INTEGER NOT NULL DEFAULT 50,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		focus_score INTEGER NOT NULL,
		generated_at DATETIME NOT NULL,
		period_label TEXT NOT NULL,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_generated ON summaries(generated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AllCategories returns every stored category, ordered by app name.
func (s *Store) AllCategories() ([]CategoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT app_name, category, COALESCE(subcategory, ''), productivity_score
		FROM app_categories ORDER BY app_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []CategoryRecord
	for rows.Next() {
		var rec CategoryRecord
		if err := rows.Scan(&rec.AppName, &rec.Category, &rec.Subcategory, &rec.ProductivityScore); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertCategory writes one category record; last writer wins.
func (s *Store) UpsertCategory(rec CategoryRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO app_categories (app_name, category, subcategory, productivity_score, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(app_name) DO UPDATE SET
			category = excluded.category,
			subcategory = excluded.subcategory,
			productivity_score = excluded.productivity_score,
			updated_at = excluded.updated_at`,
		rec.AppName, rec.Category, nullable(rec.Subcategory), rec.ProductivityScore, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

// BulkUpsertCategories writes all records inside one transaction:
// either every record is applied or none are.
func (s *Store) BulkUpsertCategories(recs []CategoryRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO app_categories (app_name, category, subcategory, productivity_score, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(app_name) DO UPDATE SET
			category = excluded.category,
			subcategory = excluded.subcategory,
			productivity_score = excluded.productivity_score,
			updated_at = excluded.updated_at`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range recs {
		if _, err := stmt.Exec(rec.AppName, rec.Category, nullable(rec.Subcategory), rec.ProductivityScore, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert %q: %w", rec.AppName, err)
		}
	}

	return tx.Commit()
}

// SaveSummary appends one summary to the history.
func (s *Store) SaveSummary(rec *SummaryRecord) error {
	res, err := s.db.Exec(`
		INSERT INTO summaries (text, focus_score, generated_at, period_label, source, mode, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Text, rec.FocusScore, rec.GeneratedAt.UTC(), rec.PeriodLabel, rec.Source, rec.Mode, rec.State)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// RecentSummaries returns the newest limit summaries, newest first.
func (s *Store) RecentSummaries(limit int) ([]SummaryRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, text, focus_score, generated_at, period_label, source, mode, state
		FROM summaries ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var out []SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.FocusScore, &rec.GeneratedAt,
			&rec.PeriodLabel, &rec.Source, &rec.Mode, &rec.State); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
