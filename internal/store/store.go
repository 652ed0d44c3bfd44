// Package store keeps a SQLite history of deck checks.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ppiankov/deckcheck/internal/model"
)

const timeLayout = time.RFC3339Nano

// Run is one stored check
type Run struct {
	ID         string
	Source     string
	Subject    string
	AnalyzedAt time.Time
	Totals     model.Totals
	Index      int
	Confidence string
	Provider   string // Empty when the model review was disabled
}

// Store is the run history database
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			subject TEXT,
			analyzed_at TEXT NOT NULL,
			slides INTEGER,
			mentions INTEGER,
			unparsed INTEGER,
			conflicts INTEGER,
			issues INTEGER,
			score_index INTEGER,
			confidence TEXT,
			provider TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS conflicts (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			type TEXT NOT NULL,
			slide_a INTEGER NOT NULL,
			slide_b INTEGER NOT NULL,
			a_raw TEXT,
			b_raw TEXT,
			context_a TEXT,
			context_b TEXT,
			similarity REAL,
			relative_difference REAL,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS issues (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			type TEXT,
			slides TEXT,
			summary TEXT,
			evidence TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_analyzed_at ON runs(analyzed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores a report with its conflicts and model issues in one transaction
func (s *Store) Save(ctx context.Context, report *model.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	totals := report.Totals()
	provider := ""
	if report.Review != nil && report.Review.Enabled {
		provider = report.Review.Provider
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, subject, analyzed_at, slides, mentions, unparsed, conflicts, issues, score_index, confidence, provider)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Source, report.Subject, report.AnalyzedAt.UTC().Format(timeLayout),
		totals.Slides, totals.Mentions, totals.Unparsed, totals.Conflicts, totals.Issues,
		report.Score.Index, report.Score.Confidence, provider)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", report.ID, err)
	}

	conflictStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO conflicts (run_id, position, type, slide_a, slide_b, a_raw, b_raw, context_a, context_b, similarity, relative_difference)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing conflict insert: %w", err)
	}
	defer conflictStmt.Close()

	for i, c := range report.Local {
		if _, err := conflictStmt.ExecContext(ctx, report.ID, i, c.Type, c.Slides[0], c.Slides[1],
			c.ARaw, c.BRaw, c.ContextA, c.ContextB, c.Similarity, c.RelativeDifference); err != nil {
			return fmt.Errorf("inserting conflict %d: %w", i, err)
		}
	}

	issueStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO issues (run_id, position, type, slides, summary, evidence) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing issue insert: %w", err)
	}
	defer issueStmt.Close()

	for i, issue := range report.LLM {
		slides, err := json.Marshal(issue.Slides)
		if err != nil {
			return fmt.Errorf("encoding issue slides: %w", err)
		}
		evidence, err := json.Marshal(issue.Evidence)
		if err != nil {
			return fmt.Errorf("encoding issue evidence: %w", err)
		}
		if _, err := issueStmt.ExecContext(ctx, report.ID, i, issue.Type, string(slides), issue.Summary, string(evidence)); err != nil {
			return fmt.Errorf("inserting issue %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Recent returns the latest runs, newest first. A non-positive limit means 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, subject, analyzed_at, slides, mentions, unparsed, conflicts, issues, score_index, confidence, provider
		 FROM runs ORDER BY analyzed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			analyzedAt string
			subject    sql.NullString
			confidence sql.NullString
			provider   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Source, &subject, &analyzedAt,
			&r.Totals.Slides, &r.Totals.Mentions, &r.Totals.Unparsed, &r.Totals.Conflicts, &r.Totals.Issues,
			&r.Index, &confidence, &provider); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Subject = subject.String
		r.Confidence = confidence.String
		r.Provider = provider.String
		if t, err := time.Parse(timeLayout, analyzedAt); err == nil {
			r.AnalyzedAt = t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Conflicts returns the stored local conflicts of a run in report order
func (s *Store) Conflicts(ctx context.Context, runID string) ([]model.Conflict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, slide_a, slide_b, a_raw, b_raw, context_a, context_b, similarity, relative_difference
		 FROM conflicts WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := []model.Conflict{}
	for rows.Next() {
		var c model.Conflict
		if err := rows.Scan(&c.Type, &c.Slides[0], &c.Slides[1], &c.ARaw, &c.BRaw,
			&c.ContextA, &c.ContextB, &c.Similarity, &c.RelativeDifference); err != nil {
			return nil, fmt.Errorf("scanning conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conflicts: %w", err)
	}
	return conflicts, nil
}

// Issues returns the stored model issues of a run in report order
func (s *Store) Issues(ctx context.Context, runID string) ([]model.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, slides, summary, evidence FROM issues WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying issues: %w", err)
	}
	defer rows.Close()

	issues := []model.Issue{}
	for rows.Next() {
		var (
			issue            model.Issue
			slides, evidence string
		)
		if err := rows.Scan(&issue.Type, &slides, &issue.Summary, &evidence); err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		if err := json.Unmarshal([]byte(slides), &issue.Slides); err != nil {
			return nil, fmt.Errorf("decoding issue slides: %w", err)
		}
		if err := json.Unmarshal([]byte(evidence), &issue.Evidence); err != nil {
			return nil, fmt.Errorf("decoding issue evidence: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating issues: %w", err)
	}
	return issues, nil
}
