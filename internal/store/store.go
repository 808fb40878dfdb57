// Package store persists translation memory, run history and user glossary
// terms in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/packtran/internal/glossary"
)

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func New(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{db: db, log: logger.Named("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		source_locale TEXT NOT NULL,
		target_locale TEXT NOT NULL,
		target_text TEXT NOT NULL,
		provider TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, source_locale, target_locale)
	);

	-- runs records every pipeline run with its final statistics
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		modpack TEXT NOT NULL,
		source_locale TEXT NOT NULL,
		target_locale TEXT NOT NULL,
		provider TEXT,
		model TEXT,
		state TEXT DEFAULT 'running',
		stats TEXT,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP
	);

	-- glossary stores user-defined terms folded into the pack glossary
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_locale TEXT NOT NULL,
		target_locale TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'other',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_locale, target_locale, source_term)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, source_locale, target_locale);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_locale, target_locale);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the remembered translation of a masked source string.
func (s *Store) Lookup(ctx context.Context, sourceText, sourceLocale, targetLocale string) (string, bool, error) {
	key := normalizeText(sourceText)
	var targetText string
	var invalidated bool

	err := s.db.QueryRowContext(ctx,
		`SELECT target_text, invalidated FROM translation_memory WHERE source_text = ? AND source_locale = ? AND target_locale = ?`,
		key, sourceLocale, targetLocale).Scan(&targetText, &invalidated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND source_locale = ? AND target_locale = ?`,
		time.Now(), key, sourceLocale, targetLocale)
	return targetText, true, err
}

// Pair is one masked source string and its masked translation.
type Pair struct {
	Source string
	Target string
}

// Remember stores pairs for a locale pair in one transaction, replacing
// earlier translations of the same source.
func (s *Store) Remember(ctx context.Context, sourceLocale, targetLocale, provider string, pairs []Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, source_text, source_locale, target_locale, target_text, provider, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range pairs {
		key := normalizeText(p.Source)
		if key == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), key, sourceLocale, targetLocale, p.Target, provider, now, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("remembered translations", zap.Int("pairs", len(pairs)), zap.String("target", targetLocale))
	return nil
}

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID           string
	SourceText   string
	SourceLocale string
	TargetLocale string
	TargetText   string
	Provider     string
	UsageCount   int
	Invalidated  bool
	LastUsed     time.Time
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	return s.affectOne(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
}

// DeleteMemory permanently removes a translation memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	return s.affectOne(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns translation memory entries for a locale pair ordered
// by most recently used. Empty locales match everything.
func (s *Store) ListMemory(ctx context.Context, sourceLocale, targetLocale string) ([]MemoryEntry, error) {
	where, args := localeFilter(sourceLocale, targetLocale)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_text, source_locale, target_locale, target_text, COALESCE(provider, ''), usage_count, invalidated, last_used FROM translation_memory`+where+` ORDER BY last_used DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.SourceLocale, &e.TargetLocale, &e.TargetText, &e.Provider, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the translation memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Run is a row from the runs table.
type Run struct {
	ID           string
	Modpack      string
	SourceLocale string
	TargetLocale string
	Provider     string
	Model        string
	State        string
	Stats        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// StartRun records a new run. A missing ID is generated.
func (s *Store) StartRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.State == "" {
		run.State = "running"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, modpack, source_locale, target_locale, provider, model, state, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Modpack, run.SourceLocale, run.TargetLocale, run.Provider, run.Model, run.State, run.StartedAt)
	return err
}

// FinishRun stores the final state and statistics document of a run.
func (s *Store) FinishRun(ctx context.Context, id, state, stats string) error {
	return s.affectOne(ctx,
		`UPDATE runs SET state = ?, stats = ?, finished_at = ? WHERE id = ?`,
		state, stats, time.Now(), id)
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, modpack, source_locale, target_locale, COALESCE(provider, ''), COALESCE(model, ''), state, COALESCE(stats, ''), started_at, finished_at FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Modpack, &r.SourceLocale, &r.TargetLocale, &r.Provider, &r.Model, &r.State, &r.Stats, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GlossaryEntry represents a row in the glossary table.
type GlossaryEntry struct {
	ID           string
	SourceLocale string
	TargetLocale string
	SourceTerm   string
	TargetTerm   string
	Category     glossary.Category
	CreatedAt    time.Time
}

// AddGlossaryTerm inserts or replaces a user glossary term.
func (s *Store) AddGlossaryTerm(ctx context.Context, sourceLocale, targetLocale, sourceTerm, targetTerm string, category glossary.Category) error {
	if category == "" {
		category = glossary.CategoryOther
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO glossary (id, source_locale, target_locale, source_term, target_term, category)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sourceLocale, targetLocale, strings.TrimSpace(sourceTerm), strings.TrimSpace(targetTerm), string(category))
	return err
}

// ListGlossaryTerms returns all glossary entries, optionally filtered by
// locale pair (pass empty strings to return everything).
func (s *Store) ListGlossaryTerms(ctx context.Context, sourceLocale, targetLocale string) ([]GlossaryEntry, error) {
	where, args := localeFilter(sourceLocale, targetLocale)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_locale, target_locale, source_term, target_term, category, created_at FROM glossary`+where+` ORDER BY source_locale, target_locale, source_term`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLocale, &e.TargetLocale, &e.SourceTerm, &e.TargetTerm, &e.Category, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GlossaryRules returns the user terms of a locale pair as term rules.
func (s *Store) GlossaryRules(ctx context.Context, sourceLocale, targetLocale string) ([]glossary.TermRule, error) {
	entries, err := s.ListGlossaryTerms(ctx, sourceLocale, targetLocale)
	if err != nil {
		return nil, err
	}
	rules := make([]glossary.TermRule, 0, len(entries))
	for _, e := range entries {
		rules = append(rules, glossary.TermRule{
			Term:     e.TargetTerm,
			Aliases:  []string{e.SourceTerm},
			Category: e.Category,
			Notes:    "user",
		})
	}
	return rules, nil
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	return s.affectOne(ctx, `DELETE FROM glossary WHERE id = ?`, id)
}

// ErrNotFound is returned when an update or delete matches no row.
var ErrNotFound = errors.New("not found")

func (s *Store) affectOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func localeFilter(sourceLocale, targetLocale string) (string, []any) {
	switch {
	case sourceLocale != "" && targetLocale != "":
		return ` WHERE source_locale = ? AND target_locale = ?`, []any{sourceLocale, targetLocale}
	case sourceLocale != "":
		return ` WHERE source_locale = ?`, []any{sourceLocale}
	case targetLocale != "":
		return ` WHERE target_locale = ?`, []any{targetLocale}
	}
	return "", nil
}

// normalizeText applies Unicode NFC normalization for consistent cache
// key comparison. Surrounding whitespace is part of the key since it is
// part of the translated string.
func normalizeText(text string) string {
	return norm.NFC.String(text)
}
