// Package ledger keeps a local SQLite record of every export merged into a
// results page.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/resultsync/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// Store manages the export ledger database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens the ledger at dbPath, creating the database and its parent
// directory when needed. ":memory:" opens a private in-memory ledger.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported version %d", current, schemaVersion)
	}
	if current < schemaVersion {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return tx.Commit()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores an export. A run ID is assigned when the summary has none.
func (s *Store) Record(ctx context.Context, summary *models.ExportSummary) error {
	if summary.RunID == "" {
		summary.RunID = uuid.NewString()
	}
	exportedAt := summary.ExportedAt
	if exportedAt.IsZero() {
		exportedAt = time.Now()
	}

	query := `INSERT INTO exports
		(run_id, page_id, page_title, source_file, created_rows, updated_rows, skipped_rows, requirements, description_only, dry_run, initialized, duration_ms, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		summary.RunID,
		summary.PageID,
		summary.PageTitle,
		summary.SourceFile,
		summary.Created,
		summary.Updated,
		summary.Skipped,
		summary.Requirements,
		summary.DescriptionOnly,
		summary.DryRun,
		summary.Initialized,
		summary.Duration.Milliseconds(),
		exportedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	PageID string
	// Limit of zero returns every export.
	Limit int
	// IncludeDryRuns also returns exports that never wrote the page.
	IncludeDryRuns bool
}

// List returns exports, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]models.ExportSummary, error) {
	var (
		where []string
		args  []any
	)
	if f.PageID != "" {
		where = append(where, "page_id = ?")
		args = append(args, f.PageID)
	}
	if !f.IncludeDryRuns {
		where = append(where, "dry_run = 0")
	}

	query := `SELECT run_id, page_id, page_title, source_file, created_rows, updated_rows, skipped_rows, requirements, description_only, dry_run, initialized, duration_ms, exported_at
		FROM exports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY exported_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var out []models.ExportSummary
	for rows.Next() {
		var (
			e          models.ExportSummary
			title, src sql.NullString
			durationMs sql.NullInt64
		)
		if err := rows.Scan(
			&e.RunID,
			&e.PageID,
			&title,
			&src,
			&e.Created,
			&e.Updated,
			&e.Skipped,
			&e.Requirements,
			&e.DescriptionOnly,
			&e.DryRun,
			&e.Initialized,
			&durationMs,
			&e.ExportedAt,
		); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		e.PageTitle = title.String
		e.SourceFile = src.String
		e.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return out, nil
}
