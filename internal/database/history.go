package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/imgrescue/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "imgrescue.db"

// ErrNotFound is returned when the database file is required but absent.
var ErrNotFound = errors.New("history database not found")

// HistoryDB stores fetch outcomes and run records.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rwc"
	if !opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- Latest outcome per canonical URL
	CREATE TABLE IF NOT EXISTS outcomes (
		url TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		extension TEXT NOT NULL DEFAULT '',
		byte_length INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		run_id INTEGER,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
	CREATE INDEX IF NOT EXISTS idx_outcomes_hash ON outcomes(content_hash);

	-- One row per pipeline run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		targets INTEGER NOT NULL DEFAULT 0,
		stored INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		incomplete INTEGER NOT NULL DEFAULT 0,
		files_written INTEGER NOT NULL DEFAULT 0,
		files_reused INTEGER NOT NULL DEFAULT 0,
		rewrite_entries INTEGER NOT NULL DEFAULT 0,
		canceled INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveOutcome inserts or replaces the outcome recorded for o.URL.
func (h *HistoryDB) SaveOutcome(ctx context.Context, runID int64, o model.Outcome) error {
	query := `
	INSERT INTO outcomes (url, status, content_hash, extension, byte_length, content_type,
		source, source_url, error_kind, status_code, message, attempts, run_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		status = excluded.status,
		content_hash = excluded.content_hash,
		extension = excluded.extension,
		byte_length = excluded.byte_length,
		content_type = excluded.content_type,
		source = excluded.source,
		source_url = excluded.source_url,
		error_kind = excluded.error_kind,
		status_code = excluded.status_code,
		message = excluded.message,
		attempts = excluded.attempts,
		run_id = excluded.run_id,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err := h.db.ExecContext(ctx, query,
		o.URL,
		string(o.Status),
		o.ContentHash,
		o.Extension,
		o.ByteLength,
		o.ContentType,
		string(o.Source),
		o.SourceURL,
		string(o.ErrorKind),
		o.StatusCode,
		o.Message,
		o.Attempts,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome for %s: %w", o.URL, err)
	}
	return nil
}

const outcomeColumns = `url, status, content_hash, extension, byte_length, content_type,
	source, source_url, error_kind, status_code, message, attempts`

type scanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row scanner) (model.Outcome, error) {
	var o model.Outcome
	var status, source, kind string

	err := row.Scan(
		&o.URL,
		&status,
		&o.ContentHash,
		&o.Extension,
		&o.ByteLength,
		&o.ContentType,
		&source,
		&o.SourceURL,
		&kind,
		&o.StatusCode,
		&o.Message,
		&o.Attempts,
	)
	o.Status = model.Status(status)
	o.Source = model.Source(source)
	o.ErrorKind = model.ErrorKind(kind)
	return o, err
}

// StoredOutcomes returns every stored outcome keyed by URL.
func (h *HistoryDB) StoredOutcomes(ctx context.Context) (map[string]model.Outcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM outcomes WHERE status = ? ORDER BY url`

	rows, err := h.db.QueryContext(ctx, query, string(model.StatusStored))
	if err != nil {
		return nil, fmt.Errorf("failed to query stored outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make(map[string]model.Outcome)
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes[o.URL] = o
	}
	return outcomes, rows.Err()
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     time.Time
	Targets        int
	Stored         int
	Failed         int
	Incomplete     int
	FilesWritten   int
	FilesReused    int
	RewriteEntries int
	Canceled       bool
}

// Finished reports whether FinishRun was called for the run.
func (r RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// StartRun records the start of a run and returns its ID.
func (h *HistoryDB) StartRun(ctx context.Context, startedAt time.Time) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`INSERT INTO runs (started_at) VALUES (?)`,
		formatTimestamp(startedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun stores the final counts of a run.
func (h *HistoryDB) FinishRun(ctx context.Context, runID int64, summary *model.RunSummary) error {
	finishedAt := summary.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	query := `
	UPDATE runs SET
		finished_at = ?,
		targets = ?,
		stored = ?,
		failed = ?,
		incomplete = ?,
		files_written = ?,
		files_reused = ?,
		rewrite_entries = ?,
		canceled = ?
	WHERE id = ?
	`

	result, err := h.db.ExecContext(ctx, query,
		formatTimestamp(finishedAt),
		summary.Targets,
		summary.Stored,
		summary.Failed,
		summary.Incomplete,
		summary.FilesWritten,
		summary.FilesReused,
		summary.RewriteEntries,
		boolToInt(summary.Canceled),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run %d: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, started_at, finished_at, targets, stored, failed, incomplete,
		files_written, files_reused, rewrite_entries, canceled
	FROM runs
	ORDER BY id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedAt string
		var finishedAt sql.NullString

		err := rows.Scan(
			&r.ID,
			&startedAt,
			&finishedAt,
			&r.Targets,
			&r.Stored,
			&r.Failed,
			&r.Incomplete,
			&r.FilesWritten,
			&r.FilesReused,
			&r.RewriteEntries,
			&r.Canceled,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		r.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			r.FinishedAt = parseTimestamp(finishedAt.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// formatTimestamp renders t in UTC the way SQLite's datetime functions do.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.999999999")
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
