package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS journal (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	ticket_id TEXT NOT NULL,
	project_key TEXT NOT NULL DEFAULT '',
	minutes INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	trigger_kind TEXT NOT NULL DEFAULT '',
	primary_succeeded INTEGER NOT NULL,
	secondary_succeeded INTEGER NOT NULL,
	secondary_skipped INTEGER NOT NULL,
	secondary_error TEXT NOT NULL DEFAULT '',
	jira_worklog_id TEXT NOT NULL DEFAULT '',
	time_entry_id TEXT NOT NULL DEFAULT '',
	productive_project_id TEXT NOT NULL DEFAULT '',
	productive_service_id TEXT NOT NULL DEFAULT '',
	logged_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_logged_at ON journal(logged_at);
CREATE INDEX IF NOT EXISTS idx_journal_workspace ON journal(workspace_id, logged_at);
`

const journalColumns = `id, workspace_id, ticket_id, project_key, minutes, description, trigger_kind,
	primary_succeeded, secondary_succeeded, secondary_skipped, secondary_error,
	jira_worklog_id, time_entry_id, productive_project_id, productive_service_id, logged_at`

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Driver is "sqlite" (modernc, default) or "sqlite3" (mattn, cgo).
	Driver string

	// Path is the database file. ":memory:" is allowed.
	Path string

	// BusyTimeout is how long to wait for locks.
	// Default: 5 seconds
	BusyTimeout time.Duration

	Logger *slog.Logger
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db        *sql.DB
	driver    string
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, &StorageError{Backend: cfg.Driver, Operation: "open", Cause: err}
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		driver: cfg.Driver,
		logger: logger.With("component", "storage.sqlite"),
	}
	if err := s.initialize(cfg.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("sqlite storage initialized", "path", cfg.Path, "driver", cfg.Driver)
	return s, nil
}

func (s *SQLiteStore) initialize(busyTimeout time.Duration) error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return s.fail("set_busy_timeout", err)
	}
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return s.fail("enable_wal", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return s.fail("create_schema", err)
	}
	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return s.fail("insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return s.fail("get_schema_version", err)
	}
	if version != schemaVersion {
		return s.fail("schema_version_mismatch", fmt.Errorf("expected schema version %d, got %d", schemaVersion, version))
	}
	return nil
}

func (s *SQLiteStore) fail(op string, err error) error {
	return &StorageError{Backend: s.driver, Operation: op, Cause: err}
}

func (s *SQLiteStore) LoadSettings(ctx context.Context, workspaceID string) (*Settings, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", settingsKey(workspaceID)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail("load_settings", err)
	}

	var settings Settings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return nil, s.fail("decode_settings", err)
	}
	return &settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, workspaceID string, settings *Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return s.fail("encode_settings", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		settingsKey(workspaceID), string(data), time.Now().UnixMilli())
	if err != nil {
		return s.fail("save_settings", err)
	}
	return nil
}

func (s *SQLiteStore) AppendEntry(ctx context.Context, e *JournalEntry) error {
	prepareEntry(e)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO journal ("+journalColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.WorkspaceID, e.TicketID, e.ProjectKey, e.Minutes, e.Description, e.Trigger,
		e.PrimarySucceeded, e.SecondarySucceeded, e.SecondarySkipped, e.SecondaryError,
		e.JiraWorklogID, e.TimeEntryID, e.ProductiveProjectID, e.ProductiveServiceID,
		e.LoggedAt.UnixMilli())
	if err != nil {
		return s.fail("append_entry", err)
	}
	return nil
}

func (s *SQLiteStore) ListEntries(ctx context.Context, opts ListOptions) ([]JournalEntry, error) {
	var where []string
	var args []any
	if opts.WorkspaceID != "" {
		where = append(where, "workspace_id = ?")
		args = append(args, opts.WorkspaceID)
	}
	if opts.TicketID != "" {
		where = append(where, "ticket_id = ?")
		args = append(args, opts.TicketID)
	}
	if !opts.Since.IsZero() {
		where = append(where, "logged_at >= ?")
		args = append(args, opts.Since.UnixMilli())
	}

	query := "SELECT " + journalColumns + " FROM journal"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY logged_at DESC, rowid DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail("list_entries", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var loggedAt int64
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.TicketID, &e.ProjectKey, &e.Minutes, &e.Description, &e.Trigger,
			&e.PrimarySucceeded, &e.SecondarySucceeded, &e.SecondarySkipped, &e.SecondaryError,
			&e.JiraWorklogID, &e.TimeEntryID, &e.ProductiveProjectID, &e.ProductiveServiceID, &loggedAt); err != nil {
			return nil, s.fail("scan_entry", err)
		}
		e.LoggedAt = time.UnixMilli(loggedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list_entries", err)
	}
	return out, nil
}

func (s *SQLiteStore) PruneEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM journal WHERE logged_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, s.fail("prune_entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail("prune_entries", err)
	}
	return n, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}
