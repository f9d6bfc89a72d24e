// Package sqlite implements the ThreadStash store on a SQLite database.
// It mirrors the Badger backend's semantics relationally: membership
// lives in a junction table constrained to single ownership, denormalized
// counters live on their rows, and every multi-row operation runs in one
// SQL transaction.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	maxFreeThreads int
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the SQLite store at the given path, configures
// WAL mode, applies the schema, and seeds the singleton rows.
func Open(path string, maxFreeThreads int, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.ErrBackendUnavailable.WithCause(fmt.Errorf("open sqlite: %w", err))
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if maxFreeThreads <= 0 {
		maxFreeThreads = store.DefaultMaxFreeThreads
	}

	s := &Store{
		db:             db,
		logger:         logger,
		maxFreeThreads: maxFreeThreads,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("sqlite store opened", "path", path, "max_free_threads", maxFreeThreads)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing sqlite store")
	}
	return s.db.Close()
}

// initialize seeds the singleton rows and the default collection, and
// upgrades the schema when the stored version stamp is older than
// domain.CurrentVersion. Idempotent: INSERT OR IGNORE throughout.
func (s *Store) initialize() error {
	meta := domain.NewStoreMeta()
	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO meta (id, version, installed_at, thread_count, storage_used)
		VALUES (1, ?, ?, 0, 0)`,
		meta.Version, formatTime(meta.InstalledAt),
	); err != nil {
		return err
	}

	var stored int
	if err := s.db.QueryRow(`SELECT version FROM meta WHERE id = 1`).Scan(&stored); err != nil {
		return err
	}
	if stored < domain.CurrentVersion {
		if err := s.migrate(stored); err != nil {
			return err
		}
		if _, err := s.db.Exec(`UPDATE meta SET version = ? WHERE id = 1`, domain.CurrentVersion); err != nil {
			return err
		}
	}

	def := domain.NewDefaultCollection()
	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO collections (id, name, created_at)
		VALUES (?, ?, ?)`,
		def.ID, def.Name, formatTime(def.CreatedAt),
	); err != nil {
		return err
	}

	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO sync_state (id, sync_enabled) VALUES (1, 0)`,
	); err != nil {
		return err
	}

	prefs := domain.DefaultPrefs()
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO prefs (id, theme, default_export_format, auto_capture, show_save_button)
		VALUES (1, ?, ?, ?, ?)`,
		prefs.Theme, prefs.DefaultExportFormat, boolInt(prefs.AutoCapture), boolInt(prefs.ShowSaveButton),
	)
	return err
}

// migrate upgrades rows written by an older schema version. Version 1 is
// the first on-disk layout, so there is nothing to rewrite yet; the hook
// exists so future versions have a place to transform stored rows.
func (s *Store) migrate(from int) error {
	if s.logger != nil {
		s.logger.Info("migrating store", "from", from, "to", domain.CurrentVersion)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so the row helpers
// work inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing on nil error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// appendChange records a mutation in the sync change log. Called inside
// the mutating transaction so the log commits with the change.
func appendChange(ctx context.Context, q querier, op domain.ChangeOp, entity domain.ChangeEntity, entityID string) error {
	changeID, err := id.Generate(id.PrefixChange)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO sync_changes (id, op, entity, entity_id, at)
		VALUES (?, ?, ?, ?, ?)`,
		changeID, string(op), string(entity), entityID, formatTime(time.Now()),
	)
	return err
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// parseNullableTime parses an optional time column.
func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullTime returns a sql.NullString for an optional time.
func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullZeroTime treats the zero time as NULL.
func nullZeroTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// nullString returns a sql.NullString, mapping "" to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolInt maps a bool to the 0/1 SQLite convention.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
