package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
)

// GetSyncState assembles the sync singleton from the state row and the
// pending change log, oldest change first.
func (s *Store) GetSyncState(ctx context.Context) (*domain.SyncState, error) {
	state := domain.NewSyncState()

	var (
		lastSync    sql.NullString
		syncEnabled int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync, sync_enabled FROM sync_state WHERE id = 1`).
		Scan(&lastSync, &syncEnabled)
	if err != nil {
		return nil, err
	}
	if state.LastSync, err = parseNullableTime(lastSync); err != nil {
		return nil, err
	}
	state.SyncEnabled = syncEnabled != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, op, entity, entity_id, at FROM sync_changes ORDER BY at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec domain.ChangeRecord
			op  string
			ent string
			at  string
		)
		if err := rows.Scan(&rec.ID, &op, &ent, &rec.EntityID, &at); err != nil {
			return nil, err
		}
		rec.Op = domain.ChangeOp(op)
		rec.Entity = domain.ChangeEntity(ent)
		if rec.At, err = parseTime(at); err != nil {
			return nil, err
		}
		state.PendingChanges = append(state.PendingChanges, rec)
	}
	return state, rows.Err()
}

// ClearPendingChanges acknowledges a successful sync: the change log is
// emptied and the last-sync stamp recorded on state and metadata.
func (s *Store) ClearPendingChanges(ctx context.Context, syncedAt time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_changes`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sync_state SET last_sync = ? WHERE id = 1`,
			formatTime(syncedAt)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE meta SET last_sync = ? WHERE id = 1`, formatTime(syncedAt))
		return err
	})
}

// SetSyncEnabled toggles sync participation.
func (s *Store) SetSyncEnabled(ctx context.Context, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_state SET sync_enabled = ? WHERE id = 1`, boolInt(enabled))
	return err
}

// GetMeta returns the store metadata singleton.
func (s *Store) GetMeta(ctx context.Context) (*domain.StoreMeta, error) {
	var (
		meta        domain.StoreMeta
		installedAt string
		lastSync    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, installed_at, last_sync, thread_count, storage_used
		FROM meta WHERE id = 1`).
		Scan(&meta.Version, &installedAt, &lastSync, &meta.ThreadCount, &meta.StorageUsed)
	if err != nil {
		return nil, err
	}

	if meta.InstalledAt, err = parseTime(installedAt); err != nil {
		return nil, err
	}
	if meta.LastSync, err = parseNullableTime(lastSync); err != nil {
		return nil, err
	}
	return &meta, nil
}
