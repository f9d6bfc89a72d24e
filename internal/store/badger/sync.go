package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/id"
)

// appendChangeInTxn records a mutation in the sync state's pending change
// log. Called from within every mutating transaction so the log and the
// mutation commit together.
func appendChangeInTxn(txn *badgerdb.Txn, op domain.ChangeOp, entity domain.ChangeEntity, entityID string) error {
	var state domain.SyncState
	if err := getInTxn(txn, syncStateKey, &state); err != nil {
		return err
	}

	changeID, err := id.Generate(id.PrefixChange)
	if err != nil {
		return err
	}

	state.PendingChanges = append(state.PendingChanges, domain.ChangeRecord{
		ID:       changeID,
		Op:       op,
		Entity:   entity,
		EntityID: entityID,
		At:       time.Now(),
	})

	return setInTxn(txn, syncStateKey, &state)
}

// GetSyncState returns the sync singleton.
func (s *Store) GetSyncState(ctx context.Context) (*domain.SyncState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var state domain.SyncState
	if err := s.get(syncStateKey, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ClearPendingChanges acknowledges a successful sync: the pending log is
// emptied and the last-sync stamp recorded on both the sync state and the
// metadata singleton.
func (s *Store) ClearPendingChanges(ctx context.Context, syncedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		var state domain.SyncState
		if err := getInTxn(txn, syncStateKey, &state); err != nil {
			return err
		}
		state.PendingChanges = []domain.ChangeRecord{}
		state.LastSync = &syncedAt
		if err := setInTxn(txn, syncStateKey, &state); err != nil {
			return err
		}

		var meta domain.StoreMeta
		if err := getInTxn(txn, metaKey, &meta); err != nil {
			return err
		}
		meta.LastSync = &syncedAt
		return setInTxn(txn, metaKey, &meta)
	})
}

// SetSyncEnabled toggles sync participation.
func (s *Store) SetSyncEnabled(ctx context.Context, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		var state domain.SyncState
		if err := getInTxn(txn, syncStateKey, &state); err != nil {
			return err
		}
		state.SyncEnabled = enabled
		return setInTxn(txn, syncStateKey, &state)
	})
}

// GetMeta returns the store metadata singleton.
func (s *Store) GetMeta(ctx context.Context) (*domain.StoreMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var meta domain.StoreMeta
	if err := s.get(metaKey, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
