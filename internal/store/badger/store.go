// Package badger implements the ThreadStash store on a Badger
// key-document database. Every entity is a JSON document under a
// prefixed key; multi-document operations run inside a single Badger
// transaction, so the read-modify-write sequences that maintain the
// denormalized counters cannot interleave.
package badger

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/store"
)

// Key prefixes and singleton keys.
const (
	threadPrefix     = "thread:"             // thread:{id} → Thread JSON
	collectionPrefix = "collection:"         // collection:{id} → Collection JSON
	tagPrefix        = "tag:"                // tag:{id} → Tag JSON
	sessionPrefix    = "session:"            // session:{id} → Session JSON
	sessionTokenIdx  = "idx:sessions:token:" // idx:sessions:token:{hash} → sessionID

	metaKey      = "meta"
	syncStateKey = "syncState"
	accountKey   = "account"
	prefsKey     = "userPrefs"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badgerdb.DB
	logger *slog.Logger

	maxFreeThreads int
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the store at the given path and runs first-run
// initialization. maxFreeThreads <= 0 applies the default quota.
func Open(path string, maxFreeThreads int, logger *slog.Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions(path)
	opts.Logger = nil      // Disable Badger's internal logging
	opts.SyncWrites = true // Sync writes to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.ErrBackendUnavailable.WithCause(fmt.Errorf("open badger db: %w", err))
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
		logger.Info("badger store opened", "path", path, "max_free_threads", maxFreeThreads)
	}

	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing badger store")
	}
	return s.db.Close()
}

// initialize seeds the singleton documents on first run: metadata with the
// schema version stamp, the protected default collection, the sync state,
// and default preferences. On later runs an older version stamp triggers
// migration before the store is handed out. Idempotent.
func (s *Store) initialize() error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		var meta domain.StoreMeta
		err := getInTxn(txn, metaKey, &meta)
		switch {
		case errors.Is(err, badgerdb.ErrKeyNotFound):
			if err := setInTxn(txn, metaKey, domain.NewStoreMeta()); err != nil {
				return err
			}
		case err != nil:
			return err
		case meta.Version < domain.CurrentVersion:
			if err := s.migrate(txn, meta.Version); err != nil {
				return err
			}
			meta.Version = domain.CurrentVersion
			if err := setInTxn(txn, metaKey, &meta); err != nil {
				return err
			}
		}

		defaultKey := collectionPrefix + domain.DefaultCollectionID
		if _, err := txn.Get([]byte(defaultKey)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			if err := setInTxn(txn, defaultKey, domain.NewDefaultCollection()); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if _, err := txn.Get([]byte(syncStateKey)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			if err := setInTxn(txn, syncStateKey, domain.NewSyncState()); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if _, err := txn.Get([]byte(prefsKey)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			if err := setInTxn(txn, prefsKey, domain.DefaultPrefs()); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		return nil
	})
}

// migrate upgrades documents written by an older schema version. Version 1
// is the first on-disk layout, so there is nothing to rewrite yet; the hook
// exists so future versions have a place to transform stored documents.
func (s *Store) migrate(_ *badgerdb.Txn, from int) error {
	if s.logger != nil {
		s.logger.Info("migrating store", "from", from, "to", domain.CurrentVersion)
	}
	return nil
}

// Transaction-scoped helpers shared by the entity files.

// getInTxn reads and unmarshals a document inside an open transaction.
// Returns badger.ErrKeyNotFound unchanged for the caller to translate.
func getInTxn(txn *badgerdb.Txn, key string, dest any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

// setInTxn marshals and writes a document inside an open transaction.
func setInTxn(txn *badgerdb.Txn, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// get retrieves a single document in its own read transaction.
func (s *Store) get(key string, dest any) error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		return getInTxn(txn, key, dest)
	})
}

// set stores a single document in its own write transaction.
func (s *Store) set(key string, value any) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return setInTxn(txn, key, value)
	})
}

// iteratePrefix walks every document under a prefix inside an open
// transaction, unmarshaling each value into a fresh T. Documents that fail
// to unmarshal are skipped, with a warning so corruption is not invisible.
func iteratePrefix[T any](txn *badgerdb.Txn, prefix string, logger *slog.Logger, visit func(*T)) error {
	p := []byte(prefix)
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = p
	opts.PrefetchSize = 100

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		var v T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			if logger != nil {
				logger.Warn("skipping unreadable document",
					"key", string(it.Item().Key()), "error", err)
			}
			continue
		}
		visit(&v)
	}
	return nil
}

// countPrefix counts keys under a prefix without loading values.
func countPrefix(txn *badgerdb.Txn, prefix string) int {
	p := []byte(prefix)
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = p
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		count++
	}
	return count
}
