package badger

import (
	"context"
	"encoding/json/v2"
	"sort"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"
)

// SaveThread validates and persists a captured thread into the default
// collection. The quota check, the thread write, the collection membership
// update, and the metadata counter increment all happen in one transaction,
// so a save either applies completely or not at all.
func (s *Store) SaveThread(ctx context.Context, capture *domain.ThreadCapture) (*domain.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(capture.Posts) == 0 {
		return nil, errors.EmptyThread("cannot save a thread with no posts")
	}

	threadID, err := id.Generate(id.PrefixThread)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	thread := &domain.Thread{
		ID:             threadID,
		URL:            capture.URL,
		AuthorUsername: capture.AuthorUsername,
		AuthorName:     capture.AuthorName,
		AuthorAvatar:   capture.AuthorAvatar,
		Posts:          capture.Posts,
		SavedAt:        now,
		LastAccessed:   now,
		Tags:           []string{},
		CollectionID:   domain.DefaultCollectionID,
		Metadata:       capture.DeriveMetadata(),
	}

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		premium, err := s.isPremiumInTxn(txn)
		if err != nil {
			return err
		}

		var meta domain.StoreMeta
		if err := getInTxn(txn, metaKey, &meta); err != nil {
			return err
		}
		if !premium && meta.ThreadCount >= s.maxFreeThreads {
			return errors.StorageLimitReached("free tier thread limit reached")
		}

		data, err := json.Marshal(thread)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(threadPrefix+thread.ID), data); err != nil {
			return err
		}

		var coll domain.Collection
		if err := getInTxn(txn, collectionPrefix+domain.DefaultCollectionID, &coll); err != nil {
			return err
		}
		coll.AddThread(thread.ID)
		if err := setInTxn(txn, collectionPrefix+coll.ID, &coll); err != nil {
			return err
		}

		meta.ThreadCount++
		meta.StorageUsed += int64(len(data))
		if err := setInTxn(txn, metaKey, &meta); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpSave, domain.ChangeEntityThread, thread.ID)
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("thread saved", "thread_id", thread.ID, "author", thread.AuthorUsername, "posts", len(thread.Posts))
	}

	return thread, nil
}

// GetThread retrieves a thread by ID. Read-only; use TouchThread to stamp
// the access time when a client actually views the thread.
func (s *Store) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var thread domain.Thread
	err := s.get(threadPrefix+threadID, &thread)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, errors.NotFoundf("thread %s not found", threadID)
	}
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// TouchThread stamps a thread's last-accessed time. Not recorded as a
// sync change.
func (s *Store) TouchThread(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var thread domain.Thread
		if err := getInTxn(txn, threadPrefix+threadID, &thread); err != nil {
			return err
		}
		thread.LastAccessed = time.Now()
		return setInTxn(txn, threadPrefix+threadID, &thread)
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return errors.NotFoundf("thread %s not found", threadID)
	}
	return err
}

// ListThreads returns threads matching the filters, newest first.
func (s *Store) ListThreads(ctx context.Context, filters store.ListFilters) ([]*domain.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	threads := []*domain.Thread{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return iteratePrefix(txn, threadPrefix, s.logger, func(t *domain.Thread) {
			if matchesFilters(t, filters) {
				threads = append(threads, t)
			}
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(threads, func(i, j int) bool {
		return threads[i].SavedAt.After(threads[j].SavedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(threads) {
			return []*domain.Thread{}, nil
		}
		threads = threads[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(threads) {
		threads = threads[:filters.Limit]
	}

	return threads, nil
}

func matchesFilters(t *domain.Thread, filters store.ListFilters) bool {
	if filters.CollectionID != "" && t.CollectionID != filters.CollectionID {
		return false
	}
	if len(filters.TagIDs) > 0 && !hasAnyTag(t, filters.TagIDs) {
		return false
	}
	if filters.Author != "" &&
		!strings.Contains(strings.ToLower(t.AuthorUsername), strings.ToLower(filters.Author)) {
		return false
	}
	if filters.Search != "" && !anyPostContains(t, strings.ToLower(filters.Search)) {
		return false
	}
	return true
}

func hasAnyTag(t *domain.Thread, tagIDs []string) bool {
	for _, tagID := range tagIDs {
		if t.HasTag(tagID) {
			return true
		}
	}
	return false
}

// anyPostContains reports whether any post's text contains the already
// lowercased query.
func anyPostContains(t *domain.Thread, q string) bool {
	for _, p := range t.Posts {
		if strings.Contains(strings.ToLower(p.Text), q) {
			return true
		}
	}
	return false
}

// UpdateThread applies a partial update and stamps LastModified.
// Replacing posts recomputes the post count and media flag.
func (s *Store) UpdateThread(ctx context.Context, threadID string, upd store.ThreadUpdate) (*domain.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if upd.Posts != nil && len(upd.Posts) == 0 {
		return nil, errors.EmptyThread("cannot replace posts with an empty list")
	}

	var thread domain.Thread
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		key := threadPrefix + threadID
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return errors.NotFoundf("thread %s not found", threadID)
		}
		if err != nil {
			return err
		}

		oldSize := item.ValueSize()
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &thread)
		}); err != nil {
			return err
		}

		applyUpdate(&thread, upd)
		thread.Touch()

		data, err := json.Marshal(&thread)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}

		if err := adjustStorageInTxn(txn, int64(len(data))-oldSize); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpUpdate, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func applyUpdate(t *domain.Thread, upd store.ThreadUpdate) {
	if upd.URL != nil {
		t.URL = *upd.URL
	}
	if upd.AuthorName != nil {
		t.AuthorName = *upd.AuthorName
	}
	if upd.AuthorUsername != nil {
		t.AuthorUsername = *upd.AuthorUsername
	}
	if upd.AuthorAvatar != nil {
		t.AuthorAvatar = *upd.AuthorAvatar
	}
	if len(upd.Posts) > 0 {
		t.Posts = upd.Posts
		t.Metadata.PostCount = len(upd.Posts)
		t.Metadata.HasMedia = false
		for _, p := range upd.Posts {
			if len(p.Media) > 0 {
				t.Metadata.HasMedia = true
				break
			}
		}
	}
}

// DeleteThread removes a thread, its collection membership, and its tag
// references, decrementing each affected tag's thread count. Deleting a
// missing thread is a NOT_FOUND failure; a repeated delete cannot
// decrement counters twice.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		key := threadPrefix + threadID
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return errors.NotFoundf("thread %s not found", threadID)
		}
		if err != nil {
			return err
		}

		size := item.ValueSize()
		var thread domain.Thread
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &thread)
		}); err != nil {
			return err
		}

		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}

		// Drop membership. A missing collection record is tolerated so one
		// inconsistency cannot make the thread undeletable.
		var coll domain.Collection
		collErr := getInTxn(txn, collectionPrefix+thread.CollectionID, &coll)
		if collErr == nil {
			coll.RemoveThread(threadID)
			if err := setInTxn(txn, collectionPrefix+coll.ID, &coll); err != nil {
				return err
			}
		} else if !errors.Is(collErr, badgerdb.ErrKeyNotFound) {
			return collErr
		}

		for _, tagID := range thread.Tags {
			if err := adjustTagCountInTxn(txn, tagID, -1); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
		}

		var meta domain.StoreMeta
		if err := getInTxn(txn, metaKey, &meta); err != nil {
			return err
		}
		meta.ThreadCount--
		if meta.ThreadCount < 0 {
			meta.ThreadCount = 0
		}
		meta.StorageUsed -= size
		if meta.StorageUsed < 0 {
			meta.StorageUsed = 0
		}
		if err := setInTxn(txn, metaKey, &meta); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpDelete, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("thread deleted", "thread_id", threadID)
	}
	return nil
}

// MoveThreadToCollection reassigns a thread to another collection,
// updating both membership lists and the thread's owner pointer together.
func (s *Store) MoveThreadToCollection(ctx context.Context, threadID, collectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		var thread domain.Thread
		if err := getInTxn(txn, threadPrefix+threadID, &thread); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return errors.NotFoundf("thread %s not found", threadID)
			}
			return err
		}

		var target domain.Collection
		if err := getInTxn(txn, collectionPrefix+collectionID, &target); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return errors.NotFoundf("collection %s not found", collectionID)
			}
			return err
		}

		if thread.CollectionID == collectionID {
			return nil
		}

		var source domain.Collection
		srcErr := getInTxn(txn, collectionPrefix+thread.CollectionID, &source)
		if srcErr == nil {
			source.RemoveThread(threadID)
			if err := setInTxn(txn, collectionPrefix+source.ID, &source); err != nil {
				return err
			}
		} else if !errors.Is(srcErr, badgerdb.ErrKeyNotFound) {
			return srcErr
		}

		target.AddThread(threadID)
		if err := setInTxn(txn, collectionPrefix+target.ID, &target); err != nil {
			return err
		}

		thread.CollectionID = collectionID
		thread.Touch()
		if err := setInTxn(txn, threadPrefix+threadID, &thread); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpMove, domain.ChangeEntityThread, threadID)
	})
}

// adjustStorageInTxn applies a byte-size delta to the metadata singleton.
func adjustStorageInTxn(txn *badgerdb.Txn, delta int64) error {
	var meta domain.StoreMeta
	if err := getInTxn(txn, metaKey, &meta); err != nil {
		return err
	}
	meta.StorageUsed += delta
	if meta.StorageUsed < 0 {
		meta.StorageUsed = 0
	}
	return setInTxn(txn, metaKey, &meta)
}
