package badger

import (
	"context"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
)

// CreateTag persists a new tag. The caller assigns the ID; ThreadCount
// starts at zero regardless of what the caller set.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		key := tagPrefix + t.ID
		if _, err := txn.Get([]byte(key)); err == nil {
			return errors.AlreadyExists("tag already exists")
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}

		t.ThreadCount = 0
		if err := setInTxn(txn, key, t); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpSave, domain.ChangeEntityTag, t.ID)
	})
}

// GetTag retrieves a tag by ID.
func (s *Store) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t domain.Tag
	err := s.get(tagPrefix+tagID, &t)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, errors.NotFoundf("tag %s not found", tagID)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTags returns all tags ordered by thread count (descending), then
// name for stability.
func (s *Store) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tags := []*domain.Tag{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return iteratePrefix(txn, tagPrefix, s.logger, func(t *domain.Tag) {
			tags = append(tags, t)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tags, func(i, j int) bool {
		if tags[i].ThreadCount != tags[j].ThreadCount {
			return tags[i].ThreadCount > tags[j].ThreadCount
		}
		return tags[i].Name < tags[j].Name
	})

	return tags, nil
}

// UpdateTag writes back a modified tag record. The thread count is not
// caller-writable; the stored counter wins.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		key := tagPrefix + t.ID
		var current domain.Tag
		if err := getInTxn(txn, key, &current); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return errors.NotFoundf("tag %s not found", t.ID)
			}
			return err
		}

		t.ThreadCount = current.ThreadCount
		if err := setInTxn(txn, key, t); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpUpdate, domain.ChangeEntityTag, t.ID)
	})
}

// DeleteTag removes a tag and strips it from every thread that references
// it. This is a full sweep over all threads; membership lists are not
// indexed by tag.
func (s *Store) DeleteTag(ctx context.Context, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		key := tagPrefix + tagID
		if _, err := txn.Get([]byte(key)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			return errors.NotFoundf("tag %s not found", tagID)
		} else if err != nil {
			return err
		}

		var tagged []*domain.Thread
		if err := iteratePrefix(txn, threadPrefix, s.logger, func(t *domain.Thread) {
			if t.HasTag(tagID) {
				tagged = append(tagged, t)
			}
		}); err != nil {
			return err
		}

		for _, thread := range tagged {
			thread.RemoveTag(tagID)
			if err := setInTxn(txn, threadPrefix+thread.ID, thread); err != nil {
				return err
			}
		}

		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpDelete, domain.ChangeEntityTag, tagID)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("tag deleted", "tag_id", tagID)
	}
	return nil
}

// AddTagToThread attaches a tag to a thread, reporting whether the
// attachment was new. Idempotent; the tag's thread count is incremented
// only when it was.
func (s *Store) AddTagToThread(ctx context.Context, threadID, tagID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	attached := false
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var thread domain.Thread
		if err := getInTxn(txn, threadPrefix+threadID, &thread); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return errors.NotFoundf("thread %s not found", threadID)
			}
			return err
		}

		if _, err := txn.Get([]byte(tagPrefix + tagID)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			return errors.NotFoundf("tag %s not found", tagID)
		} else if err != nil {
			return err
		}

		if !thread.AddTag(tagID) {
			return nil // already tagged
		}
		attached = true
		thread.Touch()
		if err := setInTxn(txn, threadPrefix+threadID, &thread); err != nil {
			return err
		}

		if err := adjustTagCountInTxn(txn, tagID, 1); err != nil {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpTagAdd, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return false, err
	}
	return attached, nil
}

// RemoveTagFromThread detaches a tag from a thread, reporting whether the
// attachment existed. Idempotent; the tag's thread count is decremented
// only when it did.
func (s *Store) RemoveTagFromThread(ctx context.Context, threadID, tagID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	detached := false
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var thread domain.Thread
		if err := getInTxn(txn, threadPrefix+threadID, &thread); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return errors.NotFoundf("thread %s not found", threadID)
			}
			return err
		}

		if !thread.RemoveTag(tagID) {
			return nil // wasn't tagged
		}
		detached = true
		thread.Touch()
		if err := setInTxn(txn, threadPrefix+threadID, &thread); err != nil {
			return err
		}

		if err := adjustTagCountInTxn(txn, tagID, -1); err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}

		return appendChangeInTxn(txn, domain.ChangeOpTagRemove, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return false, err
	}
	return detached, nil
}

// adjustTagCountInTxn applies a delta to a tag's denormalized thread
// count, floored at zero.
func adjustTagCountInTxn(txn *badgerdb.Txn, tagID string, delta int) error {
	var t domain.Tag
	if err := getInTxn(txn, tagPrefix+tagID, &t); err != nil {
		return err
	}

	t.ThreadCount += delta
	if t.ThreadCount < 0 {
		t.ThreadCount = 0
	}

	return setInTxn(txn, tagPrefix+tagID, &t)
}
