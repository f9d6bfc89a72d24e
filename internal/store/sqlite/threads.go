package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"strings"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"
)

// threadColumns is the ordered list of columns selected in thread
// queries. Must match the scan order in scanThread. Membership comes
// from the junction table, so queries join thread_collections.
const threadColumns = `t.id, t.url, t.author_username, t.author_name, t.author_avatar,
	t.posts, t.saved_at, t.last_accessed, t.last_modified, t.metadata, tc.collection_id`

const threadFrom = ` FROM threads t JOIN thread_collections tc ON tc.thread_id = t.id`

// scanThread scans a thread row. Tags are loaded separately.
func scanThread(scanner interface{ Scan(dest ...any) error }) (*domain.Thread, error) {
	var (
		t            domain.Thread
		postsJSON    string
		metaJSON     string
		savedAt      string
		lastAccessed string
		lastModified sql.NullString
	)

	err := scanner.Scan(
		&t.ID,
		&t.URL,
		&t.AuthorUsername,
		&t.AuthorName,
		&t.AuthorAvatar,
		&postsJSON,
		&savedAt,
		&lastAccessed,
		&lastModified,
		&metaJSON,
		&t.CollectionID,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(postsJSON), &t.Posts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
		return nil, err
	}

	if t.SavedAt, err = parseTime(savedAt); err != nil {
		return nil, err
	}
	if t.LastAccessed, err = parseTime(lastAccessed); err != nil {
		return nil, err
	}
	if lastModified.Valid {
		if t.LastModified, err = parseTime(lastModified.String); err != nil {
			return nil, err
		}
	}

	t.Tags = []string{}
	return &t, nil
}

// loadThreadTags fills Tags for the given threads in one query,
// preserving attachment order.
func loadThreadTags(ctx context.Context, q querier, threads []*domain.Thread) error {
	if len(threads) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Thread, len(threads))
	for _, t := range threads {
		byID[t.ID] = t
	}

	rows, err := q.QueryContext(ctx,
		`SELECT thread_id, tag_id FROM thread_tags ORDER BY rowid`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var threadID, tagID string
		if err := rows.Scan(&threadID, &tagID); err != nil {
			return err
		}
		if t, ok := byID[threadID]; ok {
			t.Tags = append(t.Tags, tagID)
		}
	}
	return rows.Err()
}

// threadSize is the stored byte size used for the storage counter.
func threadSize(postsJSON, metaJSON string) int64 {
	return int64(len(postsJSON) + len(metaJSON))
}

// SaveThread validates and persists a captured thread into the default
// collection. Quota check, insert, membership, and counter update commit
// in one transaction.
func (s *Store) SaveThread(ctx context.Context, capture *domain.ThreadCapture) (*domain.Thread, error) {
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

	postsJSON, err := json.Marshal(thread.Posts)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(thread.Metadata)
	if err != nil {
		return nil, err
	}
	size := threadSize(string(postsJSON), string(metaJSON))

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var premium int
		err := tx.QueryRowContext(ctx,
			`SELECT is_premium FROM account LIMIT 1`).Scan(&premium)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT thread_count FROM meta WHERE id = 1`).Scan(&count); err != nil {
			return err
		}
		if premium == 0 && count >= s.maxFreeThreads {
			return errors.StorageLimitReached("free tier thread limit reached")
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO threads (id, url, author_username, author_name, author_avatar,
				posts, saved_at, last_accessed, metadata, size_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			thread.ID, thread.URL, thread.AuthorUsername, thread.AuthorName, thread.AuthorAvatar,
			string(postsJSON), formatTime(thread.SavedAt), formatTime(thread.LastAccessed),
			string(metaJSON), size,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_collections (thread_id, collection_id) VALUES (?, ?)`,
			thread.ID, domain.DefaultCollectionID,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE meta SET thread_count = thread_count + 1, storage_used = storage_used + ?
			WHERE id = 1`, size,
		); err != nil {
			return err
		}

		return appendChange(ctx, tx, domain.ChangeOpSave, domain.ChangeEntityThread, thread.ID)
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("thread saved", "thread_id", thread.ID, "author", thread.AuthorUsername, "posts", len(thread.Posts))
	}

	return thread, nil
}

// GetThread retrieves a thread by ID. Read-only.
func (s *Store) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+threadColumns+threadFrom+` WHERE t.id = ?`, threadID)

	t, err := scanThread(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("thread %s not found", threadID)
	}
	if err != nil {
		return nil, err
	}

	if err := loadThreadTags(ctx, s.db, []*domain.Thread{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// TouchThread stamps a thread's last-accessed time.
func (s *Store) TouchThread(ctx context.Context, threadID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE threads SET last_accessed = ? WHERE id = ?`,
		formatTime(time.Now()), threadID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("thread %s not found", threadID)
	}
	return nil
}

// ListThreads returns threads matching the filters, newest first.
func (s *Store) ListThreads(ctx context.Context, filters store.ListFilters) ([]*domain.Thread, error) {
	query := `SELECT ` + threadColumns + threadFrom
	var (
		where []string
		args  []any
	)

	if filters.CollectionID != "" {
		where = append(where, "tc.collection_id = ?")
		args = append(args, filters.CollectionID)
	}
	if len(filters.TagIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filters.TagIDs)), ",")
		where = append(where,
			"EXISTS (SELECT 1 FROM thread_tags tt WHERE tt.thread_id = t.id AND tt.tag_id IN ("+placeholders+"))")
		for _, tagID := range filters.TagIDs {
			args = append(args, tagID)
		}
	}
	if filters.Author != "" {
		where = append(where, "instr(lower(t.author_username), lower(?)) > 0")
		args = append(args, filters.Author)
	}
	if filters.Search != "" {
		// Posts are stored as a JSON array; match the text field of each
		// element so URLs and media paths cannot produce false hits.
		where = append(where,
			"EXISTS (SELECT 1 FROM json_each(t.posts) post WHERE instr(lower(json_extract(post.value, '$.text')), lower(?)) > 0)")
		args = append(args, filters.Search)
	}

	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY t.saved_at DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	} else if filters.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filters.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	threads := []*domain.Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadThreadTags(ctx, s.db, threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// UpdateThread applies a partial update and stamps LastModified.
func (s *Store) UpdateThread(ctx context.Context, threadID string, upd store.ThreadUpdate) (*domain.Thread, error) {
	if upd.Posts != nil && len(upd.Posts) == 0 {
		return nil, errors.EmptyThread("cannot replace posts with an empty list")
	}

	var updated *domain.Thread
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+threadColumns+threadFrom+` WHERE t.id = ?`, threadID)
		t, err := scanThread(row)
		if err == sql.ErrNoRows {
			return errors.NotFoundf("thread %s not found", threadID)
		}
		if err != nil {
			return err
		}

		var oldSize int64
		if err := tx.QueryRowContext(ctx,
			`SELECT size_bytes FROM threads WHERE id = ?`, threadID).Scan(&oldSize); err != nil {
			return err
		}

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
		t.Touch()

		postsJSON, err := json.Marshal(t.Posts)
		if err != nil {
			return err
		}
		metaJSON, err := json.Marshal(t.Metadata)
		if err != nil {
			return err
		}
		size := threadSize(string(postsJSON), string(metaJSON))

		if _, err := tx.ExecContext(ctx, `
			UPDATE threads SET url = ?, author_username = ?, author_name = ?, author_avatar = ?,
				posts = ?, last_modified = ?, metadata = ?, size_bytes = ?
			WHERE id = ?`,
			t.URL, t.AuthorUsername, t.AuthorName, t.AuthorAvatar,
			string(postsJSON), formatTime(t.LastModified), string(metaJSON), size, threadID,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE meta SET storage_used = MAX(storage_used + ?, 0) WHERE id = 1`,
			size-oldSize,
		); err != nil {
			return err
		}

		if err := loadThreadTags(ctx, tx, []*domain.Thread{t}); err != nil {
			return err
		}

		updated = t
		return appendChange(ctx, tx, domain.ChangeOpUpdate, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteThread removes a thread, its junction rows (via cascade), and
// decrements affected tag counters and the thread counter.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var size int64
		err := tx.QueryRowContext(ctx,
			`SELECT size_bytes FROM threads WHERE id = ?`, threadID).Scan(&size)
		if err == sql.ErrNoRows {
			return errors.NotFoundf("thread %s not found", threadID)
		}
		if err != nil {
			return err
		}

		// Decrement tag counters before the cascade removes the rows.
		if _, err := tx.ExecContext(ctx, `
			UPDATE tags SET thread_count = MAX(thread_count - 1, 0)
			WHERE id IN (SELECT tag_id FROM thread_tags WHERE thread_id = ?)`,
			threadID,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM threads WHERE id = ?`, threadID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE meta SET thread_count = MAX(thread_count - 1, 0),
				storage_used = MAX(storage_used - ?, 0)
			WHERE id = 1`, size,
		); err != nil {
			return err
		}

		return appendChange(ctx, tx, domain.ChangeOpDelete, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("thread deleted", "thread_id", threadID)
	}
	return nil
}

// MoveThreadToCollection reassigns a thread to another collection.
func (s *Store) MoveThreadToCollection(ctx context.Context, threadID, collectionID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT collection_id FROM thread_collections WHERE thread_id = ?`,
			threadID).Scan(&current)
		if err == sql.ErrNoRows {
			return errors.NotFoundf("thread %s not found", threadID)
		}
		if err != nil {
			return err
		}

		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM collections WHERE id = ?`, collectionID).Scan(&exists)
		if err == sql.ErrNoRows {
			return errors.NotFoundf("collection %s not found", collectionID)
		}
		if err != nil {
			return err
		}

		if current == collectionID {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE thread_collections SET collection_id = ? WHERE thread_id = ?`,
			collectionID, threadID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE threads SET last_modified = ? WHERE id = ?`,
			formatTime(time.Now()), threadID); err != nil {
			return err
		}

		return appendChange(ctx, tx, domain.ChangeOpMove, domain.ChangeEntityThread, threadID)
	})
}
