package sqlite

import (
	"context"
	"database/sql"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `id, name, color, created_at, thread_count`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t         domain.Tag
		createdAt string
	)

	err := scanner.Scan(&t.ID, &t.Name, &t.Color, &createdAt, &t.ThreadCount)
	if err != nil {
		return nil, err
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTag inserts a new tag with a zero thread count.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	t.ThreadCount = 0
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tags (id, name, color, created_at, thread_count)
			VALUES (?, ?, ?, ?, 0)`,
			t.ID, t.Name, t.Color, formatTime(t.CreatedAt),
		)
		if isUniqueViolation(err) {
			return errors.AlreadyExists("tag already exists")
		}
		if err != nil {
			return err
		}
		return appendChange(ctx, tx, domain.ChangeOpSave, domain.ChangeEntityTag, t.ID)
	})
}

// GetTag retrieves a tag by ID.
func (s *Store) GetTag(ctx context.Context, tagID string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE id = ?`, tagID)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("tag %s not found", tagID)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTags returns all tags ordered by thread count (descending), then
// name for stability.
func (s *Store) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags ORDER BY thread_count DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// UpdateTag writes back a modified tag record. The stored thread count
// wins over whatever the caller set.
func (s *Store) UpdateTag(ctx context.Context, t *domain.Tag) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tags SET name = ?, color = ? WHERE id = ?`,
			t.Name, t.Color, t.ID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NotFoundf("tag %s not found", t.ID)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT thread_count FROM tags WHERE id = ?`, t.ID).Scan(&t.ThreadCount); err != nil {
			return err
		}

		return appendChange(ctx, tx, domain.ChangeOpUpdate, domain.ChangeEntityTag, t.ID)
	})
}

// DeleteTag removes a tag; the thread_tags cascade strips it from every
// thread that references it.
func (s *Store) DeleteTag(ctx context.Context, tagID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, tagID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NotFoundf("tag %s not found", tagID)
		}
		return appendChange(ctx, tx, domain.ChangeOpDelete, domain.ChangeEntityTag, tagID)
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
// attachment was new. Idempotent; the counter increments only when it was.
func (s *Store) AddTagToThread(ctx context.Context, threadID, tagID string) (bool, error) {
	attached := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM threads WHERE id = ?`, threadID,
			errors.NotFoundf("thread %s not found", threadID)); err != nil {
			return err
		}
		if err := requireRow(ctx, tx, `SELECT 1 FROM tags WHERE id = ?`, tagID,
			errors.NotFoundf("tag %s not found", tagID)); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO thread_tags (thread_id, tag_id) VALUES (?, ?)`,
			threadID, tagID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil // already tagged
		}
		attached = true

		if _, err := tx.ExecContext(ctx,
			`UPDATE tags SET thread_count = thread_count + 1 WHERE id = ?`, tagID); err != nil {
			return err
		}

		return appendChange(ctx, tx, domain.ChangeOpTagAdd, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return false, err
	}
	return attached, nil
}

// RemoveTagFromThread detaches a tag from a thread, reporting whether the
// attachment existed. Idempotent; the counter decrements only when it
// did, floored at zero.
func (s *Store) RemoveTagFromThread(ctx context.Context, threadID, tagID string) (bool, error) {
	detached := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM threads WHERE id = ?`, threadID,
			errors.NotFoundf("thread %s not found", threadID)); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM thread_tags WHERE thread_id = ? AND tag_id = ?`,
			threadID, tagID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil // wasn't tagged
		}
		detached = true

		if _, err := tx.ExecContext(ctx,
			`UPDATE tags SET thread_count = MAX(thread_count - 1, 0) WHERE id = ?`, tagID); err != nil {
			return err
		}

		return appendChange(ctx, tx, domain.ChangeOpTagRemove, domain.ChangeEntityThread, threadID)
	})
	if err != nil {
		return false, err
	}
	return detached, nil
}

// requireRow returns notFound when the query yields no row.
func requireRow(ctx context.Context, q querier, query, arg string, notFound error) error {
	var one int
	err := q.QueryRowContext(ctx, query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return notFound
	}
	return err
}
