package sqlite

import (
	"context"
	"database/sql"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
)

// collectionColumns is the ordered list of columns selected in collection
// queries. Must match the scan order in scanCollection.
const collectionColumns = `id, name, description, color, parent_id, created_at`

func scanCollection(scanner interface{ Scan(dest ...any) error }) (*domain.Collection, error) {
	var (
		c         domain.Collection
		parentID  sql.NullString
		createdAt string
	)

	err := scanner.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &parentID, &createdAt)
	if err != nil {
		return nil, err
	}

	c.ParentID = parentID.String
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	c.ThreadIDs = []string{}
	return &c, nil
}

// loadCollectionThreads fills ThreadIDs for the given collections.
func loadCollectionThreads(ctx context.Context, q querier, collections []*domain.Collection) error {
	if len(collections) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Collection, len(collections))
	for _, c := range collections {
		byID[c.ID] = c
	}

	rows, err := q.QueryContext(ctx,
		`SELECT collection_id, thread_id FROM thread_collections ORDER BY rowid`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var collectionID, threadID string
		if err := rows.Scan(&collectionID, &threadID); err != nil {
			return err
		}
		if c, ok := byID[collectionID]; ok {
			c.ThreadIDs = append(c.ThreadIDs, threadID)
		}
	}
	return rows.Err()
}

// CreateCollection inserts a new collection.
func (s *Store) CreateCollection(ctx context.Context, c *domain.Collection) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO collections (id, name, description, color, parent_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Description, c.Color, nullString(c.ParentID), formatTime(c.CreatedAt),
		)
		if isUniqueViolation(err) {
			return errors.AlreadyExists("collection already exists")
		}
		if err != nil {
			return err
		}
		return appendChange(ctx, tx, domain.ChangeOpSave, domain.ChangeEntityCollection, c.ID)
	})
	if err != nil {
		return err
	}
	if c.ThreadIDs == nil {
		c.ThreadIDs = []string{}
	}
	return nil
}

// GetCollection retrieves a collection by ID with its membership list.
func (s *Store) GetCollection(ctx context.Context, collectionID string) (*domain.Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, collectionID)

	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("collection %s not found", collectionID)
	}
	if err != nil {
		return nil, err
	}

	if err := loadCollectionThreads(ctx, s.db, []*domain.Collection{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCollections returns all collections, the default one first, the
// rest in creation order.
func (s *Store) ListCollections(ctx context.Context) ([]*domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+collectionColumns+` FROM collections
		ORDER BY (id = ?) DESC, created_at ASC`, domain.DefaultCollectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []*domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadCollectionThreads(ctx, s.db, collections); err != nil {
		return nil, err
	}
	return collections, nil
}

// UpdateCollection writes back a modified collection record. Membership
// is managed through the thread operations, not here.
func (s *Store) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE collections SET name = ?, description = ?, color = ?, parent_id = ?
			WHERE id = ?`,
			c.Name, c.Description, c.Color, nullString(c.ParentID), c.ID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NotFoundf("collection %s not found", c.ID)
		}
		return appendChange(ctx, tx, domain.ChangeOpUpdate, domain.ChangeEntityCollection, c.ID)
	})
}

// DeleteCollection removes a collection, reassigning its member threads
// to the default collection in the same transaction. The default
// collection itself can never be deleted.
func (s *Store) DeleteCollection(ctx context.Context, collectionID string) error {
	if collectionID == domain.DefaultCollectionID {
		return errors.Forbidden("the default collection cannot be deleted")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM collections WHERE id = ?`, collectionID).Scan(&exists)
		if err == sql.ErrNoRows {
			return errors.NotFoundf("collection %s not found", collectionID)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE thread_collections SET collection_id = ? WHERE collection_id = ?`,
			domain.DefaultCollectionID, collectionID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM collections WHERE id = ?`, collectionID); err != nil {
			return err
		}

		return appendChange(ctx, tx, domain.ChangeOpDelete, domain.ChangeEntityCollection, collectionID)
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("collection deleted", "collection_id", collectionID)
	}
	return nil
}
