package badger

import (
	"context"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
)

// The store is single-tenant: one owner account stored as a singleton.
// The quota check only reads its premium flag.

// CreateAccount registers the owner account. Fails once an account exists.
func (s *Store) CreateAccount(ctx context.Context, u *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get([]byte(accountKey)); err == nil {
			return errors.AlreadyExists("an account is already registered")
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return setInTxn(txn, accountKey, u)
	})
}

// GetAccount returns the owner account.
func (s *Store) GetAccount(ctx context.Context) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var u domain.User
	err := s.get(accountKey, &u)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, errors.NotFound("no account registered")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetAccountByEmail returns the owner account when the email matches,
// case-insensitively. Used by the login path.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(u.Email, email) {
		return nil, errors.NotFound("no account with that email")
	}
	return u, nil
}

// UpdateAccount writes back the owner account record.
func (s *Store) UpdateAccount(ctx context.Context, u *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get([]byte(accountKey)); errors.Is(err, badgerdb.ErrKeyNotFound) {
			return errors.NotFound("no account registered")
		} else if err != nil {
			return err
		}
		return setInTxn(txn, accountKey, u)
	})
}

// isPremiumInTxn reads the owner's premium flag inside an open
// transaction. A missing account means free tier.
func (s *Store) isPremiumInTxn(txn *badgerdb.Txn) (bool, error) {
	var u domain.User
	err := getInTxn(txn, accountKey, &u)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsPremium, nil
}

// Session persistence. The refresh token hash gets a secondary index so
// token refresh does not scan all sessions.

// CreateSession stores a new auth session.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := setInTxn(txn, sessionPrefix+sess.ID, sess); err != nil {
			return err
		}
		return txn.Set([]byte(sessionTokenIdx+sess.RefreshTokenHash), []byte(sess.ID))
	})
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sess domain.Session
	err := s.get(sessionPrefix+sessionID, &sess)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, errors.NotFoundf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSessionByRefreshToken looks a session up by its refresh token hash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sess domain.Session
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(sessionTokenIdx + tokenHash))
		if err != nil {
			return err
		}
		var sessionID string
		if err := item.Value(func(val []byte) error {
			sessionID = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getInTxn(txn, sessionPrefix+sessionID, &sess)
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, errors.NotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session and its token index entry.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		var sess domain.Session
		if err := getInTxn(txn, sessionPrefix+sessionID, &sess); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return errors.NotFoundf("session %s not found", sessionID)
			}
			return err
		}

		if err := txn.Delete([]byte(sessionPrefix + sessionID)); err != nil {
			return err
		}
		err := txn.Delete([]byte(sessionTokenIdx + sess.RefreshTokenHash))
		if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// DeleteAllSessions logs the owner out everywhere.
func (s *Store) DeleteAllSessions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		var sessions []*domain.Session
		if err := iteratePrefix(txn, sessionPrefix, s.logger, func(sess *domain.Session) {
			sessions = append(sessions, sess)
		}); err != nil {
			return err
		}

		for _, sess := range sessions {
			if err := txn.Delete([]byte(sessionPrefix + sess.ID)); err != nil {
				return err
			}
			err := txn.Delete([]byte(sessionTokenIdx + sess.RefreshTokenHash))
			if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
}

// DeleteExpiredSessions prunes lapsed sessions, returning how many were
// removed. Called periodically by the session janitor.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var expired []*domain.Session
		if err := iteratePrefix(txn, sessionPrefix, s.logger, func(sess *domain.Session) {
			if sess.IsExpired() {
				expired = append(expired, sess)
			}
		}); err != nil {
			return err
		}

		for _, sess := range expired {
			if err := txn.Delete([]byte(sessionPrefix + sess.ID)); err != nil {
				return err
			}
			err := txn.Delete([]byte(sessionTokenIdx + sess.RefreshTokenHash))
			if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// GetPrefs returns the preferences singleton.
func (s *Store) GetPrefs(ctx context.Context) (*domain.UserPrefs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p domain.UserPrefs
	if err := s.get(prefsKey, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePrefs replaces the preferences singleton.
func (s *Store) UpdatePrefs(ctx context.Context, p *domain.UserPrefs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set(prefsKey, p)
}
