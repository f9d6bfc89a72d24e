package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
)

// The store is single-tenant: one owner row in account.

const accountColumns = `id, email, password_hash, display_name, is_premium, created_at, last_login_at`

func scanAccount(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u           domain.User
		isPremium   int
		createdAt   string
		lastLoginAt sql.NullString
	)

	err := scanner.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&isPremium, &createdAt, &lastLoginAt)
	if err != nil {
		return nil, err
	}

	u.IsPremium = isPremium != 0
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if lastLoginAt.Valid {
		if u.LastLoginAt, err = parseTime(lastLoginAt.String); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// CreateAccount registers the owner account. Fails once an account exists.
func (s *Store) CreateAccount(ctx context.Context, u *domain.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM account`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return errors.AlreadyExists("an account is already registered")
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO account (id, email, password_hash, display_name, is_premium, created_at, last_login_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Email, u.PasswordHash, u.DisplayName, boolInt(u.IsPremium),
			formatTime(u.CreatedAt), nullZeroTime(u.LastLoginAt),
		)
		return err
	})
}

// GetAccount returns the owner account.
func (s *Store) GetAccount(ctx context.Context) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM account LIMIT 1`)

	u, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("no account registered")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetAccountByEmail returns the owner account when the email matches,
// case-insensitively.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM account WHERE email = ? COLLATE NOCASE`, email)

	u, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("no account with that email")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateAccount writes back the owner account record.
func (s *Store) UpdateAccount(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE account SET email = ?, password_hash = ?, display_name = ?,
			is_premium = ?, last_login_at = ?
		WHERE id = ?`,
		u.Email, u.PasswordHash, u.DisplayName, boolInt(u.IsPremium),
		nullZeroTime(u.LastLoginAt), u.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("no account registered")
	}
	return nil
}

const sessionColumns = `id, user_id, refresh_token_hash, created_at, expires_at`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var (
		sess      domain.Session
		createdAt string
		expiresAt string
	)

	err := scanner.Scan(&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &sess, nil
}

// CreateSession stores a new auth session.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.RefreshTokenHash,
		formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt),
	)
	return err
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSessionByRefreshToken looks a session up by its refresh token hash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, tokenHash)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("session %s not found", sessionID)
	}
	return nil
}

// DeleteAllSessions logs the owner out everywhere.
func (s *Store) DeleteAllSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	return err
}

// DeleteExpiredSessions prunes lapsed sessions, returning how many were
// removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// GetPrefs returns the preferences singleton.
func (s *Store) GetPrefs(ctx context.Context) (*domain.UserPrefs, error) {
	var (
		p              domain.UserPrefs
		autoCapture    int
		showSaveButton int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT theme, default_export_format, auto_capture, show_save_button
		FROM prefs WHERE id = 1`).
		Scan(&p.Theme, &p.DefaultExportFormat, &autoCapture, &showSaveButton)
	if err != nil {
		return nil, err
	}
	p.AutoCapture = autoCapture != 0
	p.ShowSaveButton = showSaveButton != 0
	return &p, nil
}

// UpdatePrefs replaces the preferences singleton.
func (s *Store) UpdatePrefs(ctx context.Context, p *domain.UserPrefs) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE prefs SET theme = ?, default_export_format = ?, auto_capture = ?, show_save_button = ?
		WHERE id = 1`,
		p.Theme, p.DefaultExportFormat, boolInt(p.AutoCapture), boolInt(p.ShowSaveButton),
	)
	return err
}
