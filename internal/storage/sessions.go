package storage

import (
	"context"
	"fmt"
	"time"

	"spendbook/internal/models"
)

// SessionInfo holds session validation data.
type SessionInfo struct {
	Token        string
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
	Flash        *models.Flash
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	now := time.Now()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt.Unix(), now.Unix(),
	)
	return err
}

// ValidateSessionWithInfo checks if a session token is valid and returns
// session details, including any pending flash notice.
func (db *DB) ValidateSessionWithInfo(ctx context.Context, token string) (*SessionInfo, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.created_at,
			s.last_activity, s.expires_at, s.flash_kind, s.flash_message
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, time.Now().Unix())

	var (
		u                       models.User
		lastActivity, expiresAt int64
		flashKind, flashMessage string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt,
		&lastActivity, &expiresAt, &flashKind, &flashMessage); err != nil {
		return nil, notFound(err)
	}

	info := &SessionInfo{
		Token:        token,
		User:         &u,
		LastActivity: time.Unix(lastActivity, 0),
		ExpiresAt:    time.Unix(expiresAt, 0),
	}
	if flashMessage != "" {
		info.Flash = &models.Flash{Kind: flashKind, Message: flashMessage}
	}
	return info, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		time.Now().Unix(), newExpiresAt.Unix(), token,
	)
	return err
}

// SetFlash stores a notice to be shown on the session's next rendered page.
func (db *DB) SetFlash(ctx context.Context, token string, f models.Flash) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET flash_kind = ?, flash_message = ? WHERE token = ?",
		f.Kind, f.Message, token,
	)
	if err != nil {
		return fmt.Errorf("set flash: %w", err)
	}
	return nil
}

// ClearFlash drops the session's pending notice.
func (db *DB) ClearFlash(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET flash_kind = '', flash_message = '' WHERE token = ?",
		token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and returns how many were removed.
func (db *DB) CleanExpiredSessions(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
