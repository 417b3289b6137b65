package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/nucmed-tracker/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository over SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool, helper: NewQueryHelper(pool)}
}

// CreateSession inserts a new session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO sessions (id, user_id, token, expires_at, created_at, updated_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		encodeTime(session.ExpiresAt),
		encodeTime(session.CreatedAt),
		encodeTime(session.UpdatedAt),
		encodeTimePtr(session.RevokedAt),
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

const sessionColumns = `id, user_id, token, expires_at, created_at, updated_at, revoked_at`

// GetSession retrieves a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, token)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, err
	}
	return session, nil
}

// RevokeSession marks the session revoked and returns the updated record.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	query := `
		UPDATE sessions
		SET revoked_at = ?, updated_at = ?
		WHERE token = ? AND revoked_at IS NULL
	`
	if _, err := r.helper.Exec(ctx, query, encodeTime(revokedAt), encodeTime(revokedAt), token); err != nil {
		return persistence.Session{}, mapError(err)
	}
	// Revoking an already revoked session is a no-op; the read below returns
	// the stored state either way, or ErrNotFound for unknown tokens.
	return r.GetSession(ctx, token)
}

// DeleteExpiredSessions removes sessions whose expiry lies at or before the
// reference instant.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, encodeTime(reference))
	return mapError(err)
}

func scanSession(scanner rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var expiresAt, createdAt, updatedAt string
	var revokedAt sql.NullString

	if err := scanner.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
		&updatedAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, err
		}
		return persistence.Session{}, mapError(err)
	}

	var err error
	if session.ExpiresAt, err = decodeTime(expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = decodeTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = decodeTimePtr(revokedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}
