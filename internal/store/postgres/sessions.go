package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionsStore persists the server side of bearer tokens. A session id is the
// token's jti, so revoking the row invalidates the token before it expires.
type SessionsStore struct {
	pool *pgxpool.Pool
}

func NewSessionsStore(pool *pgxpool.Pool) *SessionsStore {
	return &SessionsStore{pool: pool}
}

const sessionColumns = `id, user_id, created_at, expires_at, revoked_at`

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		sess    domain.Session
		id      pgtype.UUID
		userID  pgtype.UUID
		revoked pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &sess.CreatedAt, &sess.ExpiresAt, &revoked); err != nil {
		return domain.Session{}, err
	}
	sess.ID = uuidOrEmpty(id)
	sess.UserID = uuidOrEmpty(userID)
	sess.RevokedAt = timestamptzPtr(revoked)
	return sess, nil
}

// CreateSession stores a new token session and returns its id for the jti claim.
func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	q := `
		INSERT INTO sessions (user_id, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + sessionColumns

	sess, err := scanSession(s.pool.QueryRow(ctx, q, userID, expiresAt, nullIfEmpty(ip), nullIfEmpty(userAgent)))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

// GetSession returns a live session. Revoked and expired ones read as not found.
func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	q := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	const q = `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`

	if _, err := s.pool.Exec(ctx, q, sessionID, when); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeOtherSessions signs a user out everywhere except keepID.
func (s *SessionsStore) RevokeOtherSessions(ctx context.Context, userID, keepID string, when time.Time) error {
	const q = `
		UPDATE sessions
		SET revoked_at = $3
		WHERE user_id = $1 AND id <> $2 AND revoked_at IS NULL AND expires_at > $3
	`

	if _, err := s.pool.Exec(ctx, q, userID, keepID, when); err != nil {
		return fmt.Errorf("revoke other sessions: %w", err)
	}
	return nil
}
