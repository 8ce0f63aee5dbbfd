package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/reelkeep/apiserver/types"
)

// SessionRepository handles persistence for sessions. Sessions are keyed by
// the hash of the client token, never the token itself.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) error {
	const query = `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		session.TokenHash,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
	)
	return err
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (types.Session, error) {
	const query = `
		SELECT token_hash, user_id, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1`
	var session types.Session
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, err
	}
	return session, nil
}

// Delete removes a session. Deleting an absent session is not an error, so
// logout is safely repeatable.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	const query = `DELETE FROM sessions WHERE token_hash = $1`
	_, err := r.db.ExecContext(ctx, query, tokenHash)
	return err
}

// DeleteExpired prunes all sessions past their expiry and reports how many
// rows were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= now()`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
