package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"mealweek/internal/types"
)

// SessionRepo provides data access for the sessions table. Sessions are
// stored by token hash only; the raw bearer token never touches the
// database.
type SessionRepo struct {
	db DBTX
}

// NewSessionRepo creates a SessionRepo backed by the given database connection.
func NewSessionRepo(db DBTX) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, session types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		session.TokenHash,
		session.UserID,
		session.ExpiresAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}
	return nil
}

// GetByTokenHash returns the session for the hashed token, joined with the
// owner's email, or auth_token_invalid when no such session exists.
func (r *SessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, string, error) {
	var (
		session types.Session
		email   string
	)
	err := r.db.QueryRow(ctx,
		`SELECT s.token_hash, s.user_id, s.expires_at, s.created_at, u.email
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = $1`,
		tokenHash,
	).Scan(&session.TokenHash, &session.UserID, &session.ExpiresAt, &session.CreatedAt, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "session not found", err)
	}
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalDB, "failed to read session", err)
	}
	return &session, email, nil
}

// Delete removes the session for the hashed token. Deleting an already
// absent session is a no-op.
func (r *SessionRepo) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before the cutoff. Returns the
// number of rows removed.
func (r *SessionRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune sessions", err)
	}
	return tag.RowsAffected(), nil
}
