// Package auth resolves bearer credentials to user identities and manages
// login sessions. Sessions are opaque random tokens; only a SHA-256 hash is
// stored server-side, and passwords are verified with bcrypt.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mealweek/internal/types"
)

// SessionTTL is how long a login session remains valid.
const SessionTTL = 30 * 24 * time.Hour

// sessionTokenBytes is the entropy of a raw session token.
const sessionTokenBytes = 32

// UserStore is the user data access the service needs.
// Implemented by db.UserRepo.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

// SessionStore is the session data access the service needs.
// Implemented by db.SessionRepo.
type SessionStore interface {
	Create(ctx context.Context, session types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, string, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service implements credential resolution and the login/logout flows.
type Service struct {
	users    UserStore
	sessions SessionStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an auth Service.
func NewService(users UserStore, sessions SessionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// ResolveToken resolves a bearer token to an Actor, or fails closed.
// Expired sessions are deleted eagerly and reported distinctly from invalid
// tokens so clients can prompt re-login instead of treating it as a bug.
func (s *Service) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "bearer token is required", nil)
	}

	session, email, err := s.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}

	if !session.ExpiresAt.After(s.now()) {
		// Best-effort cleanup; the expiry verdict stands either way.
		if delErr := s.sessions.Delete(ctx, session.TokenHash); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session",
				slog.String("user_id", session.UserID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "session has expired", nil)
	}

	return &types.Actor{UserID: session.UserID, Email: email}, nil
}

// Login verifies the email/password pair and mints a new session. The raw
// token is returned exactly once; only its hash is stored.
//
// Unknown emails and wrong passwords produce the same auth_invalid_credentials
// error so the endpoint does not leak which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (token string, expiresAt time.Time, err error) {
	invalidCreds := types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			return "", time.Time{}, invalidCreds
		}
		return "", time.Time{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, invalidCreds
	}

	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}
	token = hex.EncodeToString(raw)
	expiresAt = s.now().Add(SessionTTL)

	if err := s.sessions.Create(ctx, types.Session{
		TokenHash: HashToken(token),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", time.Time{}, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return token, expiresAt, nil
}

// Logout deletes the session for the given bearer token. Unknown tokens are
// a no-op: logout must be idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, HashToken(token))
}

// PruneExpiredSessions removes all sessions whose expiry has passed.
// ResolveToken already deletes expired sessions it encounters; this sweeps
// the ones that are never presented again. Returns the number removed.
func (s *Service) PruneExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "pruned expired sessions",
			slog.Int64("removed", removed),
		)
	}
	return removed, nil
}

// HashToken returns the hex SHA-256 digest used to store and look up
// session tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
