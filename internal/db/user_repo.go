package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"mealweek/internal/types"
)

// UserRepo provides data access for the users table. Only the minimal
// surface the identity flow needs is implemented; account management beyond
// login is out of scope.
type UserRepo struct {
	db DBTX
}

// NewUserRepo creates a UserRepo backed by the given database connection.
func NewUserRepo(db DBTX) *UserRepo {
	return &UserRepo{db: db}
}

// GetByEmail returns the user with the given email, or not_found_user.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	var u types.User
	err := r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read user", err)
	}
	return &u, nil
}
