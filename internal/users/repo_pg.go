package users

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new user.
func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `INSERT INTO users (id, created_at) VALUES ($1, $2)`
	_, err := r.DB.ExecContext(ctx, query, user.ID, user.CreatedAt)
	return err
}

// GetByID returns a user by ID.
func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `SELECT id, created_at FROM users WHERE id = $1 LIMIT 1`
	var u User
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

var _ Repo = (*PGRepo)(nil)
