package seeder

import (
	"context"
	"database/sql"
	"fmt"

	"mangaseed/pkg/models"
)

// UserRepo persists user seed records. Natural key: username.
type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

// FindIDByUsername returns the existing row id, or "" when absent.
func (r *UserRepo) FindIDByUsername(ctx context.Context, username string) (string, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id FROM users WHERE username = ?
	`, username)

	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("find user by username: %w", err)
	}
	return id, nil
}

func (r *UserRepo) Insert(ctx context.Context, id string, u models.UserSeed, passwordHash, avatarPath string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, display_name, avatar_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, u.Username, nullString(u.Email), passwordHash, nullString(u.DisplayName), nullString(avatarPath))
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	return nil
}

// Update refreshes the mutable fields. The stored credential is left
// alone: a re-run must not silently rotate passwords.
func (r *UserRepo) Update(ctx context.Context, id string, u models.UserSeed, avatarPath string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET email = ?, display_name = ?, avatar_path = ?
		WHERE id = ?
	`, nullString(u.Email), nullString(u.DisplayName), nullString(avatarPath), id)
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.Username, err)
	}
	return nil
}

func nullString(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}
