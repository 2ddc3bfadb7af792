// Copyright 2026 The ChurchStack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/churchstack/churchstack/internal/identity"
)

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user identity
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, email_verified, failed_login_attempts, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, strings.ToLower(user.Email), user.Name, user.EmailVerified, user.FailedLoginAttempts, user.LockedUntil, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// AddCredentials stores the password hash for a user
func (r *UserRepository) AddCredentials(ctx context.Context, credentials *identity.Credentials) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET password_hash = $2, updated_at = $3
	`, credentials.UserID, credentials.PasswordHash, now)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	credentials.UpdatedAt = now

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*identity.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx, userSelect+`WHERE id = $1`, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	user, err := scanUser(r.db.pool.QueryRow(ctx, userSelect+`WHERE email = $1`, strings.ToLower(email)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// UpdateLockout updates failed attempt count and lockout deadline
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE users SET failed_login_attempts = $1, locked_until = $2, updated_at = now() WHERE id = $3
	`, failedAttempts, lockedUntil, userID)
	if err != nil {
		return fmt.Errorf("failed to update lockout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// GetCredentials retrieves a user's stored password hash
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var credentials identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at FROM credentials WHERE user_id = $1
	`, userID).Scan(&credentials.UserID, &credentials.PasswordHash, &credentials.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	return &credentials, nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE credentials SET password_hash = $1, updated_at = now() WHERE user_id = $2
	`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

const userSelect = `
	SELECT id, email, name, email_verified, failed_login_attempts, locked_until, created_at, updated_at
	FROM users
`

func scanUser(row pgx.Row) (*identity.User, error) {
	var user identity.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.EmailVerified,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &user, nil
}
