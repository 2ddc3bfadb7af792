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

package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountLocked      = errors.New("account is locked")
)

// User is an authentication identity. Tenancy never hangs off the user
// itself: a user gains tenant scope only through the member record that
// links to it, resolved per request by the tenancy resolver.
type User struct {
	ID                  string
	Email               string
	Name                string
	EmailVerified       bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user identity
	Create(ctx context.Context, user *User) error

	// AddCredentials adds credentials for a user
	AddCredentials(ctx context.Context, credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateLockout updates user lockout status
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// GetCredentials retrieves user credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// UpdatePassword updates user password
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
}
