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
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/churchstack/churchstack/internal/audit"
	"github.com/churchstack/churchstack/internal/id"
	"golang.org/x/crypto/argon2"
)

// PasswordHasher handles password hashing using Argon2id
type PasswordHasher struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewPasswordHasher creates a new password hasher with Argon2id
func NewPasswordHasher(memory, iterations uint32, parallelism uint8, saltLength, keyLength uint32) *PasswordHasher {
	return &PasswordHasher{
		memory:      memory,
		iterations:  iterations,
		parallelism: parallelism,
		saltLength:  saltLength,
		keyLength:   keyLength,
	}
}

// Hash hashes a password using Argon2id
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		h.iterations,
		h.memory,
		h.parallelism,
		h.keyLength,
	)

	// Encode as: $argon2id$v=19$m=memory,t=iterations,p=parallelism$salt$hash
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.iterations,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify verifies a password against an encoded hash
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	// Format: $argon2id$v=19$m=65536,t=3,p=4$salt$hash
	sections := strings.Split(strings.TrimPrefix(encodedHash, "$"), "$")
	if len(sections) != 5 || sections[0] != "argon2id" {
		return false, fmt.Errorf("invalid hash format: got %d sections", len(sections))
	}

	var version int
	if _, err := fmt.Sscanf(sections[1], "v=%d", &version); err != nil {
		return false, fmt.Errorf("invalid version: %w", err)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("invalid parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	actualHash := argon2.IDKey(
		[]byte(password),
		salt,
		iterations,
		memory,
		parallelism,
		uint32(len(expectedHash)),
	)

	return subtle.ConstantTimeCompare(actualHash, expectedHash) == 1, nil
}

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
	}
}

// ProvisionIdentity creates a new user identity without credentials
func (s *Service) ProvisionIdentity(ctx context.Context, email, name string) (*User, error) {
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}

	user := &User{
		ID:    id.NewUUIDv7(),
		Email: email,
		Name:  name,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return user, nil
}

// AddPassword adds a password credential to an existing user
func (s *Service) AddPassword(ctx context.Context, userID, password string) error {
	if !isStrongPassword(password) {
		return ErrWeakPassword
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	credentials := &Credentials{
		UserID:       userID,
		PasswordHash: passwordHash,
	}

	if err := s.repo.AddCredentials(ctx, credentials); err != nil {
		return fmt.Errorf("failed to add credentials: %w", err)
	}

	return nil
}

// Authenticate authenticates a user with email and password
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		// Audit failed attempt (unknown user)
		s.auditLogger.Log(ctx, audit.Event{
			Type:       audit.TypeLoginFailed,
			EntityType: audit.EntityUser,
			Metadata:   map[string]any{audit.AttrReason: "user_not_found", audit.AttrEmail: email},
		})
		return nil, ErrInvalidCredentials
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:       audit.TypeLoginFailed,
			ActorID:    user.ID,
			EntityType: audit.EntityUser,
			EntityID:   user.ID,
			Metadata:   map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		newAttempts := user.FailedLoginAttempts + 1
		var newLockedUntil *time.Time

		if newAttempts >= s.lockoutMaxAttempts {
			until := time.Now().Add(s.lockoutDuration)
			newLockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:       audit.TypeUserLocked,
				ActorID:    user.ID,
				EntityType: audit.EntityUser,
				EntityID:   user.ID,
				Metadata:   map[string]any{audit.AttrAttempts: newAttempts},
			})
		}

		_ = s.repo.UpdateLockout(ctx, user.ID, newAttempts, newLockedUntil)

		s.auditLogger.Log(ctx, audit.Event{
			Type:       audit.TypeLoginFailed,
			ActorID:    user.ID,
			EntityType: audit.EntityUser,
			EntityID:   user.ID,
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: newAttempts,
			},
		})

		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		_ = s.repo.UpdateLockout(ctx, user.ID, 0, nil)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeLoginSuccess,
		ActorID:    user.ID,
		EntityType: audit.EntityUser,
		EntityID:   user.ID,
	})

	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword changes user password
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	credentials, err := s.repo.GetCredentials(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	valid, err := s.hasher.Verify(oldPassword, credentials.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	if !isStrongPassword(newPassword) {
		return ErrWeakPassword
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, userID, newHash)
}

// Helper functions
func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && len(email) < 255
}

func isStrongPassword(password string) bool {
	// Password must be at least 8 characters
	return len(password) >= 8
}
