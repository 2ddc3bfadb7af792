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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/churchstack/churchstack/internal/audit"
)

func testHasher() *PasswordHasher {
	// Low-cost parameters keep the test fast; production values come from
	// config.
	return NewPasswordHasher(16*1024, 1, 1, 16, 32)
}

// TestPurpose: Validates the Argon2id hash round trip and its encoded
// format, and that verification rejects a wrong password.
// Scope: Unit Test
// Security: Credential Storage (CWE-916)
func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher := testHasher()

	encoded, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v="))

	ok, err := hasher.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_SaltVariance(t *testing.T) {
	hasher := testHasher()

	a, err := hasher.Hash("same password")
	require.NoError(t, err)
	b, err := hasher.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each hash must draw a fresh salt")
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	hasher := testHasher()

	_, err := hasher.Verify("whatever", "not-a-hash")
	assert.Error(t, err)

	_, err = hasher.Verify("whatever", "$bcrypt$v=19$m=1,t=1,p=1$a$b")
	assert.Error(t, err)
}

type userStore struct {
	users       map[string]*User
	credentials map[string]*Credentials
	lockouts    int
}

func newUserStore() *userStore {
	return &userStore{
		users:       make(map[string]*User),
		credentials: make(map[string]*Credentials),
	}
}

func (s *userStore) Create(ctx context.Context, user *User) error {
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrUserAlreadyExists
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *userStore) AddCredentials(ctx context.Context, credentials *Credentials) error {
	s.credentials[credentials.UserID] = credentials
	return nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *userStore) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	s.lockouts++
	return nil
}

func (s *userStore) GetCredentials(ctx context.Context, userID string) (*Credentials, error) {
	c, ok := s.credentials[userID]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}

func (s *userStore) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	c, ok := s.credentials[userID]
	if !ok {
		return ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

type nopAudit struct{}

func (nopAudit) Log(ctx context.Context, event audit.Event) {}

func newTestService(store *userStore) *Service {
	return NewService(store, testHasher(), nopAudit{}, 3, 15*time.Minute)
}

func TestProvisionIdentity(t *testing.T) {
	store := newUserStore()
	svc := newTestService(store)

	user, err := svc.ProvisionIdentity(context.Background(), "a@example.com", "Ana")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	_, err = svc.ProvisionIdentity(context.Background(), "a@example.com", "Ana Again")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = svc.ProvisionIdentity(context.Background(), "not-an-email", "X")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestAuthenticate(t *testing.T) {
	store := newUserStore()
	svc := newTestService(store)

	user, err := svc.ProvisionIdentity(context.Background(), "a@example.com", "Ana")
	require.NoError(t, err)
	require.NoError(t, svc.AddPassword(context.Background(), user.ID, "long enough password"))

	got, err := svc.Authenticate(context.Background(), "a@example.com", "long enough password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// TestPurpose: Validates the lockout counter: the account locks after the
// configured number of failures and a successful login resets the counter.
// Scope: Unit Test
// Security: Brute Force Protection (CWE-307)
func TestAuthenticate_Lockout(t *testing.T) {
	store := newUserStore()
	svc := newTestService(store)

	user, err := svc.ProvisionIdentity(context.Background(), "a@example.com", "Ana")
	require.NoError(t, err)
	require.NoError(t, svc.AddPassword(context.Background(), user.ID, "long enough password"))

	for i := 0; i < 3; i++ {
		_, err = svc.Authenticate(context.Background(), "a@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err = svc.Authenticate(context.Background(), "a@example.com", "long enough password")
	assert.ErrorIs(t, err, ErrAccountLocked, "even the correct password is rejected while locked")

	// Simulate the lockout window elapsing.
	store.users[user.ID].LockedUntil = nil
	store.users[user.ID].FailedLoginAttempts = 0

	got, err := svc.Authenticate(context.Background(), "a@example.com", "long enough password")
	require.NoError(t, err)
	assert.Equal(t, 0, got.FailedLoginAttempts)
}

func TestAddPassword_Weak(t *testing.T) {
	store := newUserStore()
	svc := newTestService(store)

	err := svc.AddPassword(context.Background(), "u1", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestChangePassword(t *testing.T) {
	store := newUserStore()
	svc := newTestService(store)

	user, err := svc.ProvisionIdentity(context.Background(), "a@example.com", "Ana")
	require.NoError(t, err)
	require.NoError(t, svc.AddPassword(context.Background(), user.ID, "original password"))

	err = svc.ChangePassword(context.Background(), user.ID, "wrong old", "replacement pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(context.Background(), user.ID, "original password", "tiny")
	assert.ErrorIs(t, err, ErrWeakPassword)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "original password", "replacement pass"))

	_, err = svc.Authenticate(context.Background(), "a@example.com", "replacement pass")
	assert.NoError(t, err)
}
