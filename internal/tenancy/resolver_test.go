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

package tenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/churchstack/churchstack/internal/authz"
)

type fakeMembers struct {
	byUser map[string]*Member
	perms  map[string][]string
}

func (f *fakeMembers) Create(ctx context.Context, m *Member, permissions []string) error { return nil }

func (f *fakeMembers) GetByID(ctx context.Context, id string) (*Member, error) {
	return nil, ErrMemberNotFound
}

func (f *fakeMembers) GetByUserID(ctx context.Context, userID string) (*Member, error) {
	m, ok := f.byUser[userID]
	if !ok {
		return nil, ErrActorNotFound
	}
	return m, nil
}

func (f *fakeMembers) GetPermissions(ctx context.Context, memberID string) ([]string, error) {
	return f.perms[memberID], nil
}

func (f *fakeMembers) ReplacePermissions(ctx context.Context, memberID string, newRole *authz.Role, permissions []string) error {
	return nil
}

func (f *fakeMembers) Update(ctx context.Context, m *Member) error { return nil }

type fakeBranchRepo struct {
	byID map[string]*Branch
}

func (f *fakeBranchRepo) Create(ctx context.Context, b *Branch) error { return nil }

func (f *fakeBranchRepo) GetByID(ctx context.Context, id string) (*Branch, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, ErrBranchNotFound
	}
	return b, nil
}

func (f *fakeBranchRepo) ListByChurch(ctx context.Context, churchID string) ([]*Branch, error) {
	return nil, nil
}

// TestPurpose: Validates that actor resolution derives church scope from
// the member's branch ancestry, never from caller input.
// Scope: Unit Test
// Security: Tenant Context Resolution
func TestResolveActor(t *testing.T) {
	members := &fakeMembers{
		byUser: map[string]*Member{
			"user-1": {ID: "member-1", BranchID: "branch-a", Role: authz.RoleCoordinator},
		},
		perms: map[string][]string{
			"member-1": {authz.PermMembersView, authz.PermEventsManage},
		},
	}
	branches := &fakeBranchRepo{byID: map[string]*Branch{
		"branch-a": {ID: "branch-a", ChurchID: "church-1"},
	}}

	resolver := NewResolver(members, branches)
	actor, err := resolver.ResolveActor(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "member-1", actor.MemberID)
	assert.Equal(t, "user-1", actor.UserID)
	assert.Equal(t, authz.RoleCoordinator, actor.Role)
	assert.Equal(t, "branch-a", actor.BranchID)
	assert.Equal(t, "church-1", actor.ChurchID)
	assert.ElementsMatch(t, []string{authz.PermMembersView, authz.PermEventsManage}, actor.Permissions)
}

func TestResolveActor_NoMemberRecord(t *testing.T) {
	resolver := NewResolver(&fakeMembers{byUser: map[string]*Member{}}, &fakeBranchRepo{})

	_, err := resolver.ResolveActor(context.Background(), "billing-only-user")
	assert.ErrorIs(t, err, ErrActorNotFound)
}

func TestResolveActor_BrokenAncestry(t *testing.T) {
	members := &fakeMembers{
		byUser: map[string]*Member{
			"user-1": {ID: "member-1", BranchID: "gone", Role: authz.RoleMember},
		},
	}
	resolver := NewResolver(members, &fakeBranchRepo{byID: map[string]*Branch{}})

	_, err := resolver.ResolveActor(context.Background(), "user-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrActorNotFound, "a dangling branch is an integrity failure, not a missing actor")
}
