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

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates the role assignment matrix over every actor/target
// pair so no combination falls through to an undefined outcome.
// Scope: Unit Test
// Expected: ADMINGERAL is never assignable; coordinators only produce
// members; members assign nothing; everything else is allowed.
func TestCanAssignRole_FullMatrix(t *testing.T) {
	allowed := map[Role]map[Role]bool{
		RoleAdminGeneral: {RoleAdminBranch: true, RoleCoordinator: true, RoleMember: true},
		RoleAdminBranch:  {RoleAdminBranch: true, RoleCoordinator: true, RoleMember: true},
		RoleCoordinator:  {RoleMember: true},
		RoleMember:       {},
	}

	for _, actor := range Roles {
		for _, target := range Roles {
			denied := CanAssignRole(actor, target)
			if allowed[actor][target] {
				assert.Nil(t, denied, "%s assigning %s should be allowed", actor, target)
			} else {
				require.NotNil(t, denied, "%s assigning %s should be denied", actor, target)
				assert.Equal(t, DenyRoleHierarchy, denied.Code)
			}
		}
	}
}

func TestCanAssignRole_DistinctAdminGeneralWording(t *testing.T) {
	// A branch admin trying to mint an ADMINGERAL gets its own message,
	// distinct from the generic system-only denial.
	byBranchAdmin := CanAssignRole(RoleAdminBranch, RoleAdminGeneral)
	require.NotNil(t, byBranchAdmin)
	assert.Equal(t, "branch administrators cannot assign the general administrator role", byBranchAdmin.Reason)

	byGeneralAdmin := CanAssignRole(RoleAdminGeneral, RoleAdminGeneral)
	require.NotNil(t, byGeneralAdmin)
	assert.Equal(t, "ADMINGERAL is a system-only role and cannot be assigned", byGeneralAdmin.Reason)

	assert.NotEqual(t, byBranchAdmin.Reason, byGeneralAdmin.Reason)
}

// TestPurpose: Validates tenant isolation ordering: a cross-church target
// is always reported as a tenant mismatch against the church, not as an
// own-branch restriction.
// Scope: Unit Test
// Security: Tenant Isolation
func TestCanCreateMemberInBranch(t *testing.T) {
	branchAdmin := &Actor{
		MemberID: "m1",
		Role:     RoleAdminBranch,
		BranchID: "branch-a",
		ChurchID: "church-1",
	}

	tests := []struct {
		name         string
		actor        *Actor
		targetBranch string
		targetChurch string
		wantCode     DenyCode
		wantReason   string
	}{
		{
			name:         "branch admin in own branch",
			actor:        branchAdmin,
			targetBranch: "branch-a",
			targetChurch: "church-1",
		},
		{
			name:         "branch admin in sibling branch",
			actor:        branchAdmin,
			targetBranch: "branch-b",
			targetChurch: "church-1",
			wantCode:     DenyTenantMismatch,
			wantReason:   "may only create members in own branch",
		},
		{
			name:         "branch admin across churches",
			actor:        branchAdmin,
			targetBranch: "branch-x",
			targetChurch: "church-2",
			wantCode:     DenyTenantMismatch,
			wantReason:   "target branch belongs to another church",
		},
		{
			name: "general admin in any branch of own church",
			actor: &Actor{
				MemberID: "m2",
				Role:     RoleAdminGeneral,
				BranchID: "branch-a",
				ChurchID: "church-1",
			},
			targetBranch: "branch-b",
			targetChurch: "church-1",
		},
		{
			name: "general admin across churches",
			actor: &Actor{
				MemberID: "m2",
				Role:     RoleAdminGeneral,
				BranchID: "branch-a",
				ChurchID: "church-1",
			},
			targetBranch: "branch-x",
			targetChurch: "church-2",
			wantCode:     DenyTenantMismatch,
			wantReason:   "target branch belongs to another church",
		},
		{
			name: "coordinator with explicit grant in own branch",
			actor: &Actor{
				MemberID:    "m3",
				Role:        RoleCoordinator,
				BranchID:    "branch-a",
				ChurchID:    "church-1",
				Permissions: []string{PermMembersManage},
			},
			targetBranch: "branch-a",
			targetChurch: "church-1",
		},
		{
			name: "coordinator without grant",
			actor: &Actor{
				MemberID: "m3",
				Role:     RoleCoordinator,
				BranchID: "branch-a",
				ChurchID: "church-1",
			},
			targetBranch: "branch-a",
			targetChurch: "church-1",
			wantCode:     DenyInsufficientPermission,
			wantReason:   "missing permission: " + PermMembersManage,
		},
		{
			name: "permission tier reported before tenancy for unprivileged cross-church actor",
			actor: &Actor{
				MemberID: "m4",
				Role:     RoleMember,
				BranchID: "branch-a",
				ChurchID: "church-1",
			},
			targetBranch: "branch-x",
			targetChurch: "church-2",
			wantCode:     DenyInsufficientPermission,
			wantReason:   "missing permission: " + PermMembersManage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			denied := CanCreateMemberInBranch(tt.actor, tt.targetBranch, tt.targetChurch)
			if tt.wantCode == "" {
				assert.Nil(t, denied)
				return
			}
			require.NotNil(t, denied)
			assert.Equal(t, tt.wantCode, denied.Code)
			assert.Equal(t, tt.wantReason, denied.Reason)
		})
	}
}

func TestCanEditMember(t *testing.T) {
	tests := []struct {
		name     string
		actor    *Actor
		target   MemberRef
		wantCode DenyCode
	}{
		{
			name:   "general admin edits anyone in own church",
			actor:  &Actor{MemberID: "m1", Role: RoleAdminGeneral, BranchID: "b1", ChurchID: "c1"},
			target: MemberRef{ID: "m9", BranchID: "b2", ChurchID: "c1"},
		},
		{
			name:     "general admin blocked across churches",
			actor:    &Actor{MemberID: "m1", Role: RoleAdminGeneral, BranchID: "b1", ChurchID: "c1"},
			target:   MemberRef{ID: "m9", BranchID: "bx", ChurchID: "c2"},
			wantCode: DenyTenantMismatch,
		},
		{
			name:   "branch admin edits own branch",
			actor:  &Actor{MemberID: "m2", Role: RoleAdminBranch, BranchID: "b1", ChurchID: "c1"},
			target: MemberRef{ID: "m9", BranchID: "b1", ChurchID: "c1"},
		},
		{
			name:     "branch admin blocked in sibling branch",
			actor:    &Actor{MemberID: "m2", Role: RoleAdminBranch, BranchID: "b1", ChurchID: "c1"},
			target:   MemberRef{ID: "m9", BranchID: "b2", ChurchID: "c1"},
			wantCode: DenyTenantMismatch,
		},
		{
			name:   "member edits self",
			actor:  &Actor{MemberID: "m3", Role: RoleMember, BranchID: "b1", ChurchID: "c1"},
			target: MemberRef{ID: "m3", BranchID: "b1", ChurchID: "c1"},
		},
		{
			name:     "member blocked from editing others",
			actor:    &Actor{MemberID: "m3", Role: RoleMember, BranchID: "b1", ChurchID: "c1"},
			target:   MemberRef{ID: "m4", BranchID: "b1", ChurchID: "c1"},
			wantCode: DenyInsufficientPermission,
		},
		{
			name:   "coordinator edits self",
			actor:  &Actor{MemberID: "m5", Role: RoleCoordinator, BranchID: "b1", ChurchID: "c1"},
			target: MemberRef{ID: "m5", BranchID: "b1", ChurchID: "c1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			denied := CanEditMember(tt.actor, tt.target)
			if tt.wantCode == "" {
				assert.Nil(t, denied)
				return
			}
			require.NotNil(t, denied)
			assert.Equal(t, tt.wantCode, denied.Code)
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range Roles {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("SUPERADMIN").Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("admingeral").Valid(), "role values are case sensitive")
}
