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

func TestNextPermissionSet_AdminGetsFullCatalog(t *testing.T) {
	for _, role := range []Role{RoleAdminGeneral, RoleAdminBranch} {
		got := NextPermissionSet([]string{PermMembersView}, role)
		assert.Equal(t, Catalog, got, "role %s", role)

		// The returned slice must be a copy, not an alias of the catalog.
		got[0] = "mutated"
		assert.Equal(t, PermMembersView, Catalog[0])
	}
}

// TestPurpose: Validates that a downgrade to MEMBER strips every restricted
// permission while preserving unrestricted grants, and that members_view is
// always present afterwards.
// Scope: Unit Test
func TestNextPermissionSet_DowngradeToMember(t *testing.T) {
	current := []string{
		PermFinancesManage,
		PermEventsManage,
		PermChurchManage,
		PermNoticesManage,
		PermMembersManage,
	}

	got := NextPermissionSet(current, RoleMember)

	assert.ElementsMatch(t, []string{PermEventsManage, PermNoticesManage, PermMembersView}, got)
	for _, p := range got {
		assert.False(t, IsRestricted(p))
	}
}

func TestNextPermissionSet_PromotionToCoordinatorPreservesGrants(t *testing.T) {
	current := []string{PermFinancesManage, PermReportsView}

	got := NextPermissionSet(current, RoleCoordinator)

	assert.ElementsMatch(t, []string{PermFinancesManage, PermReportsView, PermMembersView}, got)
}

func TestNextPermissionSet_Idempotent(t *testing.T) {
	for _, role := range Roles {
		first := NextPermissionSet([]string{PermFinancesManage, PermEventsManage}, role)
		second := NextPermissionSet(first, role)
		assert.ElementsMatch(t, first, second, "role %s", role)
	}
}

func TestNextPermissionSet_DeduplicatesInput(t *testing.T) {
	got := NextPermissionSet([]string{PermEventsManage, PermEventsManage, PermMembersView}, RoleCoordinator)
	assert.ElementsMatch(t, []string{PermEventsManage, PermMembersView}, got)
}

func TestNextPermissionSet_EmptyCurrent(t *testing.T) {
	assert.Equal(t, []string{PermMembersView}, NextPermissionSet(nil, RoleMember))
	assert.Equal(t, []string{PermMembersView}, NextPermissionSet(nil, RoleCoordinator))
}

func TestCheckGrant(t *testing.T) {
	tests := []struct {
		name       string
		role       Role
		requested  []string
		wantDenied bool
		wantReason string
	}{
		{
			name:      "empty request clears permissions",
			role:      RoleMember,
			requested: nil,
		},
		{
			name:      "member gets unrestricted types",
			role:      RoleMember,
			requested: []string{PermEventsManage, PermNoticesManage},
		},
		{
			name:       "member denied restricted types, offenders named",
			role:       RoleMember,
			requested:  []string{PermEventsManage, PermFinancesManage, PermChurchManage},
			wantDenied: true,
			wantReason: "members cannot hold restricted permissions: finances_manage, church_manage",
		},
		{
			name:      "coordinator gets restricted types",
			role:      RoleCoordinator,
			requested: []string{PermFinancesManage, PermMembersManage},
		},
		{
			name:       "unknown type rejected for any role",
			role:       RoleCoordinator,
			requested:  []string{"superpowers"},
			wantDenied: true,
			wantReason: "unknown permission type: superpowers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			denied := CheckGrant(tt.role, tt.requested)
			if !tt.wantDenied {
				assert.Nil(t, denied)
				return
			}
			require.NotNil(t, denied)
			assert.Equal(t, DenyInsufficientPermission, denied.Code)
			assert.Equal(t, tt.wantReason, denied.Reason)
		})
	}
}

func TestRestrictedCatalogIsSubsetOfCatalog(t *testing.T) {
	for _, p := range RestrictedCatalog {
		assert.True(t, ValidPermission(p), "%s must be in the catalog", p)
	}
	assert.False(t, IsRestricted(PermMembersView))
	assert.False(t, IsRestricted(PermEventsManage))
}
