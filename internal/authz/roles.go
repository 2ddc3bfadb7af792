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

// Package authz holds the pure decision rules of the policy engine: the
// role hierarchy, the permission catalog and the permission-set transitions.
// Nothing here touches persistence; every function is a total function over
// its inputs so the rules stay unit-testable and auditable in one place.
package authz

// Member roles, ordered from most to least privileged. The set is fixed:
// the authorization rules below are written against exactly these values.
type Role string

const (
	// RoleAdminGeneral is the church-wide administrator. It is a
	// system-only role: it is assigned during church bootstrap and can
	// never be the target of a creation or role-change operation.
	RoleAdminGeneral Role = "ADMINGERAL"

	// RoleAdminBranch administers a single branch.
	RoleAdminBranch Role = "ADMINFILIAL"

	// RoleCoordinator runs day-to-day operations inside a branch and may
	// hold explicitly granted permissions.
	RoleCoordinator Role = "COORDINATOR"

	// RoleMember is the default role for everyone else.
	RoleMember Role = "MEMBER"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdminGeneral, RoleAdminBranch, RoleCoordinator, RoleMember}

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdminGeneral, RoleAdminBranch, RoleCoordinator, RoleMember:
		return true
	}
	return false
}

// IsImplicitlyPrivileged reports whether the role bypasses explicit
// permission grants. Admin roles hold every permission implicitly; their
// permission rows exist only for query uniformity.
func IsImplicitlyPrivileged(r Role) bool {
	return r == RoleAdminGeneral || r == RoleAdminBranch
}

// Actor is the resolved identity every policy decision trusts. It is
// produced once per request by the tenancy resolver; no other component
// re-derives tenancy from raw input.
type Actor struct {
	MemberID    string
	UserID      string
	Role        Role
	BranchID    string
	ChurchID    string
	Permissions []string
}

// HasPermission reports whether the actor holds an explicit permission of
// the given type. Implicit admin privilege is not considered here; callers
// combine it with IsImplicitlyPrivileged.
func (a *Actor) HasPermission(permType string) bool {
	for _, p := range a.Permissions {
		if p == permType {
			return true
		}
	}
	return false
}

// MemberRef carries the tenancy coordinates of a target member.
type MemberRef struct {
	ID       string
	BranchID string
	ChurchID string
}

// DenyCode classifies a denial so the facade can map it to the externally
// visible error taxonomy without matching on message strings.
type DenyCode string

const (
	DenyRoleHierarchy          DenyCode = "role_hierarchy"
	DenyTenantMismatch         DenyCode = "tenant_mismatch"
	DenyInsufficientPermission DenyCode = "insufficient_permission"
)

// Denied is a policy denial. A nil *Denied means allowed.
type Denied struct {
	Code   DenyCode
	Reason string
}

func (d *Denied) Error() string {
	return d.Reason
}

// CanAssignRole decides whether an actor with actorRole may create a member
// with, or change a member to, targetRole. Rules are evaluated in order;
// the first match wins.
func CanAssignRole(actorRole, targetRole Role) *Denied {
	// Rule 1: ADMINGERAL is never assignable, regardless of actor.
	if targetRole == RoleAdminGeneral {
		// Rule 2 is redundant with rule 1 but kept as a distinctly worded
		// denial so branch admins get an actionable message.
		if actorRole == RoleAdminBranch {
			return &Denied{Code: DenyRoleHierarchy, Reason: "branch administrators cannot assign the general administrator role"}
		}
		return &Denied{Code: DenyRoleHierarchy, Reason: "ADMINGERAL is a system-only role and cannot be assigned"}
	}

	// Rule 3: coordinators only ever produce plain members.
	if actorRole == RoleCoordinator && targetRole != RoleMember {
		return &Denied{Code: DenyRoleHierarchy, Reason: "coordinators may only create members"}
	}

	// Rule 4: members assign nothing.
	if actorRole == RoleMember {
		return &Denied{Code: DenyRoleHierarchy, Reason: "members cannot assign roles"}
	}

	return nil
}

// CanCreateMemberInBranch decides whether the actor may create a member in
// the branch identified by (targetBranchID, targetChurchID). Permission-tier
// checks run first so they are reported distinctly from tenancy violations;
// the cross-church case is reported before the own-branch restriction so a
// foreign-church target always surfaces as a tenant mismatch.
func CanCreateMemberInBranch(actor *Actor, targetBranchID, targetChurchID string) *Denied {
	// Admin roles create implicitly; everyone else needs an explicit grant.
	if !IsImplicitlyPrivileged(actor.Role) && !actor.HasPermission(PermMembersManage) {
		return &Denied{Code: DenyInsufficientPermission, Reason: "missing permission: " + PermMembersManage}
	}

	if actor.ChurchID != targetChurchID {
		return &Denied{Code: DenyTenantMismatch, Reason: "target branch belongs to another church"}
	}

	// Branch-scoped roles are confined to their own branch.
	if actor.Role != RoleAdminGeneral && actor.BranchID != targetBranchID {
		return &Denied{Code: DenyTenantMismatch, Reason: "may only create members in own branch"}
	}

	return nil
}

// CanEditMember decides whether the actor may mutate the target member.
func CanEditMember(actor *Actor, target MemberRef) *Denied {
	switch actor.Role {
	case RoleAdminGeneral:
		if actor.ChurchID != target.ChurchID {
			return &Denied{Code: DenyTenantMismatch, Reason: "member belongs to another church"}
		}
		return nil
	case RoleAdminBranch:
		if actor.BranchID != target.BranchID {
			if actor.ChurchID != target.ChurchID {
				return &Denied{Code: DenyTenantMismatch, Reason: "member belongs to another church"}
			}
			return &Denied{Code: DenyTenantMismatch, Reason: "may only edit members of own branch"}
		}
		return nil
	default:
		if actor.MemberID != target.ID {
			return &Denied{Code: DenyInsufficientPermission, Reason: "may only edit own member record"}
		}
		return nil
	}
}
