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
	"fmt"
	"strings"
)

// Permission types. The catalog is fixed and tenant-wide; a member holds at
// most one permission row per type.
const (
	PermMembersView         = "members_view"
	PermMembersManage       = "members_manage"
	PermFinancesManage      = "finances_manage"
	PermChurchManage        = "church_manage"
	PermContributionsManage = "contributions_manage"
	PermEventsManage        = "events_manage"
	PermNoticesManage       = "notices_manage"
	PermReportsView         = "reports_view"
)

// Catalog is the full permission catalog in canonical order.
var Catalog = []string{
	PermMembersView,
	PermMembersManage,
	PermFinancesManage,
	PermChurchManage,
	PermContributionsManage,
	PermEventsManage,
	PermNoticesManage,
	PermReportsView,
}

// RestrictedCatalog lists the permission types that require at least the
// COORDINATOR role. A downgrade to MEMBER strips these; a grant request for
// a MEMBER naming any of them is denied.
var RestrictedCatalog = []string{
	PermFinancesManage,
	PermChurchManage,
	PermContributionsManage,
	PermMembersManage,
}

// ValidPermission reports whether permType is part of the catalog.
func ValidPermission(permType string) bool {
	for _, p := range Catalog {
		if p == permType {
			return true
		}
	}
	return false
}

// IsRestricted reports whether permType is in the restricted catalog.
func IsRestricted(permType string) bool {
	for _, p := range RestrictedCatalog {
		if p == permType {
			return true
		}
	}
	return false
}

// NextPermissionSet computes the permission set a member holds after a role
// transition to newRole, given its current set. The function is idempotent:
// applying it twice with the same newRole yields the same set.
//
//   - Admin roles get the full catalog; explicit rows exist only so that
//     permission queries stay uniform across roles.
//   - A promotion to COORDINATOR preserves whatever was already granted,
//     including restricted types.
//   - A downgrade to MEMBER strips every restricted type.
//
// Both coordinator and member sets always contain members_view.
func NextPermissionSet(current []string, newRole Role) []string {
	if IsImplicitlyPrivileged(newRole) {
		out := make([]string, len(Catalog))
		copy(out, Catalog)
		return out
	}

	out := make([]string, 0, len(current)+1)
	seen := make(map[string]bool, len(current))
	for _, p := range current {
		if seen[p] {
			continue
		}
		if newRole == RoleMember && IsRestricted(p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}

	if !seen[PermMembersView] {
		out = append(out, PermMembersView)
	}

	return out
}

// CheckGrant decides whether an explicit permission replacement may assign
// the requested types to a member holding targetRole. An empty request is
// valid and clears all permissions.
func CheckGrant(targetRole Role, requested []string) *Denied {
	for _, p := range requested {
		if !ValidPermission(p) {
			return &Denied{Code: DenyInsufficientPermission, Reason: "unknown permission type: " + p}
		}
	}

	if targetRole != RoleMember {
		return nil
	}

	var offending []string
	for _, p := range requested {
		if IsRestricted(p) {
			offending = append(offending, p)
		}
	}
	if len(offending) > 0 {
		return &Denied{
			Code:   DenyInsufficientPermission,
			Reason: fmt.Sprintf("members cannot hold restricted permissions: %s", strings.Join(offending, ", ")),
		}
	}

	return nil
}
