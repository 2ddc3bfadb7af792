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

// Package policy is the facade the transport layer talks to. It composes
// the role hierarchy, the permission-set transitions, the quota enforcer
// and the invite lifecycle into the mutating operations of the system, and
// returns every expected denial as a typed *Error.
package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/churchstack/churchstack/internal/audit"
	"github.com/churchstack/churchstack/internal/authz"
	"github.com/churchstack/churchstack/internal/billing"
	"github.com/churchstack/churchstack/internal/id"
	"github.com/churchstack/churchstack/internal/invite"
	"github.com/churchstack/churchstack/internal/tenancy"
)

// Service is the policy facade.
type Service struct {
	branches    tenancy.BranchRepository
	members     tenancy.MemberRepository
	quota       *billing.Enforcer
	invites     *invite.Service
	auditLogger audit.Logger
}

// NewService creates a new policy facade
func NewService(
	branches tenancy.BranchRepository,
	members tenancy.MemberRepository,
	quota *billing.Enforcer,
	invites *invite.Service,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		branches:    branches,
		members:     members,
		quota:       quota,
		invites:     invites,
		auditLogger: auditLogger,
	}
}

// CreateMemberInput carries the fields of a member creation request.
type CreateMemberInput struct {
	BranchID string
	Name     string
	Email    string
	Role     authz.Role
	Position string
}

// CreateMember creates a member in a branch on behalf of the actor. Role
// hierarchy is checked before tenancy so hierarchy violations are reported
// distinctly, and the member quota is checked before the insert.
func (s *Service) CreateMember(ctx context.Context, actor *authz.Actor, in CreateMemberInput) (*tenancy.Member, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidInput("name is required")
	}
	if !in.Role.Valid() {
		return nil, invalidInput("invalid role: " + string(in.Role))
	}

	if denied := authz.CanAssignRole(actor.Role, in.Role); denied != nil {
		s.auditDenied(ctx, actor, audit.EntityMember, denied.Reason)
		return nil, classify(denied)
	}

	branch, err := s.branches.GetByID(ctx, in.BranchID)
	if err != nil {
		return nil, classify(err)
	}

	if denied := authz.CanCreateMemberInBranch(actor, branch.ID, branch.ChurchID); denied != nil {
		s.auditDenied(ctx, actor, audit.EntityMember, denied.Reason)
		return nil, classify(denied)
	}

	if err := s.quota.CheckMemberQuota(ctx, branch.ChurchID); err != nil {
		s.auditQuotaDenied(ctx, actor, branch.ChurchID, err)
		return nil, classify(err)
	}

	member := &tenancy.Member{
		ID:       id.NewUUIDv7(),
		BranchID: branch.ID,
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Role:     in.Role,
		Position: in.Position,
	}
	if err := s.members.Create(ctx, member, authz.NextPermissionSet(nil, in.Role)); err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeMemberCreated,
		ChurchID:   branch.ChurchID,
		ActorID:    actor.MemberID,
		EntityType: audit.EntityMember,
		EntityID:   member.ID,
		Metadata: map[string]any{
			audit.AttrRole:     string(in.Role),
			audit.AttrBranchID: branch.ID,
		},
	})

	return member, nil
}

// ChangeRole moves a member to a new role and replaces its permission set
// as a unit. The role update and the permission replacement commit in one
// transaction; no reader observes a member mid-transition.
func (s *Service) ChangeRole(ctx context.Context, actor *authz.Actor, memberID string, newRole authz.Role) (*tenancy.Member, error) {
	if !newRole.Valid() {
		return nil, invalidInput("invalid role: " + string(newRole))
	}

	target, branch, err := s.loadTarget(ctx, memberID)
	if err != nil {
		return nil, classify(err)
	}

	ref := authz.MemberRef{ID: target.ID, BranchID: target.BranchID, ChurchID: branch.ChurchID}
	if denied := authz.CanEditMember(actor, ref); denied != nil {
		s.auditDenied(ctx, actor, audit.EntityMember, denied.Reason)
		return nil, classify(denied)
	}
	if denied := authz.CanAssignRole(actor.Role, newRole); denied != nil {
		s.auditDenied(ctx, actor, audit.EntityMember, denied.Reason)
		return nil, classify(denied)
	}

	current, err := s.members.GetPermissions(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	oldRole := target.Role
	next := authz.NextPermissionSet(current, newRole)
	if err := s.members.ReplacePermissions(ctx, target.ID, &newRole, next); err != nil {
		return nil, fmt.Errorf("failed to change role: %w", err)
	}
	target.Role = newRole

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeRoleChanged,
		ChurchID:   branch.ChurchID,
		ActorID:    actor.MemberID,
		EntityType: audit.EntityMember,
		EntityID:   target.ID,
		Metadata: map[string]any{
			audit.AttrOldRole: string(oldRole),
			audit.AttrNewRole: string(newRole),
		},
	})

	return target, nil
}

// GrantPermissions replaces a member's explicit permission rows with the
// requested types. An empty request is valid and clears all permissions.
// The actor needs member-management authority over the target's branch, and
// a member-role target cannot receive restricted types.
func (s *Service) GrantPermissions(ctx context.Context, actor *authz.Actor, memberID string, types []string) error {
	target, branch, err := s.loadTarget(ctx, memberID)
	if err != nil {
		return classify(err)
	}

	if denied := authz.CanCreateMemberInBranch(actor, target.BranchID, branch.ChurchID); denied != nil {
		s.auditDenied(ctx, actor, audit.EntityMember, denied.Reason)
		return classify(denied)
	}
	if denied := authz.CheckGrant(target.Role, types); denied != nil {
		s.auditDenied(ctx, actor, audit.EntityMember, denied.Reason)
		return classify(denied)
	}

	if err := s.members.ReplacePermissions(ctx, target.ID, nil, dedupe(types)); err != nil {
		return fmt.Errorf("failed to replace permissions: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypePermissionsSet,
		ChurchID:   branch.ChurchID,
		ActorID:    actor.MemberID,
		EntityType: audit.EntityMember,
		EntityID:   target.ID,
		Metadata:   map[string]any{"permissions": types},
	})

	return nil
}

// CreateBranch creates a new branch in the actor's church. Branch creation
// is church-level: the general administrator creates implicitly, everyone
// else needs church_manage.
func (s *Service) CreateBranch(ctx context.Context, actor *authz.Actor, name string) (*tenancy.Branch, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidInput("name is required")
	}

	if actor.Role != authz.RoleAdminGeneral && !actor.HasPermission(authz.PermChurchManage) {
		denied := &authz.Denied{Code: authz.DenyInsufficientPermission, Reason: "missing permission: " + authz.PermChurchManage}
		s.auditDenied(ctx, actor, audit.EntityBranch, denied.Reason)
		return nil, classify(denied)
	}

	if err := s.quota.CheckBranchQuota(ctx, actor.ChurchID); err != nil {
		s.auditQuotaDenied(ctx, actor, actor.ChurchID, err)
		return nil, classify(err)
	}

	branch := &tenancy.Branch{
		ID:       id.NewUUIDv7(),
		ChurchID: actor.ChurchID,
		Name:     strings.TrimSpace(name),
	}
	if err := s.branches.Create(ctx, branch); err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeBranchCreated,
		ChurchID:   actor.ChurchID,
		ActorID:    actor.MemberID,
		EntityType: audit.EntityBranch,
		EntityID:   branch.ID,
	})

	return branch, nil
}

// GetMember returns a member the actor is allowed to see. Viewing needs
// the members_view permission (implicit for administrators) and same-church
// scope; any actor may always view itself. Cross-church members present as
// absent, never as forbidden.
func (s *Service) GetMember(ctx context.Context, actor *authz.Actor, memberID string) (*tenancy.Member, error) {
	target, branch, err := s.loadTarget(ctx, memberID)
	if err != nil {
		return nil, classify(err)
	}
	if target.ID == actor.MemberID {
		return target, nil
	}
	if branch.ChurchID != actor.ChurchID {
		return nil, classify(tenancy.ErrMemberNotFound)
	}
	if !authz.IsImplicitlyPrivileged(actor.Role) && !actor.HasPermission(authz.PermMembersView) {
		denied := &authz.Denied{Code: authz.DenyInsufficientPermission, Reason: "missing permission: " + authz.PermMembersView}
		s.auditDenied(ctx, actor, audit.EntityMember, denied.Reason)
		return nil, classify(denied)
	}
	return target, nil
}

// ListBranches returns the branches of the actor's church.
func (s *Service) ListBranches(ctx context.Context, actor *authz.Actor) ([]*tenancy.Branch, error) {
	branches, err := s.branches.ListByChurch(ctx, actor.ChurchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, nil
}

// CreateInviteLink issues an invite link for a branch.
func (s *Service) CreateInviteLink(ctx context.Context, actor *authz.Actor, branchID string, maxUses *int, expiresAt *time.Time) (*invite.InviteLink, error) {
	link, err := s.invites.Create(ctx, actor, branchID, maxUses, expiresAt)
	if err != nil {
		return nil, classify(err)
	}
	return link, nil
}

// ValidateInviteLink checks a token on behalf of the public registration
// page without consuming it.
func (s *Service) ValidateInviteLink(ctx context.Context, token string) (*invite.InviteLink, error) {
	link, err := s.invites.Validate(ctx, token)
	if err != nil {
		return nil, classify(err)
	}
	return link, nil
}

// Registration carries the self-service data of a public invite signup.
type Registration struct {
	Name   string
	Email  string
	UserID *string
}

// ConsumeInviteLink atomically uses one invite slot and creates the new
// member in the link's branch. This is the unauthenticated path: the new
// member always starts as MEMBER with the baseline permission set.
func (s *Service) ConsumeInviteLink(ctx context.Context, token string, reg Registration) (*tenancy.Member, error) {
	if strings.TrimSpace(reg.Name) == "" {
		return nil, invalidInput("name is required")
	}

	link, err := s.invites.Consume(ctx, token)
	if err != nil {
		return nil, classify(err)
	}

	member := &tenancy.Member{
		ID:       id.NewUUIDv7(),
		BranchID: link.BranchID,
		UserID:   reg.UserID,
		Name:     strings.TrimSpace(reg.Name),
		Email:    reg.Email,
		Role:     authz.RoleMember,
	}
	if err := s.members.Create(ctx, member, authz.NextPermissionSet(nil, authz.RoleMember)); err != nil {
		return nil, fmt.Errorf("failed to create member from invite: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeMemberCreated,
		ActorID:    link.CreatedBy,
		EntityType: audit.EntityMember,
		EntityID:   member.ID,
		Metadata: map[string]any{
			audit.AttrBranchID: link.BranchID,
			"invite_link_id":   link.ID,
		},
	})

	return member, nil
}

// DeactivateInviteLink turns an invite link off.
func (s *Service) DeactivateInviteLink(ctx context.Context, actor *authz.Actor, linkID string) error {
	if err := s.invites.Deactivate(ctx, actor, linkID); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Service) loadTarget(ctx context.Context, memberID string) (*tenancy.Member, *tenancy.Branch, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	branch, err := s.branches.GetByID(ctx, member.BranchID)
	if err != nil {
		return nil, nil, err
	}
	return member, branch, nil
}

func (s *Service) auditDenied(ctx context.Context, actor *authz.Actor, entityType, reason string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeAccessDenied,
		ChurchID:   actor.ChurchID,
		ActorID:    actor.MemberID,
		EntityType: entityType,
		Metadata:   map[string]any{audit.AttrReason: reason},
	})
}

func (s *Service) auditQuotaDenied(ctx context.Context, actor *authz.Actor, churchID string, err error) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeQuotaDenied,
		ChurchID: churchID,
		ActorID:  actor.MemberID,
		Metadata: map[string]any{audit.AttrReason: err.Error()},
	})
}

func dedupe(types []string) []string {
	seen := make(map[string]bool, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
